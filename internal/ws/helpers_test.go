package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"pontochat/internal/auth"
)

// newTestConn opens a real websocket pair over httptest and returns the
// server-side clientConn plus the client-side socket to read frames from.
func newTestConn(t *testing.T) (*clientConn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	connCh := make(chan *clientConn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- newClientConn(raw)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server := <-connCh:
		return server, client
	case <-time.After(2 * time.Second):
		t.Fatal("server side of test connection never arrived")
		return nil, nil
	}
}

// readFrame decodes the next frame on the client side, failing after 2 s.
func readFrame(t *testing.T, client *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

// requireNoFrame asserts that nothing arrives within the window.
func requireNoFrame(t *testing.T, client *websocket.Conn, window time.Duration) {
	t.Helper()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(window)))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
}

// fakeStore is an in-memory chat.IChatStore.
type fakeStore struct {
	mu          sync.Mutex
	members     map[string][]string
	contacts    map[string][]string
	names       map[string]string
	nextID      int64
	insertErr   error
	memberErr   error
	memberCalls int
	readMarks   []string
	reactions   map[string]bool // "msgID/emp/emoji" -> present
	msgRooms    map[int64]string

	mirrorOnline map[string]bool // employees online per the store mirror
	upsertDelay  time.Duration   // simulates a slow online-mirror write
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:   make(map[string][]string),
		contacts:  make(map[string][]string),
		names:     make(map[string]string),
		reactions: make(map[string]bool),
		msgRooms:  make(map[int64]string),
	}
}

func (f *fakeStore) InsertMessage(_ context.Context, roomID, _ string, _ string, _ *int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.nextID++
	f.msgRooms[f.nextID] = roomID
	return f.nextID, nil
}

func (f *fakeStore) RoomMembers(_ context.Context, roomID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCalls++
	if f.memberErr != nil {
		return nil, f.memberErr
	}
	return f.members[roomID], nil
}

func (f *fakeStore) ContactsOf(_ context.Context, employeeID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contacts[employeeID], nil
}

func (f *fakeStore) EmployeeName(_ context.Context, employeeID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name, ok := f.names[employeeID]; ok {
		return name, nil
	}
	return "", context.Canceled
}

func (f *fakeStore) MarkRead(_ context.Context, roomID, employeeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readMarks = append(f.readMarks, roomID+"/"+employeeID)
	return nil
}

func (f *fakeStore) ToggleReaction(_ context.Context, messageID int64, employeeID, emoji string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roomID, ok := f.msgRooms[messageID]
	if !ok {
		return "", "", errMessageMissing
	}
	key := employeeID + "/" + emoji
	if f.reactions[key] {
		delete(f.reactions, key)
		return "removed", roomID, nil
	}
	f.reactions[key] = true
	return "added", roomID, nil
}

func (f *fakeStore) OnlineAnywhere(_ context.Context, ids []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	online := make(map[string]bool, len(ids))
	for _, id := range ids {
		if f.mirrorOnline[id] {
			online[id] = true
		}
	}
	return online, nil
}

func (f *fakeStore) UpsertOnline(context.Context, string, string, string) error {
	if f.upsertDelay > 0 {
		time.Sleep(f.upsertDelay)
	}
	return nil
}

func (f *fakeStore) DeleteOnline(context.Context, string) error { return nil }
func (f *fakeStore) PurgeStaleOnline(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

var errMessageMissing = errors.New("message not found")

// fakePush records enqueued jobs.
type fakePush struct {
	mu   sync.Mutex
	jobs []pushJob
}

type pushJob struct {
	employeeID string
	title      string
	body       string
	roomID     string
	messageID  int64
}

func (f *fakePush) Enqueue(_ context.Context, employeeID, title, body, roomID string, messageID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, pushJob{employeeID, title, body, roomID, messageID})
}

func (f *fakePush) snapshot() []pushJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushJob(nil), f.jobs...)
}

// fakeVerifier accepts tokens of the form "tok-<employee>".
type fakeVerifier struct{}

func (fakeVerifier) Verify(token string) (*auth.VerifiedIdentity, error) {
	if !strings.HasPrefix(token, "tok-") {
		return nil, auth.ErrTokenInvalid
	}
	return &auth.VerifiedIdentity{EmployeeID: strings.TrimPrefix(token, "tok-")}, nil
}
