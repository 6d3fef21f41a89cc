package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFirstAndLastTransitions(t *testing.T) {
	r := NewRegistry()
	c1 := &clientConn{id: "c1"}
	c2 := &clientConn{id: "c2"}

	assert.True(t, r.Add("emp1", c1), "first connection must report the online transition")
	assert.False(t, r.Add("emp1", c2), "second device must not")

	emp, last, ok := r.Remove("c1")
	require.True(t, ok)
	assert.Equal(t, "emp1", emp)
	assert.False(t, last, "one device still live")

	emp, last, ok = r.Remove("c2")
	require.True(t, ok)
	assert.Equal(t, "emp1", emp)
	assert.True(t, last, "last device gone")

	assert.Empty(t, r.ForEmployee("emp1"))
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Add("emp1", &clientConn{id: "c1"})

	_, _, ok := r.Remove("c1")
	require.True(t, ok)

	_, last, ok := r.Remove("c1")
	assert.False(t, ok)
	assert.False(t, last)

	_, _, ok = r.Remove("never-existed")
	assert.False(t, ok)
}

func TestRegistryLookups(t *testing.T) {
	r := NewRegistry()
	c1 := &clientConn{id: "c1"}
	r.Add("emp1", c1)
	r.Add("emp2", &clientConn{id: "c2"})

	assert.True(t, r.Exists("c1"))
	assert.False(t, r.Exists("c9"))
	assert.Len(t, r.ForEmployee("emp1"), 1)
	assert.Empty(t, r.ForEmployee("emp3"), "offline employee yields empty list")
	assert.ElementsMatch(t, []string{"emp1", "emp2"}, r.OnlineEmployees())
	assert.Equal(t, 2, r.ConnCount())
}

func TestRegistryIdleConns(t *testing.T) {
	r := NewRegistry()
	c1 := &clientConn{id: "c1"}
	c2 := &clientConn{id: "c2"}
	r.Add("emp1", c1)
	r.Add("emp2", c2)

	// Age emp1's clock, then refresh emp2's.
	r.mu.Lock()
	r.meta["c1"].lastActivity = time.Now().Add(-time.Minute)
	r.mu.Unlock()
	r.Touch("c2")

	idle := r.idleConns(time.Now().Add(-30 * time.Second))
	require.Len(t, idle, 1)
	assert.Equal(t, "c1", idle[0].id)
}

func TestRegistryRoomInterest(t *testing.T) {
	r := NewRegistry()
	r.Add("emp1", &clientConn{id: "c1"})

	r.JoinRoom("c1", "7")
	r.mu.RLock()
	_, joined := r.meta["c1"].joinedRooms["7"]
	r.mu.RUnlock()
	assert.True(t, joined)

	r.LeaveRoom("c1", "7")
	r.mu.RLock()
	_, joined = r.meta["c1"].joinedRooms["7"]
	r.mu.RUnlock()
	assert.False(t, joined)

	// Unknown connection ids are ignored.
	r.JoinRoom("c9", "7")
	r.LeaveRoom("c9", "7")
}
