package pushqueue

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// matchStream pins the target stream. The payload values arrive in map
// order and carry a wall-clock field, so positional matching is out; the
// mock still compares argument counts first, which is why expectedJob
// below carries a full values map.
func matchStream(expected, actual []interface{}) error {
	if len(actual) < 2 || actual[1] != stream {
		return fmt.Errorf("job sent to %v, want stream %q", actual, stream)
	}
	return nil
}

func expectedJob() *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{
			"employee_id": "emp1",
			"title":       "Alice Silva",
			"body":        "lunch?",
			"room_id":     "7",
			"message_id":  int64(42),
			"at":          int64(0),
		},
	}
}

func TestEnqueueAppendsToStream(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	mock.CustomMatch(matchStream).ExpectXAdd(expectedJob()).SetVal("1-0")

	q := NewPushQueue(rdc)
	q.Enqueue(context.Background(), "emp1", "Alice Silva", "lunch?", "7", 42)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueSwallowsRedisFailure(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	mock.CustomMatch(matchStream).ExpectXAdd(expectedJob()).SetErr(assert.AnError)

	q := NewPushQueue(rdc)
	// Must not panic or propagate: enqueue is fire-and-forget.
	q.Enqueue(context.Background(), "emp1", "Alice Silva", "lunch?", "7", 42)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncateShortBodyUntouched(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello"))
}

func TestTruncateLongBody(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := truncate(long)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len(got), maxBodyLen+len("…"))
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	// Multi-byte runes straddling the cut point must not be split.
	long := strings.Repeat("ã", 200)
	got := truncate(long)
	assert.True(t, utf8.ValidString(got))
}
