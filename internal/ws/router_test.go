package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterDispatchesTypedRequest(t *testing.T) {
	r := NewRouter()
	Register(r, "typing", func(_ context.Context, _ *ConnContext, req TypingRequest) (any, error) {
		assert.Equal(t, "7", req.RoomID)
		assert.True(t, req.Typing)
		return "handled", nil
	})

	res, err := r.dispatch(context.Background(), &ConnContext{},
		"typing", json.RawMessage(`{"type":"typing","room_id":"7","typing":true}`))
	require.NoError(t, err)
	assert.Equal(t, "handled", res)
}

func TestRouterUnknownTypeIsRecoverable(t *testing.T) {
	r := NewRouter()

	_, err := r.dispatch(context.Background(), &ConnContext{}, "frobnicate", nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRouterMalformedBody(t *testing.T) {
	r := NewRouter()
	Register(r, "typing", func(_ context.Context, _ *ConnContext, _ TypingRequest) (any, error) {
		t.Fatal("handler must not run on malformed body")
		return nil, nil
	})

	_, err := r.dispatch(context.Background(), &ConnContext{},
		"typing", json.RawMessage(`{"room_id":`))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRouterRejectsEmptyType(t *testing.T) {
	r := NewRouter()
	assert.Panics(t, func() {
		Register(r, "", func(_ context.Context, _ *ConnContext, _ TypingRequest) (any, error) {
			return nil, nil
		})
	})
}
