package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/claudelite/claude/protocol"
)

func TestDefaultHandler_NoTurn(t *testing.T) {
	h := NewDefaultHandler()
	assert.ErrorIs(t, h.WaitForCompletion(time.Millisecond), ErrInvalidState)
	assert.ErrorIs(t, h.Wait(context.Background()), ErrInvalidState)
	assert.False(t, h.IsComplete())
	assert.Nil(t, h.Result())
}

func TestDefaultHandler_Lifecycle(t *testing.T) {
	h := NewDefaultHandler()
	h.OnTurnStart("q")

	err := h.WaitForCompletion(10 * time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsRecoverable(err))

	a := &protocol.AssistantMessage{Content: []protocol.ContentBlock{protocol.TextBlock{Text: "a"}}}
	r := &protocol.ResultMessage{Subtype: "success"}
	h.OnMessage(a)
	h.OnMessage(r)

	go h.OnTurnComplete([]protocol.Message{a, r})
	require.NoError(t, h.WaitForCompletion(0))
	assert.True(t, h.IsComplete())
	assert.Equal(t, r, h.Result())
	assert.Equal(t, "q", h.Prompt())

	msgs := h.Messages()
	msgs[0] = nil
	assert.Equal(t, a, h.Messages()[0], "Messages returns a copy")

	h.OnTurnStart("next")
	assert.False(t, h.IsComplete())
	assert.Empty(t, h.Messages())
	assert.Nil(t, h.Result())
}

func TestDefaultHandler_WaitContext(t *testing.T) {
	h := NewDefaultHandler()
	h.OnTurnStart("q")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Wait(ctx), context.DeadlineExceeded)

	h.OnTurnComplete(nil)
	h.OnTurnComplete(nil)
	assert.NoError(t, h.Wait(context.Background()))
}

func TestDefaultHandler_LastError(t *testing.T) {
	h := NewDefaultHandler()
	assert.NoError(t, h.LastError())
	h.OnError(ErrDisconnected)
	assert.ErrorIs(t, h.LastError(), ErrDisconnected)
}
