package claude

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/claudelite/claude/protocol"
)

func TestAccumulator(t *testing.T) {
	a := NewAccumulator()
	cost := 0.5

	a.OnTurnStart("one")
	a.OnMessage(&protocol.SystemMessage{Subtype: "init", Data: map[string]any{"session_id": "s-1", "model": "sonnet"}})
	a.OnMessage(&protocol.AssistantMessage{Content: []protocol.ContentBlock{protocol.TextBlock{Text: "Hello "}}})
	a.OnMessage(&protocol.AssistantMessage{Content: []protocol.ContentBlock{protocol.TextBlock{Text: "world"}}})
	a.OnMessage(&protocol.ResultMessage{
		Subtype:      "success",
		SessionID:    "s-2",
		TotalCostUSD: &cost,
		Usage:        map[string]any{"input_tokens": float64(10), "output_tokens": float64(4), "cache_read_input_tokens": float64(2)},
	})
	a.OnTurnComplete(nil)

	assert.Equal(t, "Hello world", a.Content())
	assert.Equal(t, "s-1", a.SessionID())
	assert.Equal(t, "sonnet", a.Model())
	assert.Equal(t, TokenUsage{InputTokens: 10, OutputTokens: 4, CacheReadInputTokens: 2, TotalTokens: 14}, a.Usage())
	assert.InDelta(t, 0.5, a.CostUSD(), 1e-9)
	assert.Equal(t, 1, a.Turns())
	assert.True(t, a.Done())

	a.OnTurnStart("two")
	assert.Empty(t, a.Content())
	assert.False(t, a.Done())

	a.OnError(errors.New("boom"))
	assert.EqualError(t, a.Error(), "boom")

	a.Reset()
	assert.Zero(t, a.Turns())
	assert.Zero(t, a.CostUSD())
	assert.NoError(t, a.Error())
}

func TestUsageOf(t *testing.T) {
	assert.Equal(t, TokenUsage{}, UsageOf(nil))
	assert.Equal(t, TokenUsage{OutputTokens: 7, TotalTokens: 7},
		UsageOf(&protocol.ResultMessage{Usage: map[string]any{"output_tokens": float64(7), "input_tokens": "bad"}}))
}
