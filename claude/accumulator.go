package claude

import (
	"strings"
	"sync"

	"github.com/randalmurphal/claudelite/claude/protocol"
	"github.com/randalmurphal/claudelite/claude/session"
)

// TokenUsage is the token accounting reported in result messages.
type TokenUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	TotalTokens              int `json:"total_tokens"`
}

// Add adds other to u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
	u.TotalTokens = u.InputTokens + u.OutputTokens
}

// UsageOf extracts token counts from a result's usage record.
func UsageOf(r *protocol.ResultMessage) TokenUsage {
	var u TokenUsage
	if r == nil {
		return u
	}
	u.InputTokens = intField(r.Usage, "input_tokens")
	u.OutputTokens = intField(r.Usage, "output_tokens")
	u.CacheCreationInputTokens = intField(r.Usage, "cache_creation_input_tokens")
	u.CacheReadInputTokens = intField(r.Usage, "cache_read_input_tokens")
	u.TotalTokens = u.InputTokens + u.OutputTokens
	return u
}

func intField(m map[string]any, key string) int {
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	return 0
}

// Accumulator is a Listener that collects what a session reports: the
// assistant text of the current turn, model, session id, cost and usage.
//
// Safe for concurrent use.
type Accumulator struct {
	session.NopListener

	mu        sync.RWMutex
	content   strings.Builder
	usage     TokenUsage
	cost      float64
	sessionID string
	model     string
	turns     int
	done      bool
	err       error
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// OnTurnStart clears the per-turn text.
func (a *Accumulator) OnTurnStart(string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.content.Reset()
	a.done = false
}

// OnMessage captures assistant text, usage data and session info.
func (a *Accumulator) OnMessage(msg protocol.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id := protocol.SessionIDOf(msg); id != "" && a.sessionID == "" {
		a.sessionID = id
	}

	switch m := msg.(type) {
	case *protocol.SystemMessage:
		if model, ok := m.Data["model"].(string); ok && a.model == "" {
			a.model = model
		}
	case *protocol.AssistantMessage:
		a.content.WriteString(protocol.Text(m))
		if m.Model != "" {
			a.model = m.Model
		}
	case *protocol.ResultMessage:
		a.usage.Add(UsageOf(m))
		a.cost += m.Cost()
	}
}

func (a *Accumulator) OnTurnComplete([]protocol.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.turns++
	a.done = true
}

func (a *Accumulator) OnError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// Content returns the assistant text of the current turn so far.
func (a *Accumulator) Content() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.content.String()
}

// Usage returns token usage summed over all turns.
func (a *Accumulator) Usage() TokenUsage {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.usage
}

// CostUSD returns the cost summed over all turns.
func (a *Accumulator) CostUSD() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cost
}

func (a *Accumulator) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

func (a *Accumulator) Model() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// Turns returns the number of completed turns.
func (a *Accumulator) Turns() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.turns
}

// Done reports whether the current turn has completed.
func (a *Accumulator) Done() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// Error returns the last error reported by the session.
func (a *Accumulator) Error() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// Reset clears the accumulator for reuse.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.content.Reset()
	a.usage = TokenUsage{}
	a.cost = 0
	a.sessionID = ""
	a.model = ""
	a.turns = 0
	a.done = false
	a.err = nil
}
