package protocol

import (
	"encoding/json"

	"github.com/randalmurphal/claudelite/claudecontract"
)

// Message is one decoded stream-json record.
//
// The set of implementations is closed: AssistantMessage, UserMessage,
// SystemMessage, ResultMessage, StreamEvent, ControlResponseMessage and
// UnknownMessage.
type Message interface {
	// Type returns the wire discriminator.
	Type() string
	isMessage()
}

// AssistantMessage is a model response.
type AssistantMessage struct {
	Content         []ContentBlock
	Model           string
	ParentToolUseID string
	// Error is set by the CLI when the API call behind this message failed
	// (for example "rate_limit").
	Error string
}

// UserMessage is a user-side message: tool results from the CLI, or a
// prompt or interrupt echoed locally.
type UserMessage struct {
	Content         []ContentBlock
	UUID            string
	ParentToolUseID string
	ToolUseResult   any
}

// SystemMessage is informational (init, hook responses, compaction).
type SystemMessage struct {
	Subtype string
	// Data is the complete record.
	Data map[string]any
}

// ResultMessage ends a turn. Exactly one arrives per turn, or one is
// synthesized when the process goes away first.
type ResultMessage struct {
	Subtype          string
	DurationMS       int64
	DurationAPIMS    int64
	IsError          bool
	NumTurns         int
	SessionID        string
	TotalCostUSD     *float64
	Usage            map[string]any
	Result           string
	StructuredOutput any
}

// Cost returns TotalCostUSD or 0 when the CLI did not report one.
func (m *ResultMessage) Cost() float64 {
	if m.TotalCostUSD == nil {
		return 0
	}
	return *m.TotalCostUSD
}

// StreamEvent is a partial message delta, emitted only when the CLI runs
// with --include-partial-messages.
type StreamEvent struct {
	UUID            string
	SessionID       string
	Event           map[string]any
	ParentToolUseID string
}

// ControlResponseMessage acknowledges a control request sent by the client.
type ControlResponseMessage struct {
	RequestID string
	Subtype   string
	Error     string
	Payload   map[string]any
}

// OK reports whether the control request succeeded.
func (m *ControlResponseMessage) OK() bool {
	return m.Subtype != claudecontract.ControlSubtypeError
}

// UnknownMessage keeps a record this package could not map to a known
// variant: an unrecognized or missing type, or a known type with missing or
// mistyped required fields.
type UnknownMessage struct {
	// MessageType is the wire type, empty when the record had none.
	MessageType string
	Raw         json.RawMessage
	// Cause explains why a known type was degraded. Nil for unrecognized
	// types.
	Cause error
}

func (*AssistantMessage) Type() string       { return claudecontract.TypeAssistant }
func (*UserMessage) Type() string            { return claudecontract.TypeUser }
func (*SystemMessage) Type() string          { return claudecontract.TypeSystem }
func (*ResultMessage) Type() string          { return claudecontract.TypeResult }
func (*StreamEvent) Type() string            { return claudecontract.TypeStreamEvent }
func (*ControlResponseMessage) Type() string { return claudecontract.TypeControlResponse }
func (m *UnknownMessage) Type() string       { return m.MessageType }

func (*AssistantMessage) isMessage()       {}
func (*UserMessage) isMessage()            {}
func (*SystemMessage) isMessage()          {}
func (*ResultMessage) isMessage()          {}
func (*StreamEvent) isMessage()            {}
func (*ControlResponseMessage) isMessage() {}
func (*UnknownMessage) isMessage()         {}

// SessionIDOf returns the session token carried by msg, or "".
func SessionIDOf(msg Message) string {
	switch m := msg.(type) {
	case *ResultMessage:
		return m.SessionID
	case *StreamEvent:
		return m.SessionID
	case *SystemMessage:
		if id, ok := m.Data["session_id"].(string); ok {
			return id
		}
	}
	return ""
}

// IsTerminal reports whether msg ends a turn.
func IsTerminal(msg Message) bool {
	_, ok := msg.(*ResultMessage)
	return ok
}
