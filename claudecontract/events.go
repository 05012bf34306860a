package claudecontract

// Message types carried in the "type" field of stream-json records.
const (
	// TypeSystem is used for init, hook_response, and compact_boundary records.
	TypeSystem = "system"

	// TypeAssistant is a model response.
	TypeAssistant = "assistant"

	// TypeUser is a user message. The CLI emits these for tool results and
	// the engine synthesizes them in echo mode.
	TypeUser = "user"

	// TypeResult ends a turn.
	TypeResult = "result"

	// TypeStreamEvent is a partial message delta (--include-partial-messages).
	TypeStreamEvent = "stream_event"

	// TypeControlRequest is a control message. The client sends these to
	// interrupt; the CLI sends them to ask for permissions.
	TypeControlRequest = "control_request"

	// TypeControlResponse acknowledges a control request.
	TypeControlResponse = "control_response"
)

// System subtypes.
const (
	// SubtypeInit is the first system record of a session.
	SubtypeInit = "init"

	// SubtypeHookResponse is for hook execution results.
	SubtypeHookResponse = "hook_response"

	// SubtypeCompactBoundary marks a conversation compaction boundary.
	SubtypeCompactBoundary = "compact_boundary"
)

// Result subtypes.
const (
	ResultSubtypeSuccess              = "success"
	ResultSubtypeErrorMaxTurns        = "error_max_turns"
	ResultSubtypeErrorDuringExecution = "error_during_execution"
	ResultSubtypeErrorMaxBudgetUSD    = "error_max_budget_usd"

	// ResultSubtypeErrorProcessExited is synthesized locally when the CLI
	// exits with a turn still open.
	ResultSubtypeErrorProcessExited = "error_process_exited"

	// ResultSubtypeErrorDisconnected is synthesized locally when the client
	// disconnects with a turn still open.
	ResultSubtypeErrorDisconnected = "error_disconnected"
)

// Control request and response subtypes.
const (
	ControlSubtypeInterrupt = "interrupt"
	ControlSubtypeSuccess   = "success"
	ControlSubtypeError     = "error"
)

// Content block types within messages.
const (
	ContentTypeText       = "text"
	ContentTypeThinking   = "thinking"
	ContentTypeToolUse    = "tool_use"
	ContentTypeToolResult = "tool_result"

	// ContentTypeInterrupt is synthetic. It marks a user interrupt in the
	// local transcript and never appears on the wire.
	ContentTypeInterrupt = "interrupt"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
