package session

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/randalmurphal/claudelite/claude/protocol"
	"github.com/randalmurphal/claudelite/claudecontract"
)

type eventKind int

const (
	eventStreamStart eventKind = iota
	eventTurnStart
	eventMessage
	eventTurnComplete
	eventError
	eventStreamEnd
)

func (k eventKind) String() string {
	return [...]string{"stream_start", "turn_start", "message", "turn_complete", "error", "stream_end"}[k]
}

// event is one listener notification produced by the engine.
type event struct {
	kind     eventKind
	prompt   string
	msg      protocol.Message
	messages []protocol.Message
	err      error
}

type turn struct {
	prompt   string
	messages []protocol.Message
	started  time.Time
}

// engine is the session state machine shared by Session and Cooperative.
// It does no I/O and no locking; callers serialize access and dispatch the
// returned events in order.
type engine struct {
	logger *slog.Logger
	echo   bool

	state     State
	sessionID string
	// serverAssigned is set once the process reports a session id; from then
	// on the id is fixed.
	serverAssigned bool
	turnCount      int
	totalCost      float64
	model          string
	lastActivity   time.Time

	active *turn
	// pending holds interrupt request ids awaiting a control_response.
	pending map[string]time.Time
}

func newEngine(sessionID string, echo bool, logger *slog.Logger) *engine {
	return &engine{
		logger:       logger,
		echo:         echo,
		sessionID:    sessionID,
		pending:      make(map[string]time.Time),
		lastActivity: time.Now(),
	}
}

func (e *engine) connecting() error {
	if e.state != StateDisconnected {
		return ErrInvalidState
	}
	e.state = StateConnecting
	return nil
}

// abortConnect returns a failed connect to StateDisconnected.
func (e *engine) abortConnect() {
	e.state = StateDisconnected
}

func (e *engine) connected() []event {
	e.state = StateIdle
	e.lastActivity = time.Now()
	return []event{{kind: eventStreamStart}}
}

// beginTurn starts a turn. There is no queueing: a second request while a
// turn is active is rejected and the active turn is left as it was.
func (e *engine) beginTurn(prompt string) ([]event, error) {
	switch e.state {
	case StateIdle:
	case StateDisconnected, StateDisconnecting:
		return nil, ErrDisconnected
	default:
		return nil, ErrInvalidState
	}

	e.state = StateActive
	e.active = &turn{prompt: prompt, started: time.Now()}
	e.lastActivity = e.active.started

	evs := []event{{kind: eventTurnStart, prompt: prompt}}
	if e.echo {
		evs = append(evs, e.record(&protocol.UserMessage{
			Content: []protocol.ContentBlock{protocol.TextBlock{Text: prompt}},
		}))
	}
	return evs, nil
}

// sendFailed rolls back a turn whose request never reached the process.
// Listeners already saw OnTurnStart, so the turn is closed with a
// synthesized error result; it does not count as a completed turn.
func (e *engine) sendFailed(detail string) []event {
	if e.state != StateActive || e.active == nil {
		return nil
	}
	r := &protocol.ResultMessage{
		Subtype:    claudecontract.ResultSubtypeErrorDisconnected,
		DurationMS: time.Since(e.active.started).Milliseconds(),
		IsError:    true,
		SessionID:  e.sessionID,
		Result:     detail,
	}
	ev := e.record(r)
	msgs := slices.Clip(e.active.messages)
	e.active = nil
	e.state = StateIdle
	return []event{ev, {kind: eventTurnComplete, messages: msgs}}
}

// interrupt registers an interrupt request. The turn stays active until
// its result arrives.
func (e *engine) interrupt(requestID string) ([]event, error) {
	if e.state != StateActive || e.active == nil {
		return nil, ErrInvalidState
	}
	e.pending[requestID] = time.Now()

	if !e.echo {
		return nil, nil
	}
	return []event{e.record(&protocol.UserMessage{
		Content: []protocol.ContentBlock{protocol.InterruptBlock{}},
	})}, nil
}

// observe routes one decoded message.
func (e *engine) observe(msg protocol.Message) []event {
	e.lastActivity = time.Now()
	e.adoptSessionID(protocol.SessionIDOf(msg))

	switch m := msg.(type) {
	case *protocol.SystemMessage:
		if m.Subtype == claudecontract.SubtypeInit {
			if model, ok := m.Data["model"].(string); ok {
				e.model = model
			}
		}
	case *protocol.AssistantMessage:
		if m.Model != "" {
			e.model = m.Model
		}
	case *protocol.ControlResponseMessage:
		if sent, ok := e.pending[m.RequestID]; ok {
			delete(e.pending, m.RequestID)
			e.logger.Debug("control request acknowledged",
				"request_id", m.RequestID,
				"subtype", m.Subtype,
				"latency", time.Since(sent),
			)
		} else {
			e.logger.Debug("control response for unknown request", "request_id", m.RequestID)
		}
	case *protocol.UnknownMessage:
		switch {
		case m.MessageType == claudecontract.TypeControlRequest:
			e.logger.Warn("claude sent a control request this client does not answer", "raw", string(m.Raw))
		case m.Cause != nil:
			e.logger.Debug("degraded malformed message", "type", m.MessageType, "cause", m.Cause)
		default:
			e.logger.Debug("unrecognized message type", "type", m.MessageType)
		}
	}

	if e.active == nil {
		if protocol.IsTerminal(msg) {
			e.logger.Debug("result received outside a turn")
		}
		return []event{{kind: eventMessage, msg: msg}}
	}

	evs := []event{e.record(msg)}
	if r, ok := msg.(*protocol.ResultMessage); ok {
		evs = append(evs, e.completeTurn(r))
	}
	return evs
}

func (e *engine) decodeFailed(err error) []event {
	e.logger.Debug("skipping undecodable line", "error", err)
	return []event{{kind: eventError, err: err}}
}

func (e *engine) disconnecting() {
	e.state = StateDisconnecting
}

// closed ends the connection. An open turn is closed with a synthesized
// error result so no waiter is left hanging. cause, when non-nil, is
// reported through OnError.
func (e *engine) closed(subtype, detail string, cause error) []event {
	if e.state == StateDisconnected {
		return nil
	}

	var evs []event
	if e.active != nil {
		r := &protocol.ResultMessage{
			Subtype:    subtype,
			DurationMS: time.Since(e.active.started).Milliseconds(),
			IsError:    true,
			SessionID:  e.sessionID,
			Result:     detail,
		}
		evs = append(evs, e.record(r), e.completeTurn(r))
	}
	if cause != nil {
		evs = append(evs, event{kind: eventError, err: cause})
	}
	evs = append(evs, event{kind: eventStreamEnd})

	clear(e.pending)
	e.state = StateDisconnected
	return evs
}

// record appends msg to the active turn.
func (e *engine) record(msg protocol.Message) event {
	e.active.messages = append(e.active.messages, msg)
	return event{kind: eventMessage, msg: msg}
}

func (e *engine) completeTurn(r *protocol.ResultMessage) event {
	msgs := slices.Clip(e.active.messages)
	e.active = nil
	e.turnCount++
	e.totalCost += r.Cost()
	if e.state == StateActive {
		e.state = StateIdle
	}
	return event{kind: eventTurnComplete, messages: msgs}
}

// adoptSessionID applies the precedence rule: the first id reported by the
// process wins over a client-chosen one, and is fixed from then on.
func (e *engine) adoptSessionID(id string) {
	if id == "" {
		return
	}
	if e.serverAssigned {
		if id != e.sessionID {
			e.logger.Warn("ignoring conflicting session id", "session_id", e.sessionID, "reported", id)
		}
		return
	}
	if e.sessionID != "" && e.sessionID != id {
		e.logger.Warn("claude assigned a different session id", "requested", e.sessionID, "assigned", id)
	}
	e.sessionID = id
	e.serverAssigned = true
}

func (e *engine) info() SessionInfo {
	return SessionInfo{
		SessionID:    e.sessionID,
		State:        e.state,
		Model:        e.model,
		TurnCount:    e.turnCount,
		TotalCostUSD: e.totalCost,
		LastActivity: e.lastActivity,
	}
}

// exitDetail describes why the process went away, for the synthesized
// result text.
func exitDetail(code int, stderr string) string {
	var sb strings.Builder
	if code >= 0 {
		fmt.Fprintf(&sb, "claude process exited with code %d", code)
	} else {
		sb.WriteString("claude process exited")
	}
	if tail := lastLines(stderr, 5); tail != "" {
		sb.WriteString(": ")
		sb.WriteString(tail)
	}
	return sb.String()
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
