package session

import (
	"fmt"
	"time"
)

// State is the connection state of an engine.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	// StateIdle is connected with no active turn.
	StateIdle
	// StateActive is connected with a turn in flight.
	StateActive
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Connected reports whether s is StateIdle or StateActive.
func (s State) Connected() bool {
	return s == StateIdle || s == StateActive
}

// Command is a fully built process invocation.
type Command struct {
	Path string
	Args []string
	// Env is the complete child environment. Nil inherits the parent's.
	Env []string
	Dir string
}

// SessionInfo is a snapshot of session metadata.
type SessionInfo struct {
	SessionID    string
	State        State
	Model        string
	WorkDir      string
	TurnCount    int
	TotalCostUSD float64
	CreatedAt    time.Time
	LastActivity time.Time
}
