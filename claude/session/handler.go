package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/randalmurphal/claudelite/claude/protocol"
)

// DefaultHandler is a Listener that buffers the messages of the current
// turn and lets callers wait for the turn to finish.
//
// It is reset by every OnTurnStart. Waiting on a Cooperative needs something
// to pump it; use Cooperative.WaitForCompletion there.
type DefaultHandler struct {
	NopListener

	mu       sync.Mutex
	prompt   string
	messages []protocol.Message
	result   *protocol.ResultMessage
	started  bool
	complete bool
	done     chan struct{}
	lastErr  error
}

// NewDefaultHandler returns an empty handler.
func NewDefaultHandler() *DefaultHandler {
	return &DefaultHandler{done: make(chan struct{})}
}

func (h *DefaultHandler) OnTurnStart(prompt string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.prompt = prompt
	h.messages = nil
	h.result = nil
	h.started = true
	h.complete = false
	h.done = make(chan struct{})
}

func (h *DefaultHandler) OnMessage(msg protocol.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, msg)
	if r, ok := msg.(*protocol.ResultMessage); ok {
		h.result = r
	}
}

func (h *DefaultHandler) OnTurnComplete([]protocol.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.complete {
		return
	}
	h.complete = true
	close(h.done)
}

func (h *DefaultHandler) OnError(err error) {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
}

// Messages returns a copy of the buffered messages.
func (h *DefaultHandler) Messages() []protocol.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.messages)
}

// IsComplete reports whether the current turn's result has arrived.
func (h *DefaultHandler) IsComplete() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.complete
}

// Result returns the current turn's result, or nil.
func (h *DefaultHandler) Result() *protocol.ResultMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Prompt returns the current turn's prompt.
func (h *DefaultHandler) Prompt() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.prompt
}

// LastError returns the most recent error reported through OnError.
func (h *DefaultHandler) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// WaitForCompletion blocks until the current turn completes. A timeout of
// zero or less waits without limit.
//
// On timeout it returns an error matching ErrTimeout. The turn keeps going:
// a later result is still buffered and flips IsComplete.
func (h *DefaultHandler) WaitForCompletion(timeout time.Duration) error {
	done, err := h.turnDone()
	if err != nil {
		return err
	}
	if timeout <= 0 {
		<-done
		return nil
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		return &Error{Op: "wait", Err: fmt.Errorf("%w after %s", ErrTimeout, timeout)}
	}
}

// Wait blocks until the current turn completes or ctx is done.
func (h *DefaultHandler) Wait(ctx context.Context) error {
	done, err := h.turnDone()
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *DefaultHandler) turnDone() (<-chan struct{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return nil, &Error{Op: "wait", Err: fmt.Errorf("%w: no turn started", ErrInvalidState)}
	}
	return h.done, nil
}
