package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/randalmurphal/claudelite/claude/protocol"
	"github.com/randalmurphal/claudelite/internal/fakecli"
)

func TestHelperProcess(t *testing.T) {
	if !fakecli.Enabled() {
		t.Skip("helper process for session tests")
	}
	fakecli.Run()
}

func fakeCommand(mode string) Command {
	return Command{
		Path: fakecli.Binary(),
		Args: fakecli.Args(),
		Env:  fakecli.Env(mode),
	}
}

// recorder logs every callback as a short string.
type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
	turns  [][]protocol.Message
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) OnTurnStart(prompt string) { r.add("turn_start:" + prompt) }

func (r *recorder) OnMessage(msg protocol.Message) { r.add("message:" + msg.Type()) }

func (r *recorder) OnTurnComplete(messages []protocol.Message) {
	r.mu.Lock()
	r.turns = append(r.turns, messages)
	r.mu.Unlock()
	r.add(fmt.Sprintf("turn_complete:%d", len(messages)))
}

func (r *recorder) OnStreamStart() { r.add("stream_start") }

func (r *recorder) OnStreamEnd() { r.add("stream_end") }

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.add("error")
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) Turns() [][]protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]protocol.Message(nil), r.turns...)
}

func lastResult(t *testing.T, msgs []protocol.Message) *protocol.ResultMessage {
	t.Helper()
	if len(msgs) == 0 {
		t.Fatal("no messages")
	}
	r, ok := msgs[len(msgs)-1].(*protocol.ResultMessage)
	if !ok {
		t.Fatalf("last message is %T, want *protocol.ResultMessage", msgs[len(msgs)-1])
	}
	return r
}
