package session

import "github.com/randalmurphal/claudelite/claude/protocol"

// Listener receives engine events in arrival order. Embed NopListener to
// implement only the callbacks you need.
//
// For a Session, callbacks run on one dedicated goroutine. For a
// Cooperative, they run on the goroutine driving it. A callback that blocks
// stalls delivery of everything after it.
type Listener interface {
	// OnTurnStart is called when a request is sent.
	OnTurnStart(prompt string)
	// OnMessage is called for every decoded or synthesized message.
	OnMessage(msg protocol.Message)
	// OnTurnComplete is called after the turn's terminal result, with all of
	// the turn's messages. The slice must not be modified.
	OnTurnComplete(messages []protocol.Message)
	// OnStreamStart is called once the process is connected.
	OnStreamStart()
	// OnStreamEnd is called once the process output has ended.
	OnStreamEnd()
	// OnError reports undecodable lines and unexpected disconnects.
	OnError(err error)
}

// NopListener implements Listener with no-ops.
type NopListener struct{}

func (NopListener) OnTurnStart(string)                {}
func (NopListener) OnMessage(protocol.Message)        {}
func (NopListener) OnTurnComplete([]protocol.Message) {}
func (NopListener) OnStreamStart()                    {}
func (NopListener) OnStreamEnd()                      {}
func (NopListener) OnError(error)                     {}

// Listeners fans every event out to each listener in order.
type Listeners []Listener

func (ls Listeners) OnTurnStart(prompt string) {
	for _, l := range ls {
		l.OnTurnStart(prompt)
	}
}

func (ls Listeners) OnMessage(msg protocol.Message) {
	for _, l := range ls {
		l.OnMessage(msg)
	}
}

func (ls Listeners) OnTurnComplete(messages []protocol.Message) {
	for _, l := range ls {
		l.OnTurnComplete(messages)
	}
}

func (ls Listeners) OnStreamStart() {
	for _, l := range ls {
		l.OnStreamStart()
	}
}

func (ls Listeners) OnStreamEnd() {
	for _, l := range ls {
		l.OnStreamEnd()
	}
}

func (ls Listeners) OnError(err error) {
	for _, l := range ls {
		l.OnError(err)
	}
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	TurnStart    func(prompt string)
	Message      func(msg protocol.Message)
	TurnComplete func(messages []protocol.Message)
	StreamStart  func()
	StreamEnd    func()
	Error        func(err error)
}

func (f ListenerFuncs) OnTurnStart(prompt string) {
	if f.TurnStart != nil {
		f.TurnStart(prompt)
	}
}

func (f ListenerFuncs) OnMessage(msg protocol.Message) {
	if f.Message != nil {
		f.Message(msg)
	}
}

func (f ListenerFuncs) OnTurnComplete(messages []protocol.Message) {
	if f.TurnComplete != nil {
		f.TurnComplete(messages)
	}
}

func (f ListenerFuncs) OnStreamStart() {
	if f.StreamStart != nil {
		f.StreamStart()
	}
}

func (f ListenerFuncs) OnStreamEnd() {
	if f.StreamEnd != nil {
		f.StreamEnd()
	}
}

func (f ListenerFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}
