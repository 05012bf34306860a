package session

import (
	"bytes"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

type batch struct {
	events    []event
	delivered chan struct{}
}

// dispatcher delivers events to a listener on its own goroutine, in the
// order they were published.
type dispatcher struct {
	listener Listener
	logger   *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []batch
	closed bool

	// gid identifies the goroutine running callbacks, so a caller can tell
	// whether waiting on delivery would wait on itself.
	gid  atomic.Uint64
	done chan struct{}
}

func newDispatcher(l Listener, logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		listener: l,
		logger:   logger,
		done:     make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// publish queues evs and returns a channel closed once they have all been
// delivered. After close, events are dropped.
func (d *dispatcher) publish(evs ...event) <-chan struct{} {
	if len(evs) == 0 {
		return closedChan
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Debug("dropping events after dispatcher close", "count", len(evs))
		return closedChan
	}
	b := batch{events: evs, delivered: make(chan struct{})}
	d.queue = append(d.queue, b)
	d.cond.Signal()
	return b.delivered
}

// close stops accepting events. Already queued events are still delivered,
// then done is closed.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Signal()
	d.mu.Unlock()
}

func (d *dispatcher) run() {
	d.gid.Store(goroutineID())
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		b := d.queue[0]
		d.queue[0] = batch{}
		d.queue = d.queue[1:]
		d.mu.Unlock()

		for _, ev := range b.events {
			deliver(d.listener, ev, d.logger)
		}
		close(b.delivered)
	}
}

// inCallback reports whether the caller is a listener callback, that is,
// whether it runs on the dispatcher goroutine. Callbacks running there while
// another goroutine asks do not count.
func (d *dispatcher) inCallback() bool {
	id := d.gid.Load()
	return id != 0 && id == goroutineID()
}

// goroutineID parses the current goroutine's id from its stack header,
// "goroutine 42 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// deliver invokes the callback for ev. A panicking listener is logged and
// does not stop later deliveries.
func deliver(l Listener, ev event, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("listener panicked", "event", ev.kind.String(), "panic", r)
		}
	}()

	switch ev.kind {
	case eventStreamStart:
		l.OnStreamStart()
	case eventTurnStart:
		l.OnTurnStart(ev.prompt)
	case eventMessage:
		l.OnMessage(ev.msg)
	case eventTurnComplete:
		l.OnTurnComplete(ev.messages)
	case eventError:
		l.OnError(ev.err)
	case eventStreamEnd:
		l.OnStreamEnd()
	}
}
