package session

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/claudelite/claude/protocol"
)

func TestDispatcher_OrderAndDrain(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(rec, slog.New(slog.DiscardHandler))

	first := d.publish(event{kind: eventStreamStart}, event{kind: eventTurnStart, prompt: "a"})
	second := d.publish(event{kind: eventMessage, msg: &protocol.SystemMessage{Subtype: "init"}})
	go d.run()

	for _, ch := range []<-chan struct{}{first, second} {
		select {
		case <-ch:
		case <-time.After(waitLimit):
			t.Fatal("batch not delivered")
		}
	}

	d.publish(event{kind: eventStreamEnd})
	d.close()
	<-d.done

	assert.Equal(t, []string{"stream_start", "turn_start:a", "message:system", "stream_end"}, rec.Events())
}

func TestDispatcher_DropsAfterClose(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(rec, slog.New(slog.DiscardHandler))
	go d.run()
	d.close()
	<-d.done

	ch := d.publish(event{kind: eventStreamStart})
	select {
	case <-ch:
	default:
		t.Fatal("publish after close should report delivery at once")
	}
	assert.Empty(t, rec.Events())
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	rec := &recorder{}
	l := Listeners{ListenerFuncs{StreamStart: func() { panic("bad") }}, rec}
	d := newDispatcher(l, slog.New(slog.DiscardHandler))
	go d.run()

	d.publish(event{kind: eventStreamStart})
	<-d.publish(event{kind: eventStreamEnd})
	d.close()
	<-d.done

	assert.Equal(t, []string{"stream_end"}, rec.Events())
}

func TestDispatcher_InCallback(t *testing.T) {
	var d *dispatcher
	seen := make(chan bool, 1)
	d = newDispatcher(ListenerFuncs{StreamStart: func() { seen <- d.inCallback() }}, slog.New(slog.DiscardHandler))
	go d.run()
	defer func() {
		d.close()
		<-d.done
	}()

	assert.False(t, d.inCallback())
	d.publish(event{kind: eventStreamStart})
	select {
	case v := <-seen:
		require.True(t, v)
	case <-time.After(waitLimit):
		t.Fatal("callback not run")
	}
}

func TestDispatcher_InCallbackOtherGoroutine(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	d := newDispatcher(ListenerFuncs{TurnComplete: func([]protocol.Message) {
		close(entered)
		<-release
	}}, slog.New(slog.DiscardHandler))
	go d.run()
	defer func() {
		d.close()
		<-d.done
	}()

	delivered := d.publish(event{kind: eventTurnComplete})
	select {
	case <-entered:
	case <-time.After(waitLimit):
		t.Fatal("callback not run")
	}

	assert.False(t, d.inCallback(), "a callback on the dispatcher goroutine does not make other callers callbacks")
	select {
	case <-delivered:
		t.Fatal("batch delivered while its callback still runs")
	default:
	}
	close(release)
	select {
	case <-delivered:
	case <-time.After(waitLimit):
		t.Fatal("batch not delivered")
	}
}

func TestGoroutineID(t *testing.T) {
	id := goroutineID()
	assert.NotZero(t, id)
	assert.Equal(t, id, goroutineID())

	other := make(chan uint64)
	go func() { other <- goroutineID() }()
	assert.NotEqual(t, id, <-other)
}
