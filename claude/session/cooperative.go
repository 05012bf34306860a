package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/claudelite/claude/protocol"
)

// Cooperative is a Session without background goroutines. Output is read
// only while the caller pulls it through Next or WaitForCompletion, and
// listener callbacks run on the calling goroutine.
//
// Next and WaitForCompletion must not be called concurrently with each
// other. Disconnect may be called from any goroutine.
type Cooperative struct {
	cfg       config
	command   Command
	logger    *slog.Logger
	createdAt time.Time

	mu      sync.Mutex
	core    *engine
	proc    *process
	backlog []protocol.Message
	// closing is closed when the connection being torn down is finished.
	closing chan struct{}
	stderr  string
}

// NewCooperative returns a disconnected Cooperative for cmd.
func NewCooperative(cmd Command, opts ...Option) *Cooperative {
	cfg := newConfig(opts)
	return &Cooperative{
		cfg:       cfg,
		command:   cmd,
		logger:    cfg.logger,
		createdAt: time.Now(),
		core:      newEngine(cfg.sessionID, cfg.echo, cfg.logger),
	}
}

// Connect starts the process. It fails the same way Session.Connect does.
func (c *Cooperative) Connect(ctx context.Context) error {
	c.mu.Lock()
	if err := c.core.connecting(); err != nil {
		st := c.core.state
		c.mu.Unlock()
		return stateError("connect", err, st)
	}
	c.mu.Unlock()

	p, err := connectProcess(ctx, c.command, c.cfg)
	if err != nil {
		c.mu.Lock()
		c.core.abortConnect()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.proc = p
	c.backlog = nil
	evs := c.core.connected()
	c.mu.Unlock()

	c.dispatch(evs)
	return nil
}

// dispatch runs callbacks for evs and queues their messages for Next.
func (c *Cooperative) dispatch(evs []event) {
	for _, ev := range evs {
		if ev.kind == eventMessage {
			c.mu.Lock()
			c.backlog = append(c.backlog, ev.msg)
			c.mu.Unlock()
		}
		deliver(c.cfg.listener, ev, c.logger)
	}
}

// Next returns the next message, reading from the process when nothing is
// queued. Listener callbacks for the message have run by the time it
// returns.
//
// A context deadline yields ErrTimeout and leaves the session usable.
// Cancellation disconnects and returns ctx.Err(). Once the process is gone
// and every queued message has been returned, Next returns io.EOF.
func (c *Cooperative) Next(ctx context.Context) (protocol.Message, error) {
	for {
		c.mu.Lock()
		if len(c.backlog) > 0 {
			msg := c.backlog[0]
			c.backlog[0] = nil
			c.backlog = c.backlog[1:]
			c.mu.Unlock()
			return msg, nil
		}
		p := c.proc
		c.mu.Unlock()
		if p == nil {
			return nil, io.EOF
		}

		line, err := p.ReadLine(ctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrTimeout):
				return nil, &Error{Op: "read", Err: err}
			case ctx.Err() != nil:
				c.closeConnection(p, true, nil)
				return nil, ctx.Err()
			}
			var readErr error
			if !errors.Is(err, io.EOF) {
				readErr = err
				c.logger.Warn("reading claude output failed", "error", err)
			}
			c.closeConnection(p, false, readErr)
			continue
		}

		msg, decodeErr := protocol.DecodeLine(line)

		c.mu.Lock()
		var evs []event
		if decodeErr != nil {
			evs = c.core.decodeFailed(decodeErr)
		} else {
			evs = c.core.observe(msg)
		}
		c.mu.Unlock()
		c.dispatch(evs)
	}
}

// closeConnection tears p down. A caller that finds the teardown already
// running waits for it.
func (c *Cooperative) closeConnection(p *process, byClient bool, readErr error) {
	c.mu.Lock()
	if c.proc != p {
		c.mu.Unlock()
		return
	}
	if c.core.state == StateDisconnecting {
		closing := c.closing
		c.mu.Unlock()
		<-closing
		return
	}
	c.core.disconnecting()
	closing := make(chan struct{})
	c.closing = closing
	c.mu.Unlock()
	defer close(closing)

	p.Terminate(c.cfg.shutdownGrace)
	p.closeOutput()

	subtype, detail, cause := closeDetails(p, byClient, readErr)
	if cause != nil {
		c.logger.Warn("claude process exited unexpectedly", "code", p.ExitCode(), "session_id", c.SessionID())
	}

	c.mu.Lock()
	evs := c.core.closed(subtype, detail, cause)
	c.stderr = p.Stderr()
	c.proc = nil
	c.mu.Unlock()

	c.dispatch(evs)
}

// SendRequest starts a turn. OnTurnStart has run when it returns; the
// turn's messages arrive through Next. If the request cannot be written the
// session returns to idle and the turn is closed with a synthesized error
// result.
func (c *Cooperative) SendRequest(ctx context.Context, prompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	data, err := protocol.EncodeUserRequest(prompt, c.core.sessionID)
	if err != nil {
		c.mu.Unlock()
		return &Error{Op: "send", Err: err}
	}
	evs, err := c.core.beginTurn(prompt)
	if err != nil {
		st := c.core.state
		c.mu.Unlock()
		return stateError("send", err, st)
	}
	p := c.proc
	c.mu.Unlock()

	c.dispatch(evs)
	if err := p.WriteLine(data); err != nil {
		c.mu.Lock()
		var failed []event
		if c.proc == p {
			failed = c.core.sendFailed(err.Error())
		}
		c.mu.Unlock()
		c.dispatch(failed)
		return &Error{Op: "send", Err: err, Stderr: lastLines(p.Stderr(), 20)}
	}
	return nil
}

// Interrupt asks the CLI to stop the active turn.
func (c *Cooperative) Interrupt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := protocol.NewRequestID()
	data, err := protocol.EncodeInterrupt(id)
	if err != nil {
		return &Error{Op: "interrupt", Err: err}
	}

	c.mu.Lock()
	evs, err := c.core.interrupt(id)
	if err != nil {
		st := c.core.state
		c.mu.Unlock()
		return stateError("interrupt", err, st)
	}
	p := c.proc
	c.mu.Unlock()

	c.dispatch(evs)
	c.logger.Debug("interrupting turn", "request_id", id)
	if err := p.WriteLine(data); err != nil {
		return &Error{Op: "interrupt", Err: err}
	}
	return nil
}

// WaitForCompletion pulls messages until the active turn completes. A
// positive timeout bounds the wait; on expiry it returns ErrTimeout and the
// turn keeps running. It fails with ErrInvalidState if no turn was ever
// started.
func (c *Cooperative) WaitForCompletion(ctx context.Context, timeout time.Duration) error {
	c.mu.Lock()
	neverStarted := c.core.active == nil && c.core.turnCount == 0
	c.mu.Unlock()
	if neverStarted {
		return &Error{Op: "wait", Err: fmt.Errorf("%w: no turn started", ErrInvalidState)}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for c.State() == StateActive {
		if _, err := c.Next(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, ErrTimeout) && timeout > 0 {
				return &Error{Op: "wait", Err: fmt.Errorf("%w after %s", ErrTimeout, timeout)}
			}
			return err
		}
	}
	return nil
}

// Disconnect stops the process. An open turn ends with a synthesized error
// result, available through Next. Calling it again does nothing.
func (c *Cooperative) Disconnect() error {
	c.mu.Lock()
	p := c.proc
	c.mu.Unlock()
	if p != nil {
		c.closeConnection(p, true, nil)
	}
	return nil
}

// State returns the current connection state.
func (c *Cooperative) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.core.state
}

// SessionID returns the conversation id, empty until one is known.
func (c *Cooperative) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.core.sessionID
}

// TurnCount returns the number of turns completed on this session.
func (c *Cooperative) TurnCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.core.turnCount
}

// Info returns a snapshot of the session.
func (c *Cooperative) Info() SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := c.core.info()
	info.CreatedAt = c.createdAt
	info.WorkDir = c.command.Dir
	return info
}

// Stderr returns the retained stderr of the current process, or of the
// last one once it has exited.
func (c *Cooperative) Stderr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc != nil {
		return c.proc.Stderr()
	}
	return c.stderr
}

// TranscriptPath returns where the CLI writes this conversation's JSONL
// transcript. It is empty until a session id is known.
func (c *Cooperative) TranscriptPath() string {
	return transcriptPath(c.cfg, c.command, c.SessionID())
}
