package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/claudelite/claude/protocol"
)

// Session is a persistent connection to one Claude CLI process.
//
// A background goroutine reads and decodes the process output; another
// delivers listener callbacks in order. Methods are safe for concurrent
// use. Each Session owns exactly one process at a time.
type Session struct {
	cfg       config
	command   Command
	logger    *slog.Logger
	createdAt time.Time

	mu         sync.Mutex
	core       *engine
	proc       *process
	disp       *dispatcher
	readerDone chan struct{}
	done       <-chan struct{}
	stderr     string
}

// New returns a disconnected Session for cmd.
func New(cmd Command, opts ...Option) *Session {
	cfg := newConfig(opts)
	return &Session{
		cfg:       cfg,
		command:   cmd,
		logger:    cfg.logger,
		createdAt: time.Now(),
		core:      newEngine(cfg.sessionID, cfg.echo, cfg.logger),
		done:      closedChan,
	}
}

// Connect starts the process and the read pipeline.
//
// It fails with ErrSpawn when the binary cannot start and with
// ErrConnection when the process exits during the startup grace without
// output. A Session may be connected again after it disconnects.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if err := s.core.connecting(); err != nil {
		st := s.core.state
		s.mu.Unlock()
		return stateError("connect", err, st)
	}
	s.mu.Unlock()

	p, err := connectProcess(ctx, s.command, s.cfg)
	if err != nil {
		s.mu.Lock()
		s.core.abortConnect()
		s.mu.Unlock()
		return err
	}

	disp := newDispatcher(s.cfg.listener, s.logger)
	readerDone := make(chan struct{})

	s.mu.Lock()
	s.proc = p
	s.disp = disp
	s.readerDone = readerDone
	s.done = disp.done
	disp.publish(s.core.connected()...)
	s.mu.Unlock()

	go disp.run()
	go s.readLoop(p, disp, readerDone)

	s.logger.Debug("claude session connected", "pid", p.cmd.Process.Pid, "session_id", s.SessionID())
	return nil
}

func (s *Session) readLoop(p *process, disp *dispatcher, readerDone chan struct{}) {
	var readErr error
	for {
		line, err := p.ReadLine(context.Background())
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
				s.logger.Warn("reading claude output failed", "error", err)
			}
			break
		}

		msg, decodeErr := protocol.DecodeLine(line)

		s.mu.Lock()
		var evs []event
		if decodeErr != nil {
			evs = s.core.decodeFailed(decodeErr)
		} else {
			evs = s.core.observe(msg)
		}
		disp.publish(evs...)
		s.mu.Unlock()
	}

	close(readerDone)
	s.closeConnection(p, false, readErr)
}

// closeConnection tears p down and emits the closing events. Only the first
// caller for a connection does the work.
func (s *Session) closeConnection(p *process, byClient bool, readErr error) {
	s.mu.Lock()
	if s.proc != p || s.core.state == StateDisconnecting {
		s.mu.Unlock()
		return
	}
	s.core.disconnecting()
	disp, readerDone := s.disp, s.readerDone
	s.mu.Unlock()

	p.Terminate(s.cfg.shutdownGrace)
	<-readerDone
	p.closeOutput()

	subtype, detail, cause := closeDetails(p, byClient, readErr)
	if cause != nil {
		s.logger.Warn("claude process exited unexpectedly", "code", p.ExitCode(), "session_id", s.SessionID())
	}

	s.mu.Lock()
	disp.publish(s.core.closed(subtype, detail, cause)...)
	disp.close()
	s.stderr = p.Stderr()
	s.proc = nil
	s.mu.Unlock()
}

// SendRequest starts a turn with prompt.
//
// It fails with ErrInvalidState while another turn is active and with
// ErrDisconnected when the process is gone. If the request cannot be
// written the session returns to idle and the turn is closed with a
// synthesized error result.
//
// It returns once OnTurnStart has been delivered, unless called from inside
// a callback. When ctx ends during that wait the request has already been
// sent: ctx.Err() is returned but the turn is active and completes as usual.
func (s *Session) SendRequest(ctx context.Context, prompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	data, err := protocol.EncodeUserRequest(prompt, s.core.sessionID)
	if err != nil {
		s.mu.Unlock()
		return &Error{Op: "send", Err: err}
	}
	evs, err := s.core.beginTurn(prompt)
	if err != nil {
		st := s.core.state
		s.mu.Unlock()
		return stateError("send", err, st)
	}
	p, disp := s.proc, s.disp
	delivered := disp.publish(evs...)
	s.mu.Unlock()

	if err := p.WriteLine(data); err != nil {
		s.mu.Lock()
		if s.proc == p {
			delivered = disp.publish(s.core.sendFailed(err.Error())...)
		}
		s.mu.Unlock()
		_ = awaitDelivery(ctx, disp, delivered)
		return &Error{Op: "send", Err: err, Stderr: lastLines(p.Stderr(), 20)}
	}
	return awaitDelivery(ctx, disp, delivered)
}

// awaitDelivery waits for a published batch. Callbacks do not wait, since
// the batch is queued behind the callback itself.
func awaitDelivery(ctx context.Context, disp *dispatcher, delivered <-chan struct{}) error {
	if disp.inCallback() {
		return nil
	}
	select {
	case <-delivered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Interrupt asks the CLI to stop the active turn. The turn still ends with
// its result message, normally an error result.
func (s *Session) Interrupt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := protocol.NewRequestID()
	data, err := protocol.EncodeInterrupt(id)
	if err != nil {
		return &Error{Op: "interrupt", Err: err}
	}

	s.mu.Lock()
	evs, err := s.core.interrupt(id)
	if err != nil {
		st := s.core.state
		s.mu.Unlock()
		return stateError("interrupt", err, st)
	}
	p := s.proc
	s.disp.publish(evs...)
	s.mu.Unlock()

	s.logger.Debug("interrupting turn", "request_id", id)
	if err := p.WriteLine(data); err != nil {
		return &Error{Op: "interrupt", Err: err}
	}
	return nil
}

// Disconnect stops the process and waits until every pending callback has
// run. An open turn ends with a synthesized error result. Calling it again,
// or on a session that never connected, does nothing.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	p, disp := s.proc, s.disp
	s.mu.Unlock()

	if p != nil {
		s.closeConnection(p, true, nil)
	}
	if disp != nil && !disp.inCallback() {
		<-disp.done
	}
	return nil
}

// Done is closed when the current connection has fully stopped.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.state
}

// SessionID returns the conversation id: the one reported by the CLI once
// known, otherwise the client-chosen one.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.sessionID
}

// TurnCount returns the number of completed turns.
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.turnCount
}

// Info returns a snapshot of the session for display and metrics.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.core.info()
	info.CreatedAt = s.createdAt
	info.WorkDir = s.command.Dir
	return info
}

// Stderr returns the last lines the process wrote to stderr.
func (s *Session) Stderr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc != nil {
		return s.proc.Stderr()
	}
	return s.stderr
}

// TranscriptPath returns the JSONL transcript the CLI keeps for this
// session, or "" before the session id is known.
func (s *Session) TranscriptPath() string {
	return transcriptPath(s.cfg, s.command, s.SessionID())
}
