package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

type groupSignal int

const (
	sigTerm groupSignal = iota
	sigKill
)

// exitDrainTimeout bounds how long reads continue after the process has
// exited. Descendants that inherited stdout would otherwise keep the pipe
// open forever.
const exitDrainTimeout = time.Second

// process owns one CLI child: its pipes, its exit state and its stderr.
// Writes may come from any goroutine; reads must come from one.
type process struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *os.File
	reader  *bufio.Reader
	partial []byte
	maxLine int
	stderr  *stderrRing
	logger  *slog.Logger
	debug   bool

	writeMu     sync.Mutex
	stdinClosed atomic.Bool

	exited  chan struct{}
	waitErr error

	termOnce sync.Once
	outOnce  sync.Once
}

// startProcess spawns c. On failure every descriptor it opened is closed.
func startProcess(c Command, maxLine int, logger *slog.Logger, debug bool) (*process, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("%w: empty command path", ErrSpawn)
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrSpawn, err)
	}

	// A plain os.Pipe instead of StdoutPipe: Wait must not close the read
	// side while lines are still buffered, and the read side needs
	// deadlines.
	pr, pw, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSpawn, err)
	}
	cmd.Stdout = pw

	ring := newStderrRing(maxStderrLines)
	cmd.Stderr = ring

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("%w: start %s: %v", ErrSpawn, c.Path, err)
	}
	// The child holds its own copy.
	_ = pw.Close()

	p := &process{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  pr,
		reader:  bufio.NewReaderSize(pr, 64*1024),
		maxLine: maxLine,
		stderr:  ring,
		logger:  logger,
		debug:   debug,
		exited:  make(chan struct{}),
	}
	go p.reap()

	logger.Debug("claude process started", "pid", cmd.Process.Pid, "path", c.Path, "args", c.Args)
	return p, nil
}

func (p *process) reap() {
	p.waitErr = p.cmd.Wait()
	close(p.exited)
	p.logger.Debug("claude process exited", "pid", p.cmd.Process.Pid, "code", p.ExitCode(), "error", p.waitErr)

	// Wake a blocked reader so it switches to the drain deadline.
	_ = p.stdout.SetReadDeadline(time.Now().Add(exitDrainTimeout))
}

// Exited is closed once the process has been reaped.
func (p *process) Exited() <-chan struct{} {
	return p.exited
}

func (p *process) hasExited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code, or -1 while running or when killed by a
// signal.
func (p *process) ExitCode() int {
	if !p.hasExited() || p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Stderr returns the retained stderr tail.
func (p *process) Stderr() string {
	return p.stderr.String()
}

// WriteLine writes data plus a newline to stdin.
func (p *process) WriteLine(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.stdinClosed.Load() || p.hasExited() {
		return ErrDisconnected
	}
	if p.debug {
		p.logger.Debug("claude stdin", "line", string(data))
	}

	buf := make([]byte, 0, len(data)+1)
	buf = append(append(buf, data...), '\n')
	if _, err := p.stdin.Write(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

// ReadLine returns the next non-empty stdout line without its newline.
//
// It returns io.EOF once output has ended. A ctx deadline yields ErrTimeout
// and keeps any partial line for the next call. Cancelling ctx unblocks the
// read and returns ctx.Err().
func (p *process) ReadLine(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxReadErr(err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = p.stdout.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		draining := p.armDeadline(ctx)
		if err := ctx.Err(); err != nil {
			return nil, ctxReadErr(err)
		}

		chunk, err := p.reader.ReadSlice('\n')
		p.partial = append(p.partial, chunk...)

		switch {
		case err == nil:
			line := trimEOL(p.partial)
			p.partial = nil
			if len(line) == 0 {
				continue
			}
			if p.maxLine > 0 && len(line) > p.maxLine {
				return nil, fmt.Errorf("output line exceeds %d bytes", p.maxLine)
			}
			if p.debug {
				p.logger.Debug("claude stdout", "line", string(line))
			}
			return line, nil

		case errors.Is(err, bufio.ErrBufferFull):
			if p.maxLine > 0 && len(p.partial) > p.maxLine {
				p.partial = nil
				return nil, fmt.Errorf("output line exceeds %d bytes", p.maxLine)
			}

		case errors.Is(err, os.ErrDeadlineExceeded):
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxReadErr(ctxErr)
			}
			if draining {
				return p.finalLine()
			}
			// The reaper moved the deadline; rearm and keep reading.

		case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed):
			return p.finalLine()

		default:
			return nil, fmt.Errorf("read stdout: %w", err)
		}
	}
}

// armDeadline sets the read deadline for ctx, shortened to the drain window
// once the process has exited. It reports whether the drain window applies.
func (p *process) armDeadline(ctx context.Context) bool {
	for {
		exited := p.hasExited()
		deadline, _ := ctx.Deadline()
		draining := false
		if exited {
			drain := time.Now().Add(exitDrainTimeout)
			if deadline.IsZero() || drain.Before(deadline) {
				deadline = drain
				draining = true
			}
		}
		_ = p.stdout.SetReadDeadline(deadline)
		// The reaper may have set its own deadline in between.
		if exited || !p.hasExited() {
			return draining
		}
	}
}

// ctxReadErr maps a context error to the read result: a deadline is a
// recoverable timeout, a cancellation is returned as is.
func ctxReadErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// finalLine returns an unterminated trailing line, or io.EOF.
func (p *process) finalLine() ([]byte, error) {
	line := trimEOL(p.partial)
	p.partial = nil
	if len(line) == 0 {
		return nil, io.EOF
	}
	return line, nil
}

// hasOutput reports whether any stdout bytes are available within wait.
// Only valid before a reader starts.
func (p *process) hasOutput(wait time.Duration) bool {
	_ = p.stdout.SetReadDeadline(time.Now().Add(wait))
	defer p.stdout.SetReadDeadline(time.Time{})
	b, err := p.reader.Peek(1)
	return err == nil && len(b) > 0
}

// Terminate stops the process: close stdin, then SIGTERM, then SIGKILL,
// waiting grace between steps. The whole process group is killed at the
// end so no descendant outlives the session. Safe to call more than once.
func (p *process) Terminate(grace time.Duration) {
	p.termOnce.Do(func() {
		pid := p.cmd.Process.Pid

		p.stdinClosed.Store(true)
		_ = p.stdin.Close()

		if !p.waitExit(grace) {
			p.logger.Debug("claude process still running after stdin close, sending SIGTERM", "pid", pid)
			if err := signalGroup(p.cmd, sigTerm); err != nil {
				p.logger.Debug("sigterm failed", "pid", pid, "error", err)
			}
			if !p.waitExit(grace) {
				p.logger.Warn("claude process ignored SIGTERM, killing process group", "pid", pid)
			}
		}
		if err := signalGroup(p.cmd, sigKill); err != nil {
			p.logger.Debug("sigkill failed", "pid", pid, "error", err)
		}
		if !p.waitExit(max(grace, time.Second)) {
			p.logger.Error("claude process did not exit after SIGKILL", "pid", pid)
		}
	})
}

// closeOutput releases the read side. Call after the reader is done.
func (p *process) closeOutput() {
	p.outOnce.Do(func() {
		_ = p.stdout.Close()
	})
}

func (p *process) waitExit(d time.Duration) bool {
	if d <= 0 {
		return p.hasExited()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.exited:
		return true
	case <-t.C:
		return false
	}
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}
