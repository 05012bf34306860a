package session

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/randalmurphal/claudelite/claudecontract"
)

// startupOutputWait is how long Connect looks for buffered output from a
// process that exited during the startup grace.
const startupOutputWait = 50 * time.Millisecond

// connectProcess spawns the process and watches it through the startup
// grace. On any failure the process is gone when it returns.
func connectProcess(ctx context.Context, c Command, cfg config) (*process, error) {
	p, err := startProcess(c, cfg.maxLineSize, cfg.logger, cfg.debug)
	if err != nil {
		return nil, &Error{Op: "connect", Err: err}
	}
	if err := awaitStartup(ctx, p, cfg.startupGrace); err != nil {
		p.Terminate(0)
		p.closeOutput()
		return nil, err
	}
	return p, nil
}

// awaitStartup fails if the process exits inside grace without writing
// anything. The CLI stays silent until the first request, so surviving the
// grace is the connect signal.
func awaitStartup(ctx context.Context, p *process, grace time.Duration) error {
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-p.Exited():
		if p.hasOutput(startupOutputWait) {
			return nil
		}
		return &Error{
			Op:     "connect",
			Err:    fmt.Errorf("%w: process exited with code %d before producing output", ErrConnection, p.ExitCode()),
			Stderr: lastLines(p.Stderr(), 20),
		}
	case <-ctx.Done():
		return &Error{Op: "connect", Err: ctx.Err()}
	}
}

// transcriptPath resolves the CLI transcript for a session.
func transcriptPath(cfg config, c Command, sessionID string) string {
	home := cfg.homeDir
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	dir := cfg.workDir
	if dir == "" {
		dir = c.Dir
	}
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return claudecontract.TranscriptPath(home, dir, sessionID)
}

// closeDetails returns the synthesized result subtype, its text, and the
// error to report for a connection that ended.
func closeDetails(p *process, byClient bool, readErr error) (string, string, error) {
	if byClient {
		return claudecontract.ResultSubtypeErrorDisconnected, "session disconnected", nil
	}
	stderr := p.Stderr()
	err := ErrDisconnected
	if readErr != nil {
		err = fmt.Errorf("%w: %w", ErrDisconnected, readErr)
	}
	return claudecontract.ResultSubtypeErrorProcessExited,
		exitDetail(p.ExitCode(), stderr),
		&Error{Op: "read", Err: err, Stderr: lastLines(stderr, 20)}
}
