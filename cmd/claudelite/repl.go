package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/randalmurphal/claudelite/claude"
	"github.com/randalmurphal/claudelite/claude/session"
	"github.com/randalmurphal/claudelite/metrics"
)

// doubleInterruptWindow is how close two Ctrl+C presses must be to exit
// during a turn.
const doubleInterruptWindow = 2 * time.Second

type repl struct {
	cfg     claude.Config
	in      io.Reader
	out     io.Writer
	metrics *metrics.Listener
	logger  *slog.Logger

	// sigs delivers SIGINT and SIGTERM. Nil installs a signal.Notify channel.
	sigs <-chan os.Signal

	client        *claude.Client
	lastInterrupt time.Time
}

func (r *repl) run(ctx context.Context) error {
	if r.sigs == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		r.sigs = ch
	}

	r.out = &lockedWriter{w: r.out}
	p := &printer{out: r.out, debug: r.cfg.Debug}
	listeners := []session.Listener{session.ListenerFuncs{
		Message: p.print,
		Error: func(err error) {
			fmt.Fprintf(r.out, "\n[Error: %v]", err)
		},
	}}
	if r.metrics != nil {
		listeners = append(listeners, r.metrics)
	}

	c, err := claude.NewClient(r.cfg, listeners...)
	if err != nil {
		return err
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	r.client = c
	defer func() {
		_ = c.Close()
		fmt.Fprintln(r.out, "\n[Session ended. Goodbye!]")
	}()

	fmt.Fprintln(r.out, "Type a message to chat, 'quit' to end.")
	fmt.Fprintln(r.out, "Ctrl+C interrupts a response; twice within 2s, or at the prompt, exits.")
	fmt.Fprintf(r.out, "Session ID: %s\n", c.Session().SessionID())
	fmt.Fprintln(r.out, strings.Repeat("-", 60))

	lines := readLines(r.in)
	for {
		fmt.Fprint(r.out, "\nYou: ")
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			switch strings.ToLower(line) {
			case "":
				continue
			case "quit", "exit", "q":
				return nil
			}
			if err := c.Send(ctx, line); err != nil {
				if session.IsFatal(err) {
					return err
				}
				fmt.Fprintf(r.out, "\n[Error: %v]\nYou can try again with a new message.", err)
				continue
			}
			if r.waitTurn(ctx) {
				return nil
			}
			fmt.Fprintln(r.out)

		case <-r.sigs:
			return nil

		case <-c.Session().Done():
			if stderr := c.Session().Stderr(); stderr != "" {
				r.logger.Debug("claude stderr", "tail", stderr)
			}
			return fmt.Errorf("claude process exited")

		case <-ctx.Done():
			return nil
		}
	}
}

// waitTurn blocks until the current turn ends. It reports true when the
// user asked to exit.
func (r *repl) waitTurn(ctx context.Context) bool {
	done := make(chan error, 1)
	go func() { done <- r.client.Wait(r.cfg.TurnTimeout) }()

	for {
		select {
		case err := <-done:
			if !errors.Is(err, session.ErrTimeout) {
				return false
			}
			fmt.Fprintf(r.out, "\n[No result after %s, interrupting]", r.cfg.TurnTimeout)
			r.interrupt(ctx)
			go func() { done <- r.client.Wait(0) }()

		case sig := <-r.sigs:
			if sig == syscall.SIGTERM {
				return true
			}
			now := time.Now()
			if !r.lastInterrupt.IsZero() && now.Sub(r.lastInterrupt) < doubleInterruptWindow {
				fmt.Fprint(r.out, "\n\n[Double interrupt detected. Exiting...]")
				return true
			}
			r.lastInterrupt = now
			fmt.Fprint(r.out, "\n\n[Interrupting...]")
			r.interrupt(ctx)
			fmt.Fprint(r.out, "\n[Press Ctrl+C again within 2s to exit]")

		case <-ctx.Done():
			return true
		}
	}
}

func (r *repl) interrupt(ctx context.Context) {
	if err := r.client.Interrupt(ctx); err != nil && !errors.Is(err, session.ErrInvalidState) {
		fmt.Fprintf(r.out, "\n[Failed to interrupt: %v]", err)
	}
}

// readLines feeds input lines to a channel that is closed at EOF.
func readLines(in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}
