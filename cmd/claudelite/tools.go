package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/randalmurphal/claudelite/claude"
	"github.com/randalmurphal/claudelite/claude/jsonl"
	"github.com/randalmurphal/claudelite/claudecontract"
)

// runSchema prints the JSON schema of claude.Config, the shape of a -config
// file.
func runSchema(out io.Writer) error {
	text, err := claude.SchemaFor(&claude.Config{})
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "  "); err != nil {
		return fmt.Errorf("indent schema: %w", err)
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(out)
	return err
}

func runVersion(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	claudePath := fs.String("claude-path", "claude", "path to the claude binary")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	v, err := claudecontract.CheckVersion(ctx, *claudePath, slog.Default())
	if err != nil {
		return err
	}
	fmt.Printf("claudelite %s\nclaude CLI %s (tested with %s)\n", version, v, claudecontract.TestedCLIVersion)
	return nil
}

func runTranscript(args []string) error {
	fs := flag.NewFlagSet("transcript", flag.ContinueOnError)
	follow := fs.Bool("follow", false, "keep printing messages as they are appended")
	summary := fs.Bool("summary", false, "print aggregate statistics as JSON")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: claudelite transcript [-follow] [-summary] <path>")
	}
	path := fs.Arg(0)

	if *summary {
		return printSummary(os.Stdout, path)
	}
	if err := dumpTranscript(os.Stdout, path); err != nil {
		return err
	}
	if !*follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return tailTranscript(ctx, os.Stdout, path)
}

func dumpTranscript(out io.Writer, path string) error {
	msgs, err := jsonl.ReadFile(path)
	if err != nil {
		return err
	}
	p := &printer{out: out}
	for _, msg := range msgs {
		p.print(msg)
	}
	fmt.Fprintln(out)
	return nil
}

func tailTranscript(ctx context.Context, out io.Writer, path string) error {
	r, err := jsonl.NewReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	p := &printer{out: out}
	for msg := range r.Tail(ctx) {
		p.print(msg)
	}
	return nil
}

func printSummary(out io.Writer, path string) error {
	s, err := jsonl.Summarize(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
