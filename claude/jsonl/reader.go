// Package jsonl reads and tails the JSONL transcripts the Claude CLI writes
// for every session:
//
//	~/.claude/projects/{normalized-path}/{sessionId}.jsonl
//
// Lines are decoded with protocol.DecodeLine, so a transcript yields the
// same message values a live session does. Records the decoder does not
// know (queue operations, summaries) come back as *protocol.UnknownMessage.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/randalmurphal/claudelite/claude/protocol"
)

const (
	maxLineSize  = 10 * 1024 * 1024
	pollInterval = 100 * time.Millisecond
	tailBuffer   = 100
)

// Reader reads one transcript file.
type Reader struct {
	path    string
	file    *os.File
	skipped int
	logger  *slog.Logger
}

// NewReader opens the transcript at path.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open jsonl file: %w", err)
	}
	return &Reader{path: path, file: file, logger: slog.Default()}, nil
}

// Path returns the file path being read.
func (r *Reader) Path() string {
	return r.path
}

// Skipped returns how many lines failed to decode so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ReadAll reads every newline-terminated message in the file.
func (r *Reader) ReadAll() ([]protocol.Message, error) {
	msgs, _, err := r.ReadFrom(0)
	return msgs, err
}

// ReadFrom reads the messages starting at byte offset and returns the
// offset just past the last complete line. An unterminated trailing line
// is left for the next call.
func (r *Reader) ReadFrom(offset int64) ([]protocol.Message, int64, error) {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek to offset: %w", err)
	}

	var msgs []protocol.Message
	offset, err := r.scan(bufio.NewReaderSize(r.file, 64*1024), offset, func(msg protocol.Message) bool {
		msgs = append(msgs, msg)
		return true
	})
	return msgs, offset, err
}

// scan decodes complete lines from br, calling fn for each message until fn
// returns false. It returns the offset after the last consumed line.
func (r *Reader) scan(br *bufio.Reader, offset int64, fn func(protocol.Message) bool) (int64, error) {
	for {
		line, err := br.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return offset, nil
			}
			return offset, fmt.Errorf("read jsonl: %w", err)
		}
		offset += int64(len(line))

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if len(line) > maxLineSize {
			r.skipped++
			continue
		}
		msg, err := protocol.DecodeLine(line)
		if err != nil {
			r.skipped++
			r.logger.Debug("skipping undecodable transcript line", "path", r.path, "error", err)
			continue
		}
		if !fn(msg) {
			return offset, nil
		}
	}
}

// Tail follows the file from its current end and sends every appended
// message. The channel is closed when ctx is done or the file can no longer
// be read. A truncated file is read again from the start.
//
// Tail watches the containing directory with fsnotify and polls when no
// watcher is available.
func (r *Reader) Tail(ctx context.Context) <-chan protocol.Message {
	ch := make(chan protocol.Message, tailBuffer)

	go func() {
		defer close(ch)

		offset, err := r.file.Seek(0, io.SeekEnd)
		if err != nil {
			r.logger.Warn("transcript seek failed", "path", r.path, "error", err)
			return
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			r.logger.Debug("fsnotify unavailable, polling transcript", "error", err)
			r.tailPolling(ctx, ch, offset)
			return
		}
		defer watcher.Close()

		// The directory, not the file: editors and the CLI may replace it.
		if err := watcher.Add(filepath.Dir(r.path)); err != nil {
			r.logger.Debug("watch failed, polling transcript", "path", r.path, "error", err)
			r.tailPolling(ctx, ch, offset)
			return
		}
		r.tailWithWatcher(ctx, ch, watcher, offset)
	}()

	return ch
}

func (r *Reader) tailWithWatcher(ctx context.Context, ch chan<- protocol.Message, watcher *fsnotify.Watcher, offset int64) {
	baseName := filepath.Base(r.path)
	// Writes can land between Seek and Add.
	offset, ok := r.readNew(ctx, ch, offset)
	if !ok {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, open := <-watcher.Events:
			if !open {
				return
			}
			if filepath.Base(ev.Name) != baseName || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if offset, ok = r.readNew(ctx, ch, offset); !ok {
				return
			}

		case err, open := <-watcher.Errors:
			if !open {
				return
			}
			r.logger.Debug("transcript watcher error", "path", r.path, "error", err)
		}
	}
}

func (r *Reader) tailPolling(ctx context.Context, ch chan<- protocol.Message, offset int64) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var ok bool
			if offset, ok = r.readNew(ctx, ch, offset); !ok {
				return
			}
		}
	}
}

// readNew sends the messages appended after offset. It reports false when
// tailing should stop.
func (r *Reader) readNew(ctx context.Context, ch chan<- protocol.Message, offset int64) (int64, bool) {
	info, err := r.file.Stat()
	if err != nil {
		r.logger.Warn("transcript stat failed", "path", r.path, "error", err)
		return offset, false
	}
	if info.Size() < offset {
		r.logger.Debug("transcript truncated, rereading", "path", r.path)
		offset = 0
	}
	if info.Size() == offset {
		return offset, true
	}
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return offset, false
	}

	stopped := false
	offset, err = r.scan(bufio.NewReader(r.file), offset, func(msg protocol.Message) bool {
		select {
		case ch <- msg:
			return true
		case <-ctx.Done():
			stopped = true
			return false
		}
	})
	if err != nil {
		r.logger.Warn("transcript read failed", "path", r.path, "error", err)
		return offset, false
	}
	return offset, !stopped
}

// ReadFile reads every message in the transcript at path.
func ReadFile(path string) ([]protocol.Message, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadAll()
}

// FindSessionFiles returns every .jsonl file under projectsDir, normally
// ~/.claude/projects.
func FindSessionFiles(projectsDir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(projectsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == projectsDir {
				return err
			}
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(path, ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk projects dir: %w", err)
	}
	return files, nil
}

// Summary holds aggregate statistics for one transcript.
type Summary struct {
	SessionID    string
	MessageCount int
	Types        map[string]int // message type -> count
	Models       map[string]int // model -> assistant message count
	ToolCalls    int
	CostUSD      float64
	Skipped      int
}

// envelope is the transcript framing around a message. Transcript lines
// name the session "sessionId"; stream-json lines use "session_id".
type envelope struct {
	TranscriptID string `json:"sessionId"`
	StreamID     string `json:"session_id"`
}

// Summarize reads the transcript at path and aggregates it.
func Summarize(path string) (*Summary, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	s := &Summary{
		Types:  make(map[string]int),
		Models: make(map[string]int),
	}
	br := bufio.NewReaderSize(r.file, 64*1024)
	for {
		line, readErr := br.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			s.add(line, r)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read jsonl: %w", readErr)
		}
	}
	s.Skipped = r.skipped
	return s, nil
}

func (s *Summary) add(line []byte, r *Reader) {
	msg, err := protocol.DecodeLine(line)
	if err != nil {
		r.skipped++
		return
	}
	s.MessageCount++
	typ := msg.Type()
	if typ == "" {
		typ = "unknown"
	}
	s.Types[typ]++

	var env envelope
	if json.Unmarshal(line, &env) == nil {
		if env.TranscriptID != "" {
			s.SessionID = env.TranscriptID
		} else if env.StreamID != "" {
			s.SessionID = env.StreamID
		}
	}

	switch m := msg.(type) {
	case *protocol.AssistantMessage:
		if m.Model != "" {
			s.Models[m.Model]++
		}
		s.ToolCalls += len(protocol.ToolUses([]protocol.Message{m}))
	case *protocol.ResultMessage:
		s.CostUSD += m.Cost()
	}
}
