package session

import (
	"bytes"
	"strings"
	"sync"
)

const (
	maxStderrLines   = 100
	maxStderrPartial = 64 * 1024
)

// stderrRing keeps the last lines written by the process to stderr.
type stderrRing struct {
	mu      sync.Mutex
	lines   []string
	next    int
	full    bool
	partial []byte
}

func newStderrRing(n int) *stderrRing {
	return &stderrRing{lines: make([]string, n)}
}

func (r *stderrRing) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.partial = append(r.partial, b...)
	for {
		i := bytes.IndexByte(r.partial, '\n')
		if i < 0 {
			break
		}
		r.push(string(r.partial[:i]))
		r.partial = r.partial[i+1:]
	}
	if len(r.partial) > maxStderrPartial {
		r.push(string(r.partial))
		r.partial = nil
	}
	return len(b), nil
}

func (r *stderrRing) push(line string) {
	r.lines[r.next] = strings.TrimRight(line, "\r")
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
}

// String returns the retained lines, oldest first.
func (r *stderrRing) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	if r.full {
		out = append(out, r.lines[r.next:]...)
	}
	out = append(out, r.lines[:r.next]...)
	if len(r.partial) > 0 {
		out = append(out, string(r.partial))
	}
	return strings.Join(out, "\n")
}
