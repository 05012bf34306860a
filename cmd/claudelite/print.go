package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/randalmurphal/claudelite/claude/protocol"
)

// printer renders messages for a terminal.
type printer struct {
	out   io.Writer
	debug bool
}

func (p *printer) print(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.AssistantMessage:
		for _, b := range m.Content {
			switch b := b.(type) {
			case protocol.TextBlock:
				fmt.Fprintf(p.out, "\nClaude: %s", b.Text)
			case protocol.ToolUseBlock:
				fmt.Fprintf(p.out, "\n[Tool: %s] %v", b.Name, b.Input)
			case protocol.ThinkingBlock:
				fmt.Fprint(p.out, "\n[Thinking...]")
			}
		}
	case *protocol.UserMessage:
		for _, b := range m.Content {
			switch b := b.(type) {
			case protocol.TextBlock:
				fmt.Fprintf(p.out, "\nYou: %s", b.Text)
			case protocol.InterruptBlock:
				fmt.Fprint(p.out, "\n[Interrupted]")
			}
		}
	case *protocol.SystemMessage:
		if p.debug {
			fmt.Fprintf(p.out, "\n[System: %s]", m.Subtype)
		}
	case *protocol.ResultMessage:
		switch {
		case m.IsError:
			fmt.Fprintf(p.out, "\n[Error: %s]", errorText(m))
		case m.TotalCostUSD != nil:
			fmt.Fprintf(p.out, "\n\n[Cost: $%.4f | Turns: %d]", m.Cost(), m.NumTurns)
		case m.NumTurns > 0:
			fmt.Fprintf(p.out, "\n\n[Turns: %d]", m.NumTurns)
		}
	case *protocol.UnknownMessage:
		if p.debug {
			fmt.Fprintf(p.out, "\n[%s]", m.Raw)
		}
	}
}

func errorText(m *protocol.ResultMessage) string {
	if m.Result != "" {
		return m.Result
	}
	return m.Subtype
}

// lockedWriter serializes writes from listener callbacks and the prompt
// loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}
