package protocol

import "strings"

// Text concatenates the text blocks of an assistant or user message.
// Other message types yield "".
func Text(msg Message) string {
	var blocks []ContentBlock
	switch m := msg.(type) {
	case *AssistantMessage:
		blocks = m.Content
	case *UserMessage:
		blocks = m.Content
	default:
		return ""
	}

	var sb strings.Builder
	for _, b := range blocks {
		if t, ok := b.(TextBlock); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// FinalText returns the text of the last assistant message in msgs that
// carries any text. Trailing tool-use-only messages are skipped.
func FinalText(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if a, ok := msgs[i].(*AssistantMessage); ok && hasText(a.Content) {
			return Text(a)
		}
	}
	return ""
}

func hasText(blocks []ContentBlock) bool {
	for _, b := range blocks {
		if _, ok := b.(TextBlock); ok {
			return true
		}
	}
	return false
}

// ToolUses returns every tool_use block across msgs, in order.
func ToolUses(msgs []Message) []ToolUseBlock {
	var out []ToolUseBlock
	for _, msg := range msgs {
		a, ok := msg.(*AssistantMessage)
		if !ok {
			continue
		}
		for _, b := range a.Content {
			if tu, ok := b.(ToolUseBlock); ok {
				out = append(out, tu)
			}
		}
	}
	return out
}
