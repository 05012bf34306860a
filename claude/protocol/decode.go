package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/claudelite/claudecontract"
)

// DecodeLine decodes one stream-json line.
//
// The only error is a *DecodeError, returned when line is not a JSON object.
// Unrecognized types, a missing type, and known types with missing or
// mistyped required fields all decode to *UnknownMessage so the stream can
// carry on.
func DecodeLine(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, &DecodeError{Line: string(line), Err: err}
	}
	if fields == nil {
		return nil, &DecodeError{Line: string(line), Err: errors.New("not an object")}
	}

	// The caller may reuse line's backing array.
	raw := json.RawMessage(bytes.Clone(line))

	var typ string
	if t, ok := fields["type"]; !ok || json.Unmarshal(t, &typ) != nil {
		return &UnknownMessage{Raw: raw}, nil
	}

	var (
		msg Message
		err error
	)
	switch typ {
	case claudecontract.TypeAssistant:
		msg, err = decodeAssistant(raw)
	case claudecontract.TypeUser:
		msg, err = decodeUser(raw)
	case claudecontract.TypeSystem:
		msg, err = decodeSystem(raw)
	case claudecontract.TypeResult:
		msg, err = decodeResult(raw)
	case claudecontract.TypeStreamEvent:
		msg, err = decodeStreamEvent(raw)
	case claudecontract.TypeControlResponse:
		msg, err = decodeControlResponse(raw)
	default:
		return &UnknownMessage{MessageType: typ, Raw: raw}, nil
	}
	if err != nil {
		return &UnknownMessage{MessageType: typ, Raw: raw, Cause: err}, nil
	}
	return msg, nil
}

type wireAssistant struct {
	Message *struct {
		Model   *string           `json:"model"`
		Content []json.RawMessage `json:"content"`
	} `json:"message"`
	ParentToolUseID *string         `json:"parent_tool_use_id"`
	Error           json.RawMessage `json:"error"`
}

func decodeAssistant(raw []byte) (Message, error) {
	var w wireAssistant
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	switch {
	case w.Message == nil:
		return nil, missingField("message")
	case w.Message.Model == nil:
		return nil, missingField("message.model")
	case w.Message.Content == nil:
		return nil, missingField("message.content")
	}

	blocks, err := decodeBlocks(w.Message.Content)
	if err != nil {
		return nil, err
	}
	return &AssistantMessage{
		Content:         blocks,
		Model:           *w.Message.Model,
		ParentToolUseID: deref(w.ParentToolUseID),
		Error:           looseString(w.Error),
	}, nil
}

type wireUser struct {
	Message *struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	UUID            string  `json:"uuid"`
	ParentToolUseID *string `json:"parent_tool_use_id"`
	ToolUseResult   any     `json:"tool_use_result"`
}

func decodeUser(raw []byte) (Message, error) {
	var w wireUser
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w.Message == nil || isNull(w.Message.Content) {
		return nil, missingField("message.content")
	}

	var blocks []ContentBlock
	switch w.Message.Content[0] {
	case '"':
		var text string
		if err := json.Unmarshal(w.Message.Content, &text); err != nil {
			return nil, err
		}
		blocks = []ContentBlock{TextBlock{Text: text}}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(w.Message.Content, &items); err != nil {
			return nil, err
		}
		var err error
		if blocks, err = decodeBlocks(items); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("message.content: want string or array")
	}

	return &UserMessage{
		Content:         blocks,
		UUID:            w.UUID,
		ParentToolUseID: deref(w.ParentToolUseID),
		ToolUseResult:   w.ToolUseResult,
	}, nil
}

func decodeSystem(raw []byte) (Message, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	subtype, ok := data["subtype"].(string)
	if !ok {
		return nil, missingField("subtype")
	}
	return &SystemMessage{Subtype: subtype, Data: data}, nil
}

type wireResult struct {
	Subtype          *string        `json:"subtype"`
	DurationMS       *int64         `json:"duration_ms"`
	DurationAPIMS    *int64         `json:"duration_api_ms"`
	IsError          *bool          `json:"is_error"`
	NumTurns         *int           `json:"num_turns"`
	SessionID        *string        `json:"session_id"`
	TotalCostUSD     *float64       `json:"total_cost_usd"`
	Usage            map[string]any `json:"usage"`
	Result           *string        `json:"result"`
	StructuredOutput any            `json:"structured_output"`
}

func decodeResult(raw []byte) (Message, error) {
	var w wireResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	switch {
	case w.Subtype == nil:
		return nil, missingField("subtype")
	case w.DurationMS == nil:
		return nil, missingField("duration_ms")
	case w.DurationAPIMS == nil:
		return nil, missingField("duration_api_ms")
	case w.IsError == nil:
		return nil, missingField("is_error")
	case w.NumTurns == nil:
		return nil, missingField("num_turns")
	case w.SessionID == nil:
		return nil, missingField("session_id")
	}
	return &ResultMessage{
		Subtype:          *w.Subtype,
		DurationMS:       *w.DurationMS,
		DurationAPIMS:    *w.DurationAPIMS,
		IsError:          *w.IsError,
		NumTurns:         *w.NumTurns,
		SessionID:        *w.SessionID,
		TotalCostUSD:     w.TotalCostUSD,
		Usage:            w.Usage,
		Result:           deref(w.Result),
		StructuredOutput: w.StructuredOutput,
	}, nil
}

type wireStreamEvent struct {
	UUID            *string        `json:"uuid"`
	SessionID       *string        `json:"session_id"`
	Event           map[string]any `json:"event"`
	ParentToolUseID *string        `json:"parent_tool_use_id"`
}

func decodeStreamEvent(raw []byte) (Message, error) {
	var w wireStreamEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	switch {
	case w.UUID == nil:
		return nil, missingField("uuid")
	case w.SessionID == nil:
		return nil, missingField("session_id")
	case w.Event == nil:
		return nil, missingField("event")
	}
	return &StreamEvent{
		UUID:            *w.UUID,
		SessionID:       *w.SessionID,
		Event:           w.Event,
		ParentToolUseID: deref(w.ParentToolUseID),
	}, nil
}

type wireControlResponse struct {
	Response *struct {
		Subtype   string         `json:"subtype"`
		RequestID *string        `json:"request_id"`
		Error     string         `json:"error"`
		Response  map[string]any `json:"response"`
	} `json:"response"`
}

func decodeControlResponse(raw []byte) (Message, error) {
	var w wireControlResponse
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w.Response == nil || w.Response.RequestID == nil {
		return nil, missingField("response.request_id")
	}
	return &ControlResponseMessage{
		RequestID: *w.Response.RequestID,
		Subtype:   w.Response.Subtype,
		Error:     w.Response.Error,
		Payload:   w.Response.Response,
	}, nil
}

type wireBlock struct {
	Type      string         `json:"type"`
	Text      *string        `json:"text"`
	Thinking  *string        `json:"thinking"`
	Signature *string        `json:"signature"`
	ID        *string        `json:"id"`
	Name      *string        `json:"name"`
	Input     map[string]any `json:"input"`
	ToolUseID *string        `json:"tool_use_id"`
	Content   any            `json:"content"`
	IsError   *bool          `json:"is_error"`
}

func decodeBlocks(items []json.RawMessage) ([]ContentBlock, error) {
	blocks := make([]ContentBlock, 0, len(items))
	for i, item := range items {
		b, err := decodeBlock(item)
		if err != nil {
			return nil, fmt.Errorf("content[%d]: %w", i, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func decodeBlock(item json.RawMessage) (ContentBlock, error) {
	var w wireBlock
	if err := json.Unmarshal(item, &w); err != nil {
		return nil, err
	}

	switch w.Type {
	case claudecontract.ContentTypeText:
		if w.Text == nil {
			return nil, missingField("text")
		}
		return TextBlock{Text: *w.Text}, nil

	case claudecontract.ContentTypeThinking:
		if w.Thinking == nil || w.Signature == nil {
			return nil, missingField("thinking")
		}
		return ThinkingBlock{Text: *w.Thinking, Signature: *w.Signature}, nil

	case claudecontract.ContentTypeToolUse:
		if w.ID == nil || w.Name == nil || w.Input == nil {
			return nil, missingField("tool_use")
		}
		return ToolUseBlock{ID: *w.ID, Name: *w.Name, Input: w.Input}, nil

	case claudecontract.ContentTypeToolResult:
		if w.ToolUseID == nil {
			return nil, missingField("tool_use_id")
		}
		return ToolResultBlock{ToolUseID: *w.ToolUseID, Content: w.Content, IsError: deref(w.IsError)}, nil

	case claudecontract.ContentTypeInterrupt:
		return InterruptBlock{}, nil

	default:
		return UnknownBlock{BlockType: w.Type, Raw: bytes.Clone(item)}, nil
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// looseString returns a JSON string's value, the raw JSON text for any other
// non-null value, or "".
func looseString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
