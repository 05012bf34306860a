package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLine_Assistant(t *testing.T) {
	line := `{"type":"assistant","message":{"model":"claude-sonnet-4","content":[
		{"type":"text","text":"pong"},
		{"type":"thinking","thinking":"hmm","signature":"sig"},
		{"type":"tool_use","id":"tu_1","name":"Read","input":{"file_path":"/a"}},
		{"type":"server_tool_use","id":"x"}
	]},"parent_tool_use_id":"tu_0","session_id":"abc"}`

	msg, err := DecodeLine([]byte(line))
	require.NoError(t, err)

	a, ok := msg.(*AssistantMessage)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "claude-sonnet-4", a.Model)
	assert.Equal(t, "tu_0", a.ParentToolUseID)
	require.Len(t, a.Content, 4)
	assert.Equal(t, TextBlock{Text: "pong"}, a.Content[0])
	assert.Equal(t, ThinkingBlock{Text: "hmm", Signature: "sig"}, a.Content[1])
	assert.Equal(t, ToolUseBlock{ID: "tu_1", Name: "Read", Input: map[string]any{"file_path": "/a"}}, a.Content[2])

	unk, ok := a.Content[3].(UnknownBlock)
	require.True(t, ok)
	assert.Equal(t, "server_tool_use", unk.Type())
	assert.JSONEq(t, `{"type":"server_tool_use","id":"x"}`, string(unk.Raw))
}

func TestDecodeLine_AssistantError(t *testing.T) {
	msg, err := DecodeLine([]byte(`{"type":"assistant","message":{"model":"m","content":[]},"error":"rate_limit"}`))
	require.NoError(t, err)
	a := msg.(*AssistantMessage)
	assert.Equal(t, "rate_limit", a.Error)
	assert.Empty(t, a.Content)

	msg, err = DecodeLine([]byte(`{"type":"assistant","message":{"model":"m","content":[]},"error":{"code":1}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":1}`, msg.(*AssistantMessage).Error)
}

func TestDecodeLine_User(t *testing.T) {
	t.Run("string content", func(t *testing.T) {
		msg, err := DecodeLine([]byte(`{"type":"user","message":{"role":"user","content":"hello"}}`))
		require.NoError(t, err)
		u := msg.(*UserMessage)
		assert.Equal(t, []ContentBlock{TextBlock{Text: "hello"}}, u.Content)
	})

	t.Run("tool result", func(t *testing.T) {
		msg, err := DecodeLine([]byte(`{"type":"user","uuid":"u1","message":{"role":"user","content":[
			{"type":"tool_result","tool_use_id":"tu_1","content":"file body","is_error":true}
		]},"tool_use_result":{"stdout":"x"}}`))
		require.NoError(t, err)
		u := msg.(*UserMessage)
		assert.Equal(t, "u1", u.UUID)
		assert.Equal(t, []ContentBlock{ToolResultBlock{ToolUseID: "tu_1", Content: "file body", IsError: true}}, u.Content)
		assert.Equal(t, map[string]any{"stdout": "x"}, u.ToolUseResult)
	})

	t.Run("numeric content degrades", func(t *testing.T) {
		msg, err := DecodeLine([]byte(`{"type":"user","message":{"content":42}}`))
		require.NoError(t, err)
		assertUnknown(t, msg, "user")
	})
}

func TestDecodeLine_System(t *testing.T) {
	msg, err := DecodeLine([]byte(`{"type":"system","subtype":"init","session_id":"abc","model":"m","tools":["Read"]}`))
	require.NoError(t, err)

	s := msg.(*SystemMessage)
	assert.Equal(t, "init", s.Subtype)
	assert.Equal(t, "m", s.Data["model"])
	assert.Equal(t, "abc", SessionIDOf(s))
}

func TestDecodeLine_Result(t *testing.T) {
	line := `{"type":"result","subtype":"success","duration_ms":1200,"duration_api_ms":900,
		"is_error":false,"num_turns":2,"session_id":"abc","total_cost_usd":0.0123,
		"usage":{"input_tokens":10,"output_tokens":5},"result":"pong","structured_output":{"ok":true}}`

	msg, err := DecodeLine([]byte(line))
	require.NoError(t, err)

	r := msg.(*ResultMessage)
	assert.Equal(t, "success", r.Subtype)
	assert.EqualValues(t, 1200, r.DurationMS)
	assert.EqualValues(t, 900, r.DurationAPIMS)
	assert.False(t, r.IsError)
	assert.Equal(t, 2, r.NumTurns)
	assert.Equal(t, "abc", r.SessionID)
	assert.InDelta(t, 0.0123, r.Cost(), 1e-9)
	assert.Equal(t, "pong", r.Result)
	assert.Equal(t, map[string]any{"ok": true}, r.StructuredOutput)
	assert.True(t, IsTerminal(r))
	assert.Equal(t, "abc", SessionIDOf(r))
}

func TestDecodeLine_ResultOptionalFields(t *testing.T) {
	msg, err := DecodeLine([]byte(`{"type":"result","subtype":"error_during_execution","duration_ms":1,"duration_api_ms":0,"is_error":true,"num_turns":0,"session_id":""}`))
	require.NoError(t, err)

	r := msg.(*ResultMessage)
	assert.Nil(t, r.TotalCostUSD)
	assert.Zero(t, r.Cost())
	assert.Empty(t, r.Result)
	assert.True(t, r.IsError)
}

func TestDecodeLine_StreamEvent(t *testing.T) {
	msg, err := DecodeLine([]byte(`{"type":"stream_event","uuid":"e1","session_id":"abc","event":{"type":"content_block_delta"}}`))
	require.NoError(t, err)

	e := msg.(*StreamEvent)
	assert.Equal(t, "e1", e.UUID)
	assert.Equal(t, "content_block_delta", e.Event["type"])
	assert.Equal(t, "abc", SessionIDOf(e))
}

func TestDecodeLine_ControlResponse(t *testing.T) {
	msg, err := DecodeLine([]byte(`{"type":"control_response","response":{"subtype":"success","request_id":"req_1","response":{"x":1}}}`))
	require.NoError(t, err)

	c := msg.(*ControlResponseMessage)
	assert.Equal(t, "req_1", c.RequestID)
	assert.True(t, c.OK())
	assert.Equal(t, map[string]any{"x": float64(1)}, c.Payload)
	assert.False(t, IsTerminal(c))

	msg, err = DecodeLine([]byte(`{"type":"control_response","response":{"subtype":"error","request_id":"req_2","error":"no turn"}}`))
	require.NoError(t, err)
	assert.False(t, msg.(*ControlResponseMessage).OK())
	assert.Equal(t, "no turn", msg.(*ControlResponseMessage).Error)
}

func TestDecodeLine_DegradesToUnknown(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantType string
		degraded bool
	}{
		{name: "unrecognized type", line: `{"type":"future_feature_x","payload":{"a":1}}`, wantType: "future_feature_x"},
		{name: "missing type", line: `{"subtype":"init"}`, wantType: ""},
		{name: "non-string type", line: `{"type":7}`, wantType: ""},
		{name: "cli control request", line: `{"type":"control_request","request_id":"r","request":{"subtype":"can_use_tool"}}`, wantType: "control_request"},
		{name: "assistant without model", line: `{"type":"assistant","message":{"content":[]}}`, wantType: "assistant", degraded: true},
		{name: "assistant content not a list", line: `{"type":"assistant","message":{"model":"m","content":"hi"}}`, wantType: "assistant", degraded: true},
		{name: "text block without text", line: `{"type":"assistant","message":{"model":"m","content":[{"type":"text"}]}}`, wantType: "assistant", degraded: true},
		{name: "mistyped text", line: `{"type":"assistant","message":{"model":"m","content":[{"type":"text","text":5}]}}`, wantType: "assistant", degraded: true},
		{name: "tool use without input", line: `{"type":"assistant","message":{"model":"m","content":[{"type":"tool_use","id":"1","name":"Bash"}]}}`, wantType: "assistant", degraded: true},
		{name: "system without subtype", line: `{"type":"system"}`, wantType: "system", degraded: true},
		{name: "result without session", line: `{"type":"result","subtype":"success","duration_ms":1,"duration_api_ms":1,"is_error":false,"num_turns":1}`, wantType: "result", degraded: true},
		{name: "result with string duration", line: `{"type":"result","subtype":"success","duration_ms":"1","duration_api_ms":1,"is_error":false,"num_turns":1,"session_id":"s"}`, wantType: "result", degraded: true},
		{name: "stream event without event", line: `{"type":"stream_event","uuid":"u","session_id":"s"}`, wantType: "stream_event", degraded: true},
		{name: "control response without id", line: `{"type":"control_response","response":{"subtype":"success"}}`, wantType: "control_response", degraded: true},
		{name: "user without message", line: `{"type":"user"}`, wantType: "user", degraded: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeLine([]byte(tt.line))
			require.NoError(t, err)
			unk := assertUnknown(t, msg, tt.wantType)
			assert.JSONEq(t, tt.line, string(unk.Raw))
			if tt.degraded {
				assert.Error(t, unk.Cause)
			} else {
				assert.NoError(t, unk.Cause)
			}
		})
	}
}

func TestDecodeLine_NotARecord(t *testing.T) {
	for _, line := range []string{`not json`, `{"type":"assistant"`, `[1,2]`, `"text"`, `null`, ``} {
		t.Run(line, func(t *testing.T) {
			msg, err := DecodeLine([]byte(line))
			assert.Nil(t, msg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode))

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, line, de.Line)
		})
	}
}

func TestDecodeLine_CopiesInput(t *testing.T) {
	buf := []byte(`{"type":"future","v":1}`)
	msg, err := DecodeLine(buf)
	require.NoError(t, err)

	copy(buf, []byte(`XXXXXXXXXXXX`))
	assert.True(t, json.Valid(msg.(*UnknownMessage).Raw))
}

// A stream mixing unknown and malformed records keeps decoding every
// following line.
func TestDecodeLine_StreamRobustness(t *testing.T) {
	lines := []string{
		`{"type":"system","subtype":"init","session_id":"abc"}`,
		`garbage`,
		`{"type":"future_feature_x"}`,
		`{"type":"assistant","message":{"model":"m","content":[{"type":"text","text":"pong"}]}}`,
		`{"type":"result","subtype":"success","duration_ms":1,"duration_api_ms":1,"is_error":false,"num_turns":1,"session_id":"abc"}`,
	}

	var types []string
	var decodeErrors int
	for _, l := range lines {
		msg, err := DecodeLine([]byte(l))
		if err != nil {
			decodeErrors++
			continue
		}
		types = append(types, msg.Type())
	}

	assert.Equal(t, 1, decodeErrors)
	assert.Equal(t, []string{"system", "future_feature_x", "assistant", "result"}, types)
}

func assertUnknown(t *testing.T, msg Message, wantType string) *UnknownMessage {
	t.Helper()
	unk, ok := msg.(*UnknownMessage)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, wantType, unk.Type())
	return unk
}
