package protocol

import (
	"encoding/json"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/randalmurphal/claudelite/claudecontract"
)

const requestIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

type userRequest struct {
	Type            string      `json:"type"`
	Message         userContent `json:"message"`
	ParentToolUseID *string     `json:"parent_tool_use_id"`
	SessionID       string      `json:"session_id,omitempty"`
}

type userContent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type controlRequest struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id"`
	Request   controlBody `json:"request"`
}

type controlBody struct {
	Subtype string `json:"subtype"`
}

// EncodeUserRequest encodes a prompt for the CLI's stdin, without the
// trailing newline. sessionID continues an existing conversation and is
// omitted when empty.
func EncodeUserRequest(prompt, sessionID string) ([]byte, error) {
	data, err := json.Marshal(userRequest{
		Type:      claudecontract.TypeUser,
		Message:   userContent{Role: claudecontract.RoleUser, Content: prompt},
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode user request: %w", err)
	}
	return data, nil
}

// EncodeInterrupt encodes an interrupt control request.
func EncodeInterrupt(requestID string) ([]byte, error) {
	data, err := json.Marshal(controlRequest{
		Type:      claudecontract.TypeControlRequest,
		RequestID: requestID,
		Request:   controlBody{Subtype: claudecontract.ControlSubtypeInterrupt},
	})
	if err != nil {
		return nil, fmt.Errorf("encode interrupt: %w", err)
	}
	return data, nil
}

// NewRequestID returns a fresh control request id such as "req_3fZk...".
func NewRequestID() string {
	id, err := gonanoid.Generate(requestIDAlphabet, 16)
	if err != nil {
		panic(fmt.Sprintf("generate request id: %v", err))
	}
	return "req_" + id
}
