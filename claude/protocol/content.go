package protocol

import (
	"encoding/json"

	"github.com/randalmurphal/claudelite/claudecontract"
)

// ContentBlock is one element of a message's content.
//
// Implementations: TextBlock, ThinkingBlock, ToolUseBlock, ToolResultBlock,
// InterruptBlock and UnknownBlock.
type ContentBlock interface {
	Type() string
	isContentBlock()
}

type TextBlock struct {
	Text string
}

// ThinkingBlock is extended thinking output. The wire field is "thinking".
type ThinkingBlock struct {
	Text      string
	Signature string
}

type ToolUseBlock struct {
	ID    string
	Name  string
	Input map[string]any
}

type ToolResultBlock struct {
	ToolUseID string
	// Content is a string or a list of content objects, as sent.
	Content any
	IsError bool
}

// InterruptBlock marks a user interrupt. It is only ever created locally.
type InterruptBlock struct{}

// UnknownBlock keeps a content block of a type this package does not know.
type UnknownBlock struct {
	BlockType string
	Raw       json.RawMessage
}

func (TextBlock) Type() string       { return claudecontract.ContentTypeText }
func (ThinkingBlock) Type() string   { return claudecontract.ContentTypeThinking }
func (ToolUseBlock) Type() string    { return claudecontract.ContentTypeToolUse }
func (ToolResultBlock) Type() string { return claudecontract.ContentTypeToolResult }
func (InterruptBlock) Type() string  { return claudecontract.ContentTypeInterrupt }
func (b UnknownBlock) Type() string  { return b.BlockType }

func (TextBlock) isContentBlock()       {}
func (ThinkingBlock) isContentBlock()   {}
func (ToolUseBlock) isContentBlock()    {}
func (ToolResultBlock) isContentBlock() {}
func (InterruptBlock) isContentBlock()  {}
func (UnknownBlock) isContentBlock()    {}
