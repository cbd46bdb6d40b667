package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageRole identifies the author of a chat message. Agent runtimes may
// use roles beyond the standard three, so any value is accepted.
type MessageRole = string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ContentPartType discriminates the entries of a multi-part message.
type ContentPartType string

const (
	ContentPartText     ContentPartType = "text"
	ContentPartImageURL ContentPartType = "image_url"
)

// ChatCompletionRequest is the body of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
	User     string        `json:"user,omitempty"`
}

// ChatMessage is one entry of the inbound conversation.
type ChatMessage struct {
	Role    MessageRole    `json:"role"`
	Content MessageContent `json:"content"`
}

// ContentPart is a single element of a multi-part message.
type ContentPart struct {
	Type     ContentPartType `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *ImageURL       `json:"image_url,omitempty"`
}

// ImageURL references an image. Inline images use a data URI whose payload
// after the last comma is base64 encoded.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// MessageContent holds either plain text or a list of content parts.
// The variant is fixed when the JSON is decoded: a JSON string yields
// plain text, a JSON array yields parts.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// TextContent returns plain-text content.
func TextContent(s string) MessageContent {
	return MessageContent{Text: s}
}

// PartsContent returns multi-part content. An empty call still produces
// the parts variant.
func PartsContent(parts ...ContentPart) MessageContent {
	if parts == nil {
		parts = []ContentPart{}
	}
	return MessageContent{Parts: parts}
}

// IsParts reports whether the content is the multi-part variant.
func (c MessageContent) IsParts() bool {
	return c.Parts != nil
}

// MarshalJSON writes plain text as a JSON string and parts as an array.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsParts() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON resolves the content variant from the JSON token type.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = MessageContent{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = TextContent(s)
		return nil
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return err
		}
		*c = PartsContent(parts...)
		return nil
	default:
		return fmt.Errorf("content must be a string or an array of parts, got %s", trimmed[:1])
	}
}

// ChatCompletionChunk is one streamed chunk in the OpenAI chat completion
// format. Nullable fields are pointers so they serialize as null.
type ChatCompletionChunk struct {
	ID                string        `json:"id"`
	Object            string        `json:"object"`
	Created           int64         `json:"created"`
	Model             string        `json:"model"`
	SystemFingerprint *string       `json:"system_fingerprint"`
	Choices           []ChunkChoice `json:"choices"`
}

// ChunkChoice carries the delta of a chunk. The role is reported on the
// choice rather than inside the delta.
type ChunkChoice struct {
	Index        int             `json:"index"`
	Delta        ChunkDelta      `json:"delta"`
	Role         MessageRole     `json:"role"`
	Logprobs     json.RawMessage `json:"logprobs"`
	FinishReason *string         `json:"finish_reason"`
}

// ChunkDelta is the incremental content of a chunk.
type ChunkDelta struct {
	Content string `json:"content"`
}

// NewChatCompletionChunk builds a single-choice chunk with null
// fingerprint, logprobs and finish reason.
func NewChatCompletionChunk(id, model string, created int64, role MessageRole, content string) *ChatCompletionChunk {
	return &ChatCompletionChunk{
		ID:      id,
		Object:  ObjectChatCompletionChunk,
		Created: created,
		Model:   model,
		Choices: []ChunkChoice{
			{
				Index:    0,
				Delta:    ChunkDelta{Content: content},
				Role:     role,
				Logprobs: json.RawMessage("null"),
			},
		},
	}
}
