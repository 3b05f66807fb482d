// Package llm abstracts the language-model provider behind a small interface:
// given a system prompt, message history, and an optional tool set, produce
// text and/or tool invocations. The assistant layer never talks to a vendor
// SDK directly.
package llm

import (
	"context"
	"errors"
	"time"
)

// TimeoutLLMCall bounds every single model call so a stalled provider cannot
// hold a chat request open indefinitely.
const TimeoutLLMCall = 60 * time.Second

// Domain errors for the llm package.
var (
	ErrNotConfigured = errors.New("llm provider not configured")
	ErrNoChoices     = errors.New("llm returned no choices")
)

// Provider is the interface all LLM providers must implement.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai").
	Name() string
	// Generate sends a completion request and returns the response.
	Generate(ctx context.Context, req *Request) (*Response, error)
	// GenerateStream sends a completion request, invoking onDelta for each
	// text fragment as it arrives, and returns the assembled response.
	// Tool calls are not streamed; callers use Generate for tool steps.
	GenerateStream(ctx context.Context, req *Request, onDelta func(string)) (*Response, error)
}

// Request represents an LLM generation request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Tools       []Tool
	JSONObject  bool // constrain output to a single JSON object
	NoTools     bool // suppress tool use even when Tools is set (forces a textual answer)
}

// Message represents a chat message. For role "assistant" ToolCalls may be
// set; for role "tool" ToolCallID and Name identify the call being answered.
type Message struct {
	Role       string // "system", "user", "assistant", "tool"
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// Tool describes a callable operation offered to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON Schema object
}

// ToolCall is the model's request to invoke a tool. Arguments is the raw
// JSON argument object as emitted by the model; validation happens at the
// tool-registry boundary.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Response represents an LLM generation response.
type Response struct {
	Content      string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
	ToolCalls    []ToolCall
}
