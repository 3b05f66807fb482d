// Package testutil provides shared test doubles for opsdesk tests.
package testutil

import (
	"context"
	"sync"

	"github.com/darioristic/opsdesk/internal/llm"
)

// MockProvider implements llm.Provider with a single canned response.
// Set Err to simulate provider failures.
type MockProvider struct {
	ProviderName string // provider identifier, e.g. "openai"
	Content      string // canned response; empty = "mock response"
	Err          error  // if set, Generate returns this error
}

// Name implements llm.Provider.
func (m *MockProvider) Name() string { return m.ProviderName }

// Generate returns the canned response or the configured error.
func (m *MockProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	content := m.Content
	if content == "" {
		content = "mock response"
	}
	return &llm.Response{
		Content:      content,
		FinishReason: "stop",
		InputTokens:  10,
		OutputTokens: 20,
		Model:        req.Model,
	}, nil
}

// GenerateStream emits the canned response as a single delta.
func (m *MockProvider) GenerateStream(ctx context.Context, req *llm.Request, onDelta func(string)) (*llm.Response, error) {
	resp, err := m.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	onDelta(resp.Content)
	return resp, nil
}

// ScriptedProvider implements llm.Provider with a fixed response sequence,
// recording every request for assertions. Call N gets Responses[N], or the
// last response once the sequence is exhausted. Set ErrOnCall (1-based) and
// Err to fail a specific call.
type ScriptedProvider struct {
	mu               sync.Mutex
	Responses        []*llm.Response
	CallCount        int
	ReceivedRequests []*llm.Request
	ErrOnCall        int   // 1-based; 0 = never
	Err              error // returned when ErrOnCall is hit
}

// Name implements llm.Provider.
func (p *ScriptedProvider) Name() string { return "scripted" }

// Generate returns the next scripted response and records the request.
func (p *ScriptedProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.CallCount++
	call := p.CallCount

	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	recorded := *req
	recorded.Messages = msgs
	p.ReceivedRequests = append(p.ReceivedRequests, &recorded)

	idx := call - 1
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	var resp *llm.Response
	if idx >= 0 {
		resp = p.Responses[idx]
	}
	p.mu.Unlock()

	if p.ErrOnCall > 0 && call == p.ErrOnCall && p.Err != nil {
		return nil, p.Err
	}
	if resp == nil {
		return &llm.Response{Content: "scripted response", FinishReason: "stop"}, nil
	}
	return resp, nil
}

// GenerateStream returns the next scripted response, emitting its content as
// a single delta when non-empty.
func (p *ScriptedProvider) GenerateStream(ctx context.Context, req *llm.Request, onDelta func(string)) (*llm.Response, error) {
	resp, err := p.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Content != "" {
		onDelta(resp.Content)
	}
	return resp, nil
}
