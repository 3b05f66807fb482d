package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockCompletionServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAIProvider_EmptyKey(t *testing.T) {
	p, err := NewOpenAIProvider("")
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, p)
}

func TestNewOpenAIProvider_WithKey(t *testing.T) {
	p, err := NewOpenAIProvider("sk-test")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestOpenAIProvider_Generate(t *testing.T) {
	srv := mockCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3}
		}`)
	})

	p := NewOpenAIProviderWithBaseURL("test-key", srv.URL)
	resp, err := p.Generate(context.Background(), &Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 3, resp.OutputTokens)
	assert.Empty(t, resp.ToolCalls)
}

func TestOpenAIProvider_Generate_ToolCalls(t *testing.T) {
	srv := mockCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Tools []struct {
				Function struct {
					Name string `json:"name"`
				} `json:"function"`
			} `json:"tools"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Tools, 1)
		assert.Equal(t, "get_overdue_invoices", body.Tools[0].Function.Name)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "get_overdue_invoices", "arguments": "{\"limit\":5}"}}
			]}, "finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 40, "completion_tokens": 10}
		}`)
	})

	p := NewOpenAIProviderWithBaseURL("test-key", srv.URL)
	resp, err := p.Generate(context.Background(), &Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "overdue?"}},
		Tools: []Tool{{
			Name:        "get_overdue_invoices",
			Description: "List overdue invoices",
			Parameters:  map[string]interface{}{"type": "object"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "get_overdue_invoices", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"limit":5}`, resp.ToolCalls[0].Arguments)
}

func TestOpenAIProvider_Generate_NoToolsSuppressesToolSet(t *testing.T) {
	srv := mockCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasTools := body["tools"]
		assert.False(t, hasTools)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model": "gpt-4o", "choices": [{"index": 0, "message": {"role": "assistant", "content": "final"}, "finish_reason": "stop"}]}`)
	})

	p := NewOpenAIProviderWithBaseURL("test-key", srv.URL)
	resp, err := p.Generate(context.Background(), &Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "answer now"}},
		Tools:    []Tool{{Name: "t", Parameters: map[string]interface{}{"type": "object"}}},
		NoTools:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "final", resp.Content)
}

func TestOpenAIProvider_Generate_NoChoices(t *testing.T) {
	srv := mockCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model": "gpt-4o", "choices": []}`)
	})

	p := NewOpenAIProviderWithBaseURL("test-key", srv.URL)
	_, err := p.Generate(context.Background(), &Request{Model: "gpt-4o"})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestOpenAIProvider_GenerateStream(t *testing.T) {
	srv := mockCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"lo"}}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	p := NewOpenAIProviderWithBaseURL("test-key", srv.URL)
	var deltas []string
	resp, err := p.GenerateStream(context.Background(), &Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "Hello", strings.Join(deltas, ""))
}
