package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darioristic/opsdesk/internal/conversation"
	"github.com/darioristic/opsdesk/internal/llm"
)

func toolCallResponse(name, args string) *llm.Response {
	return &llm.Response{
		FinishReason: "tool_calls",
		ToolCalls:    []llm.ToolCall{{ID: "call_1", Name: name, Arguments: args}},
	}
}

func TestRespond_PlainTextAnswer(t *testing.T) {
	d := NewDispatcher(&fakeProvider{generate: func(req *llm.Request) (*llm.Response, error) {
		require.Equal(t, "system", req.Messages[0].Role)
		return textResponse("Hello there."), nil
	}}, testRegistry(t), "chat-model")

	out := d.Respond(context.Background(), "general", testExecutionContext(), nil, "hi")
	assert.Equal(t, "Hello there.", out)
}

func TestRespond_ProviderErrorBecomesApology(t *testing.T) {
	d := NewDispatcher(&fakeProvider{generate: func(*llm.Request) (*llm.Response, error) {
		return nil, errors.New("upstream 500")
	}}, testRegistry(t), "chat-model")

	out := d.Respond(context.Background(), "invoices", testExecutionContext(), nil, "overdue?")
	assert.Equal(t, apologyText, out)
	assert.NotEmpty(t, out)
}

func TestRespond_ToolRoundThenAnswer(t *testing.T) {
	calls := 0
	d := NewDispatcher(&fakeProvider{generate: func(req *llm.Request) (*llm.Response, error) {
		calls++
		if calls == 1 {
			return toolCallResponse("get_overdue_invoices", "{}"), nil
		}
		// Second round must carry the tool traffic back to the model.
		last := req.Messages[len(req.Messages)-1]
		require.Equal(t, "tool", last.Role)
		require.Equal(t, "get_overdue_invoices", last.Name)
		require.Contains(t, last.Content, "INV-")
		return textResponse("You have overdue invoices, see the table."), nil
	}}, testRegistry(t), "chat-model")

	out := d.Respond(context.Background(), "invoices", testExecutionContext(), nil, "what is overdue?")
	assert.Equal(t, "You have overdue invoices, see the table.", out)
	assert.Equal(t, 2, calls)
}

func TestRespond_PathologicalToolLoopTerminates(t *testing.T) {
	generates := 0
	d := NewDispatcher(&fakeProvider{generate: func(req *llm.Request) (*llm.Response, error) {
		generates++
		if req.NoTools {
			// Even the forced final answer yields no text.
			return textResponse(""), nil
		}
		return toolCallResponse("get_overdue_invoices", "{}"), nil
	}}, testRegistry(t), "chat-model")

	out := d.Respond(context.Background(), "invoices", testExecutionContext(), nil, "loop forever")

	// maxToolSteps tool rounds plus one forced NoTools call.
	assert.Equal(t, maxToolSteps+1, generates)
	assert.NotEmpty(t, out)
	assert.Contains(t, out, "INV-", "fallback must surface the last tool result")
}

func TestRespond_UnknownToolFedBackToModel(t *testing.T) {
	calls := 0
	d := NewDispatcher(&fakeProvider{generate: func(req *llm.Request) (*llm.Response, error) {
		calls++
		if calls == 1 {
			return toolCallResponse("summon_dragon", "{}"), nil
		}
		last := req.Messages[len(req.Messages)-1]
		require.Contains(t, last.Content, "Tool error")
		return textResponse("I can't do that."), nil
	}}, testRegistry(t), "chat-model")

	out := d.Respond(context.Background(), "general", testExecutionContext(), nil, "summon a dragon")
	assert.Equal(t, "I can't do that.", out)
}

func TestRespond_HistoryReplayBoundedOldestFirst(t *testing.T) {
	var history []conversation.Turn
	for i := 1; i <= 15; i++ {
		history = append(history, conversation.Turn{
			Role:    conversation.RoleUser,
			Content: fmt.Sprintf("message %d", i),
		})
	}

	var seen []llm.Message
	d := NewDispatcher(&fakeProvider{generate: func(req *llm.Request) (*llm.Response, error) {
		seen = req.Messages
		return textResponse("ok"), nil
	}}, testRegistry(t), "chat-model")

	d.Respond(context.Background(), "general", testExecutionContext(), history, "newest")

	// system + ReplayLimit replayed turns + new user message.
	require.Len(t, seen, ReplayLimit+2)
	assert.Equal(t, "message 6", seen[1].Content, "replay must keep the newest turns")
	assert.Equal(t, "message 15", seen[ReplayLimit].Content)
	assert.Equal(t, "newest", seen[ReplayLimit+1].Content)
}

func TestRespond_SpecialistToolSubsetOffered(t *testing.T) {
	d := NewDispatcher(&fakeProvider{generate: func(req *llm.Request) (*llm.Response, error) {
		names := make([]string, len(req.Tools))
		for i, tool := range req.Tools {
			names[i] = tool.Name
		}
		assert.Contains(t, names, "get_time_entries")
		assert.NotContains(t, names, "create_invoice")
		return textResponse("ok"), nil
	}}, testRegistry(t), "chat-model")

	d.Respond(context.Background(), "timetracking", testExecutionContext(), nil, "hours?")
}

func TestRespondStream_DeltasForwarded(t *testing.T) {
	d := NewDispatcher(&fakeProvider{
		generate: func(req *llm.Request) (*llm.Response, error) {
			return toolCallResponse("get_company_overview", "{}"), nil
		},
		stream: func(req *llm.Request, onDelta func(string)) (*llm.Response, error) {
			require.True(t, req.NoTools)
			onDelta("Here ")
			onDelta("you go.")
			return textResponse("Here you go."), nil
		},
	}, testRegistry(t), "chat-model")

	var chunks []string
	out := d.RespondStream(context.Background(), "research", testExecutionContext(), nil, "overview",
		func(s string) { chunks = append(chunks, s) })

	assert.Equal(t, "Here you go.", out)
	assert.Equal(t, "Here you go.", strings.Join(chunks, ""))
}

func TestRespondStream_ApologyReachesTheStream(t *testing.T) {
	d := NewDispatcher(&fakeProvider{generate: func(*llm.Request) (*llm.Response, error) {
		return nil, errors.New("boom")
	}}, testRegistry(t), "chat-model")

	var streamed strings.Builder
	out := d.RespondStream(context.Background(), "general", testExecutionContext(), nil, "hi",
		func(s string) { streamed.WriteString(s) })

	assert.Equal(t, apologyText, out)
	assert.Equal(t, apologyText, streamed.String())
}

func TestFinalAnswer_StrategyOrder(t *testing.T) {
	assert.Equal(t, "model text", finalAnswer("model text", []string{"tool result"}))
	assert.Equal(t, "tool result", finalAnswer("", []string{"older", "tool result"}))
	assert.Equal(t, "older", finalAnswer("  ", []string{"older", "   "}))
	assert.Equal(t, noAnswerText, finalAnswer("", nil))
	assert.Equal(t, noAnswerText, finalAnswer(" ", []string{"", "  "}))
}
