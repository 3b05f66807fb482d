package assistant

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/darioristic/opsdesk/internal/assistant/tools"
	"github.com/darioristic/opsdesk/internal/conversation"
	"github.com/darioristic/opsdesk/internal/llm"
	opsdeskotel "github.com/darioristic/opsdesk/internal/otel"
)

var tracer = opsdeskotel.Tracer("github.com/darioristic/opsdesk/internal/assistant")

// ReplayLimit is the maximum number of prior turns fed back to the model.
// The history endpoint may return more; the live dispatch context stays
// small.
const ReplayLimit = 10

// maxToolSteps caps sequential tool-call rounds in one dispatch. Models can
// loop forever asking for tools; the cap guarantees termination.
const maxToolSteps = 5

// Fixed degraded replies. Every dispatch path returns one of these or real
// model output; the function never returns an empty string.
const (
	apologyText  = "I'm sorry, something went wrong while generating a response. Please try again in a moment."
	noAnswerText = "I wasn't able to generate a response to that. Could you rephrase your question?"
)

// Dispatcher drives the bounded tool-calling conversation for one
// classified specialist.
type Dispatcher struct {
	provider llm.Provider
	registry *tools.Registry
	model    string
}

// NewDispatcher creates a dispatcher over the given provider, tool registry
// and chat model.
func NewDispatcher(provider llm.Provider, registry *tools.Registry, model string) *Dispatcher {
	return &Dispatcher{provider: provider, registry: registry, model: model}
}

// Respond produces the assistant's reply for one user message. It never
// returns an error and never returns an empty string: provider failures
// become a fixed apology, and a text-less model run falls back to tool
// output.
func (d *Dispatcher) Respond(ctx context.Context, specialistName string, ec ExecutionContext, history []conversation.Turn, message string) string {
	spec := LookupSpecialist(specialistName)
	ctx, span := tracer.Start(ctx, "assistant.respond",
		trace.WithAttributes(
			attribute.String("assistant.specialist", spec.Name),
			attribute.String("tenant.id", ec.TenantID),
		))
	defer span.End()

	msgs := d.buildMessages(spec, ec, history, message)
	toolset := d.llmTools(spec)
	tc := toolContext(ec)

	phase := d.toolPhase(ctx, tc, msgs, toolset)
	span.SetAttributes(attribute.Int("assistant.tool_steps", len(phase.stepResults)))
	if phase.err != nil {
		span.RecordError(phase.err)
		span.SetStatus(codes.Error, "generation failed")
		log.Error().Err(phase.err).Str("specialist", spec.Name).Msg("generation_failed")
		return apologyText
	}

	modelText := phase.finalText
	if modelText == "" && phase.exhausted {
		resp, err := d.generate(ctx, &llm.Request{
			Model: d.model, Messages: phase.msgs, Tools: toolset, NoTools: true,
		})
		if err != nil {
			log.Error().Err(err).Str("specialist", spec.Name).Msg("generation_failed")
			return apologyText
		}
		modelText = resp.Content
	}
	return finalAnswer(modelText, phase.stepResults)
}

// RespondStream is the streaming variant: tool rounds run non-streaming,
// then the final answer is produced with GenerateStream, forwarding each
// text fragment to onDelta. The assembled full text is returned for
// persistence; degraded replies are also emitted through onDelta so the
// stream consumer always sees the text.
func (d *Dispatcher) RespondStream(ctx context.Context, specialistName string, ec ExecutionContext, history []conversation.Turn, message string, onDelta func(string)) string {
	spec := LookupSpecialist(specialistName)
	ctx, span := tracer.Start(ctx, "assistant.respond_stream",
		trace.WithAttributes(
			attribute.String("assistant.specialist", spec.Name),
			attribute.String("tenant.id", ec.TenantID),
		))
	defer span.End()

	msgs := d.buildMessages(spec, ec, history, message)
	toolset := d.llmTools(spec)
	tc := toolContext(ec)

	phase := d.toolPhase(ctx, tc, msgs, toolset)
	span.SetAttributes(attribute.Int("assistant.tool_steps", len(phase.stepResults)))
	if phase.err != nil {
		span.RecordError(phase.err)
		span.SetStatus(codes.Error, "generation failed")
		log.Error().Err(phase.err).Str("specialist", spec.Name).Msg("generation_failed")
		onDelta(apologyText)
		return apologyText
	}

	// The model already answered during a tool round; emit it as one chunk.
	if phase.finalText != "" {
		onDelta(phase.finalText)
		return phase.finalText
	}

	callCtx, cancel := context.WithTimeout(ctx, llm.TimeoutLLMCall)
	defer cancel()
	resp, err := d.provider.GenerateStream(callCtx, &llm.Request{
		Model: d.model, Messages: phase.msgs, Tools: toolset, NoTools: true,
	}, onDelta)
	if err != nil {
		log.Error().Err(err).Str("specialist", spec.Name).Msg("generation_failed")
		onDelta(apologyText)
		return apologyText
	}

	text := finalAnswer(resp.Content, phase.stepResults)
	if resp.Content == "" {
		// Fallback text never went through the stream; emit it now.
		onDelta(text)
	}
	return text
}

// phaseResult is the outcome of the tool-calling rounds.
type phaseResult struct {
	msgs        []llm.Message
	finalText   string   // model's own text, set when it stopped requesting tools
	stepResults []string // every tool result text, in execution order
	exhausted   bool     // step budget ran out while the model still wanted tools
	err         error    // provider failure; tool failures never land here
}

// toolPhase runs up to maxToolSteps rounds of model call + tool execution.
// Tool failures are fed back to the model as marked result text and recorded
// like any other result; only provider errors abort the phase.
func (d *Dispatcher) toolPhase(ctx context.Context, tc tools.Context, msgs []llm.Message, toolset []llm.Tool) phaseResult {
	out := phaseResult{msgs: msgs}

	for step := 0; step < maxToolSteps; step++ {
		resp, err := d.generate(ctx, &llm.Request{Model: d.model, Messages: out.msgs, Tools: toolset})
		if err != nil {
			out.err = err
			return out
		}
		if len(resp.ToolCalls) == 0 {
			out.finalText = strings.TrimSpace(resp.Content)
			return out
		}

		out.msgs = append(out.msgs, llm.Message{
			Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			text := d.runTool(ctx, tc, call)
			out.stepResults = append(out.stepResults, text)
			out.msgs = append(out.msgs, llm.Message{
				Role: "tool", ToolCallID: call.ID, Name: call.Name, Content: text,
			})
		}
	}
	out.exhausted = true
	return out
}

// runTool executes one model-requested tool call and renders its outcome as
// the tool message content. Unknown tools and schema rejections go back to
// the model as text so it can correct itself on the next round.
func (d *Dispatcher) runTool(ctx context.Context, tc tools.Context, call llm.ToolCall) string {
	ctx, span := tracer.Start(ctx, "assistant.tool",
		trace.WithAttributes(attribute.String("tool.name", call.Name)))
	defer span.End()

	res, err := d.registry.Execute(ctx, tc, call.Name, json.RawMessage(call.Arguments))
	if err != nil {
		span.RecordError(err)
		log.Warn().Err(err).Str("tool", call.Name).Msg("tool_call_rejected")
		return "Tool error: " + err.Error()
	}
	log.Debug().Str("tool", call.Name).Str("tenant_id", tc.TenantID).Msg("tool_executed")
	text := res.Text
	if res.Link != "" {
		text += "\n\nLink: " + res.Link
	}
	return text
}

func (d *Dispatcher) generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	ctx, span := tracer.Start(ctx, "llm.generate",
		trace.WithAttributes(opsdeskotel.LLMRequestAttributes(d.provider.Name(), req.Model)...))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, llm.TimeoutLLMCall)
	defer cancel()
	resp, err := d.provider.Generate(callCtx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(opsdeskotel.LLMUsageAttributes(resp.InputTokens, resp.OutputTokens)...)
	span.SetAttributes(opsdeskotel.GenAIResponseFinishReason.String(resp.FinishReason))
	return resp, nil
}

func (d *Dispatcher) buildMessages(spec Specialist, ec ExecutionContext, history []conversation.Turn, message string) []llm.Message {
	if len(history) > ReplayLimit {
		history = history[len(history)-ReplayLimit:]
	}
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: spec.SystemPrompt(ec)})
	for _, t := range history {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return append(msgs, llm.Message{Role: "user", Content: message})
}

// llmTools converts the specialist's allowed tool subset to the provider's
// tool description format, sorted by name for a stable prompt.
func (d *Dispatcher) llmTools(spec Specialist) []llm.Tool {
	allowed := spec.Tools(d.registry)
	names := make([]string, 0, len(allowed))
	for name := range allowed {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]llm.Tool, 0, len(names))
	for _, name := range names {
		t := allowed[name]
		var params map[string]interface{}
		if err := json.Unmarshal(t.InputSchema(), &params); err != nil {
			// Schemas are static and compiled at registry construction, so
			// this cannot happen for a registered tool.
			log.Error().Err(err).Str("tool", name).Msg("tool_schema_invalid")
			continue
		}
		out = append(out, llm.Tool{Name: name, Description: t.Description(), Parameters: params})
	}
	return out
}

func toolContext(ec ExecutionContext) tools.Context {
	return tools.Context{
		TenantID:     ec.TenantID,
		UserID:       ec.UserID,
		BaseCurrency: ec.BaseCurrency,
		Locale:       ec.Locale,
		Timezone:     ec.Timezone,
		Now:          ec.Now,
	}
}

// finalAnswer picks the reply text with an ordered list of extraction
// strategies: the model's own text, then the most recent tool result, then
// the last non-empty tool result from any step. The first non-empty value
// wins; if everything is empty a generic message is returned.
func finalAnswer(modelText string, stepResults []string) string {
	strategies := []func() string{
		func() string { return strings.TrimSpace(modelText) },
		func() string {
			if len(stepResults) == 0 {
				return ""
			}
			return strings.TrimSpace(stepResults[len(stepResults)-1])
		},
		func() string {
			for i := len(stepResults) - 1; i >= 0; i-- {
				if s := strings.TrimSpace(stepResults[i]); s != "" {
					return s
				}
			}
			return ""
		},
	}
	for _, extract := range strategies {
		if text := extract(); text != "" {
			return text
		}
	}
	return noAnswerText
}
