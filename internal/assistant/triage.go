package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/darioristic/opsdesk/internal/llm"
)

// Router classifies an incoming message to exactly one specialist with a
// single constrained model call.
type Router struct {
	provider llm.Provider
	model    string
}

// NewRouter creates a triage router using the given provider and model.
// Classification is a tiny decision, so this is typically a cheaper model
// than the one used for dispatch.
func NewRouter(provider llm.Provider, model string) *Router {
	return &Router{provider: provider, model: model}
}

// Classify routes a message to a specialist name. It never fails: any
// provider error or unparseable output routes to the general specialist.
// Misrouting degrades specialist fit, never the conversation.
func (r *Router) Classify(ctx context.Context, message string) string {
	ctx, span := tracer.Start(ctx, "assistant.triage",
		trace.WithAttributes(attribute.String("triage.model", r.model)))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, llm.TimeoutLLMCall)
	defer cancel()

	resp, err := r.provider.Generate(callCtx, &llm.Request{
		Model: r.model,
		Messages: []llm.Message{
			{Role: "system", Content: triagePrompt()},
			{Role: "user", Content: message},
		},
		Temperature: 0,
		MaxTokens:   50,
		JSONObject:  true,
	})
	if err != nil {
		span.RecordError(err)
		log.Warn().Err(err).Msg("triage_call_failed")
		return SpecialistGeneral
	}

	name := parseClassification(resp.Content)
	span.SetAttributes(attribute.String("triage.specialist", name))
	log.Debug().
		Str("specialist", name).
		Str("model", r.model).
		Msg("message_classified")
	return name
}

func triagePrompt() string {
	var b strings.Builder
	b.WriteString("You route a user's message to exactly one specialist. The specialists are:\n\n")
	for _, s := range Specialists() {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Description)
	}
	b.WriteString("\nRespond with a JSON object of the form {\"agent\": \"<name>\"} where <name> is ")
	b.WriteString("one of the names above. Pick \"general\" when nothing more specific fits. ")
	b.WriteString("Output nothing except the JSON object.")
	return b.String()
}

// parseClassification extracts a specialist name from the model's raw
// output. Structured JSON is tried first, then the raw text itself as a
// bare name; anything unrecognized funnels to general.
func parseClassification(raw string) string {
	var decision struct {
		Agent string `json:"agent"`
	}
	if err := json.Unmarshal([]byte(raw), &decision); err == nil {
		if name := normalize(decision.Agent); IsSpecialist(name) {
			return name
		}
	}
	if name := normalize(raw); IsSpecialist(name) {
		return name
	}
	log.Debug().Str("raw", raw).Msg("triage_output_unparseable")
	return SpecialistGeneral
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
