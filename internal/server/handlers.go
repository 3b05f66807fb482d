package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/darioristic/opsdesk/internal/assistant"
	"github.com/darioristic/opsdesk/internal/conversation"
	"github.com/darioristic/opsdesk/internal/requestctx"
)

// Message length bounds for the chat endpoints.
const (
	maxMessageChars = 10000
	maxMemoryChars  = 10000
)

// historyLimit bounds the history endpoint. Deliberately larger than the
// live-dispatch replay limit; the UI shows more than the model re-reads.
const historyLimit = 50

// degradedText is the fixed reply when no LLM credential is configured. The
// chat surface stays up, just unintelligent.
const degradedText = "The AI service is not configured, so I can't answer questions right now. Please ask your administrator to set up the OpenAI API key."

type chatRequest struct {
	Message  string `json:"message"`
	ChatID   string `json:"chatId"`
	Timezone string `json:"timezone"`
}

// chatState is everything the chat pipeline derives before the model work
// starts: validated message, execution context, tenant id.
type chatState struct {
	tenantID string
	message  string
	ec       assistant.ExecutionContext
}

// prepareChat decodes and validates the request body and builds the
// execution context. On failure it writes the error response and returns
// false.
func (s *Server) prepareChat(w http.ResponseWriter, r *http.Request) (*chatState, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON: "+err.Error())
		return nil, false
	}
	if n := utf8.RuneCountInString(req.Message); n < 1 || n > maxMessageChars {
		writeError(w, http.StatusBadRequest, "validation_error",
			"message must be between 1 and 10000 characters")
		return nil, false
	}

	tenantID := requestctx.TenantID(r.Context())
	tn, err := s.tenants.Get(tenantID)
	if err != nil {
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
		return nil, false
	}

	currency := tn.BaseCurrency
	if currency == "" {
		currency = s.cfg.BaseCurrency
	}
	timezone := req.Timezone
	if timezone == "" {
		timezone = tn.Timezone
	}
	ec := assistant.BuildContext(assistant.Session{
		TenantID:     tn.ID,
		UserID:       requestctx.UserID(r.Context()),
		CompanyName:  tn.CompanyName,
		BaseCurrency: currency,
		Locale:       tn.Locale,
		Timezone:     timezone,
	}, req.ChatID)
	if s.cfg.MemoryEnabled {
		// Best-effort like history: a failed read degrades context, not the turn.
		ec.WorkingMemory = s.convs.WorkingMemory(r.Context(), tenantID, ec.UserID)
	}

	return &chatState{tenantID: tenantID, message: req.Message, ec: ec}, true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	state, ok := s.prepareChat(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
	defer cancel()

	userTurn := conversation.Turn{Role: conversation.RoleUser, Content: state.message}

	if s.dispatcher == nil {
		// No provider credential: accept and persist the message, reply with
		// the fixed degraded text.
		s.convs.AppendTurn(ctx, state.tenantID, state.ec.ConversationID, userTurn)
		writeChatResponse(w, state.ec.ConversationID, degradedText)
		return
	}

	history := s.convs.History(ctx, state.tenantID, state.ec.ConversationID, assistant.ReplayLimit)
	specialist := s.triage.Classify(ctx, state.message)

	log.Info().
		Str("tenant_id", state.tenantID).
		Str("conversation_id", state.ec.ConversationID).
		Str("specialist", specialist).
		Msg("chat_dispatch")

	answer := s.dispatcher.Respond(ctx, specialist, state.ec, history, state.message)

	s.convs.AppendTurn(ctx, state.tenantID, state.ec.ConversationID, userTurn)
	s.convs.AppendTurn(ctx, state.tenantID, state.ec.ConversationID,
		conversation.Turn{Role: conversation.RoleAssistant, Content: answer})

	writeChatResponse(w, state.ec.ConversationID, answer)
}

func writeChatResponse(w http.ResponseWriter, chatID, content string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"chatId": chatID,
			"message": map[string]string{
				"id":      "msg_" + uuid.New().String()[:12],
				"role":    conversation.RoleAssistant,
				"content": content,
			},
		},
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	limit := historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "validation_error", "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	turns := s.convs.History(r.Context(), requestctx.TenantID(r.Context()), chatID, limit)
	if turns == nil {
		turns = []conversation.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"chatId":   chatID,
			"messages": turns,
		},
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	type agentInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	specs := assistant.Specialists()
	agents := make([]agentInfo, len(specs))
	for i, spec := range specs {
		agents[i] = agentInfo{Name: spec.Name, Description: spec.Description}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    map[string]interface{}{"agents": agents},
	})
}

func (s *Server) handleMemoryGet(w http.ResponseWriter, r *http.Request) {
	tenantID := requestctx.TenantID(r.Context())
	userID := requestctx.UserID(r.Context()) + ":" + tenantID
	content := s.convs.WorkingMemory(r.Context(), tenantID, userID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    map[string]string{"content": content},
	})
}

func (s *Server) handleMemoryPut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON: "+err.Error())
		return
	}
	if utf8.RuneCountInString(req.Content) > maxMemoryChars {
		writeError(w, http.StatusBadRequest, "validation_error", "content must be at most 10000 characters")
		return
	}
	tenantID := requestctx.TenantID(r.Context())
	userID := requestctx.UserID(r.Context()) + ":" + tenantID
	s.convs.SaveWorkingMemory(r.Context(), tenantID, userID, req.Content)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if r.URL.Query().Get("detail") == "true" {
		provider := "ok"
		if s.dispatcher == nil {
			provider = "not_configured"
		}
		memory := "disabled"
		if s.cfg.MemoryEnabled {
			memory = "ok"
		}
		resp["components"] = map[string]string{
			"llm_provider":   provider,
			"working_memory": memory,
			"crm_store":      "ok",
			"conversations":  "ok",
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
