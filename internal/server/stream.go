package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darioristic/opsdesk/internal/assistant"
	"github.com/darioristic/opsdesk/internal/conversation"
)

// Streaming metadata headers. Sent before the body so the client knows the
// conversation id and chosen specialist while deltas are still arriving.
const (
	HeaderAgent  = "X-Opsdesk-Agent"
	HeaderChatID = "X-Opsdesk-Chat-Id"
)

// handleChatStream is the SSE variant of handleChat: same validation,
// triage and tool restriction, but the final answer is emitted as
// incremental `data:` events and persisted once the stream completes.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	state, ok := s.prepareChat(w, r)
	if !ok {
		return
	}
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
	defer cancel()

	userTurn := conversation.Turn{Role: conversation.RoleUser, Content: state.message}

	emit := func(text string) {
		payload, _ := json.Marshal(map[string]string{"delta": text})
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
	done := func() {
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	}

	if s.dispatcher == nil {
		s.convs.AppendTurn(ctx, state.tenantID, state.ec.ConversationID, userTurn)
		setStreamHeaders(w, assistant.SpecialistGeneral, state.ec.ConversationID)
		emit(degradedText)
		done()
		return
	}

	history := s.convs.History(ctx, state.tenantID, state.ec.ConversationID, assistant.ReplayLimit)
	specialist := s.triage.Classify(ctx, state.message)
	setStreamHeaders(w, specialist, state.ec.ConversationID)

	log.Info().
		Str("tenant_id", state.tenantID).
		Str("conversation_id", state.ec.ConversationID).
		Str("specialist", specialist).
		Msg("chat_stream_dispatch")

	answer := s.dispatcher.RespondStream(ctx, specialist, state.ec, history, state.message, emit)
	done()

	// End-of-stream persistence: the assembled text, not the deltas.
	s.convs.AppendTurn(ctx, state.tenantID, state.ec.ConversationID, userTurn)
	s.convs.AppendTurn(ctx, state.tenantID, state.ec.ConversationID,
		conversation.Turn{Role: conversation.RoleAssistant, Content: answer})
}

func setStreamHeaders(w http.ResponseWriter, specialist, chatID string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(HeaderAgent, specialist)
	w.Header().Set(HeaderChatID, chatID)
	w.WriteHeader(http.StatusOK)
}
