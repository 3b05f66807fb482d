package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darioristic/opsdesk/internal/assistant/tools"
	"github.com/darioristic/opsdesk/internal/config"
	"github.com/darioristic/opsdesk/internal/conversation"
	"github.com/darioristic/opsdesk/internal/crm"
	"github.com/darioristic/opsdesk/internal/llm"
	"github.com/darioristic/opsdesk/internal/tenant"
	"github.com/darioristic/opsdesk/internal/testutil"
)

const testAPIKey = "key-acme"

type testEnv struct {
	handler http.Handler
	convs   *conversation.Store
}

func newTestEnv(t *testing.T, provider llm.Provider, tenants ...tenant.Tenant) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		DataDir:       dir,
		OpenAIAPIKey:  "sk-test",
		ChatModel:     "chat-model",
		TriageModel:   "triage-model",
		BaseCurrency:  "EUR",
		RetentionDays: 7,
		MemoryEnabled: true,
	}

	if len(tenants) == 0 {
		tenants = []tenant.Tenant{{
			ID: "acme", CompanyName: "Acme GmbH", APIKey: testAPIKey,
			Locale: "en-US", Timezone: "UTC",
		}}
	}
	tm, err := tenant.NewManager(tenants)
	require.NoError(t, err)

	store, err := crm.NewStore(filepath.Join(dir, "crm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Seed(context.Background(), "acme"))

	registry, err := tools.NewRegistry(store)
	require.NoError(t, err)

	convs, err := conversation.NewStore(filepath.Join(dir, "conversations.db"), 7*24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = convs.Close() })

	srv := NewServer(cfg, tm, provider, registry, conversation.NewBestEffort(convs))
	return &testEnv{handler: srv.Routes(), convs: convs}
}

func (e *testEnv) do(t *testing.T, method, path, body, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if apiKey != "" {
		req.Header.Set(HeaderAPIKey, apiKey)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func triageResponse(agent string) *llm.Response {
	return &llm.Response{Content: `{"agent": "` + agent + `"}`, FinishReason: "stop"}
}

func TestChat_HappyPath(t *testing.T) {
	provider := &testutil.ScriptedProvider{Responses: []*llm.Response{
		triageResponse("invoices"),
		{Content: "You have two overdue invoices.", FinishReason: "stop"},
	}}
	env := newTestEnv(t, provider)

	w := env.do(t, http.MethodPost, "/v1/chat", `{"message": "Show me overdue invoices"}`, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	chatID := data["chatId"].(string)
	require.NotEmpty(t, chatID)
	msg := data["message"].(map[string]interface{})
	assert.Equal(t, "assistant", msg["role"])
	assert.Equal(t, "You have two overdue invoices.", msg["content"])

	// Both turns persisted, user before assistant.
	turns, err := env.convs.History(context.Background(), "acme", chatID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, conversation.RoleUser, turns[0].Role)
	assert.Equal(t, "Show me overdue invoices", turns[0].Content)
	assert.Equal(t, conversation.RoleAssistant, turns[1].Role)
}

func TestChat_SpecialistToolRestriction(t *testing.T) {
	provider := &testutil.ScriptedProvider{Responses: []*llm.Response{
		triageResponse("invoices"),
		{FinishReason: "tool_calls", ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "get_overdue_invoices", Arguments: "{}"},
		}},
		{Content: "Here are the overdue invoices.", FinishReason: "stop"},
	}}
	env := newTestEnv(t, provider)

	w := env.do(t, http.MethodPost, "/v1/chat", `{"message": "Show me overdue invoices"}`, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	// Request 2 is the first dispatch round: invoice tools only.
	require.GreaterOrEqual(t, provider.CallCount, 3)
	dispatchReq := provider.ReceivedRequests[1]
	names := make([]string, len(dispatchReq.Tools))
	for i, tl := range dispatchReq.Tools {
		names[i] = tl.Name
	}
	assert.Contains(t, names, "get_overdue_invoices")
	assert.NotContains(t, names, "get_transactions")

	// Request 3 carries the tool result back.
	toolMsg := provider.ReceivedRequests[2].Messages
	assert.Equal(t, "tool", toolMsg[len(toolMsg)-1].Role)
}

func TestChat_UnroutableMessageFallsBackToGeneral(t *testing.T) {
	provider := &testutil.ScriptedProvider{Responses: []*llm.Response{
		{Content: "asdlkj123", FinishReason: "stop"}, // unparseable triage output
		{Content: "Not sure what you mean, but here I am.", FinishReason: "stop"},
	}}
	env := newTestEnv(t, provider)

	w := env.do(t, http.MethodPost, "/v1/chat/stream", `{"message": "asdlkj123"}`, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "general", w.Header().Get(HeaderAgent))
	assert.Contains(t, w.Body.String(), "Not sure what you mean")
}

func TestChat_Validation(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{})

	w := env.do(t, http.MethodPost, "/v1/chat", `{"message": ""}`, testAPIKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "validation_error", body["error"].(map[string]interface{})["code"])

	long := strings.Repeat("x", 10001)
	w = env.do(t, http.MethodPost, "/v1/chat", `{"message": "`+long+`"}`, testAPIKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/v1/chat", `{nope`, testAPIKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_Unauthorized(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{})

	w := env.do(t, http.MethodPost, "/v1/chat", `{"message": "hi"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/v1/chat", `{"message": "hi"}`, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChat_BearerTokenAccepted(t *testing.T) {
	env := newTestEnv(t, &testutil.ScriptedProvider{Responses: []*llm.Response{
		triageResponse("general"),
		{Content: "hello", FinishReason: "stop"},
	}})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message": "hi"}`))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChat_DegradedWithoutProvider(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/v1/chat", `{"message": "Show me overdue invoices", "chatId": "conv-deg"}`, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	msg := body["data"].(map[string]interface{})["message"].(map[string]interface{})
	assert.Equal(t, degradedText, msg["content"])

	// The user's message is still persisted; no assistant turn is.
	turns, err := env.convs.History(context.Background(), "acme", "conv-deg", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, conversation.RoleUser, turns[0].Role)
}

func TestChatStream_MetadataAndDeltas(t *testing.T) {
	provider := &testutil.ScriptedProvider{Responses: []*llm.Response{
		triageResponse("research"),
		{FinishReason: "tool_calls", ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "get_company_overview", Arguments: "{}"},
		}},
		{Content: "Company snapshot follows.", FinishReason: "stop"},
	}}
	env := newTestEnv(t, provider)

	w := env.do(t, http.MethodPost, "/v1/chat/stream", `{"message": "overview please", "chatId": "conv-s"}`, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "research", w.Header().Get(HeaderAgent))
	assert.Equal(t, "conv-s", w.Header().Get(HeaderChatID))

	body := w.Body.String()
	assert.Contains(t, body, `data: {"delta":"Company snapshot follows."}`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]"))

	// End-of-stream persistence of the assembled text.
	turns, err := env.convs.History(context.Background(), "acme", "conv-s", 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "Company snapshot follows.", turns[1].Content)
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{})
	ctx := context.Background()
	require.NoError(t, env.convs.AppendTurn(ctx, "acme", "conv-h",
		conversation.Turn{Role: conversation.RoleUser, Content: "question"}))
	require.NoError(t, env.convs.AppendTurn(ctx, "acme", "conv-h",
		conversation.Turn{Role: conversation.RoleAssistant, Content: "answer"}))

	w := env.do(t, http.MethodGet, "/v1/chat/conv-h/history", "", testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "conv-h", data["chatId"])
	msgs := data["messages"].([]interface{})
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]interface{})
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "question", first["content"])

	w = env.do(t, http.MethodGet, "/v1/chat/conv-h/history?limit=0", "", testAPIKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgentsEndpoint(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{})

	w := env.do(t, http.MethodGet, "/v1/agents", "", testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	agents := decodeBody(t, w)["data"].(map[string]interface{})["agents"].([]interface{})
	assert.Len(t, agents, 10)
	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = a.(map[string]interface{})["name"].(string)
	}
	assert.Contains(t, names, "general")
	assert.Contains(t, names, "invoices")
}

func TestChat_WorkingMemoryReachesModel(t *testing.T) {
	provider := &testutil.ScriptedProvider{Responses: []*llm.Response{
		triageResponse("general"),
		{Content: "Noted, weekly it is.", FinishReason: "stop"},
	}}
	env := newTestEnv(t, provider)

	w := env.do(t, http.MethodPut, "/v1/memory", `{"content": "prefers weekly summaries"}`, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/v1/chat", `{"message": "send me the usual report"}`, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	// The saved note is in the dispatch system prompt (request 2; request 1
	// is triage, which must not carry it).
	require.GreaterOrEqual(t, provider.CallCount, 2)
	dispatchMsgs := provider.ReceivedRequests[1].Messages
	require.Equal(t, "system", dispatchMsgs[0].Role)
	assert.Contains(t, dispatchMsgs[0].Content, "prefers weekly summaries")
	for _, msg := range provider.ReceivedRequests[0].Messages {
		assert.NotContains(t, msg.Content, "prefers weekly summaries")
	}
}

func TestMemoryEndpoints_RoundTrip(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{})

	w := env.do(t, http.MethodPut, "/v1/memory", `{"content": "prefers weekly summaries"}`, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/v1/memory", "", testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "prefers weekly summaries", data["content"])
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{}, tenant.Tenant{
		ID: "acme", CompanyName: "Acme GmbH", APIKey: testAPIKey, RateLimit: 1,
	})

	// Burst allows 2 immediate requests, the third is rejected.
	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodGet, "/v1/agents", "", testAPIKey)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := env.do(t, http.MethodGet, "/v1/agents", "", testAPIKey)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])

	w = env.do(t, http.MethodGet, "/health?detail=true", "", "")
	components := decodeBody(t, w)["components"].(map[string]interface{})
	assert.Equal(t, "not_configured", components["llm_provider"])
}
