package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/darioristic/opsdesk/internal/assistant"
	"github.com/darioristic/opsdesk/internal/assistant/tools"
	"github.com/darioristic/opsdesk/internal/config"
	"github.com/darioristic/opsdesk/internal/conversation"
	"github.com/darioristic/opsdesk/internal/llm"
	"github.com/darioristic/opsdesk/internal/otel"
	"github.com/darioristic/opsdesk/internal/tenant"
)

const (
	// defaultTimeout bounds the short read-only routes.
	defaultTimeout = 30 * time.Second
	// chatTimeout spans the whole chat pipeline: triage, tool rounds and the
	// final generation. Applied in the handler, not as chi middleware, so the
	// streaming route keeps its connection open until done.
	chatTimeout = 3 * time.Minute
)

// Server holds all dependencies for the HTTP API.
type Server struct {
	router      *chi.Mux
	cfg         *config.Config
	tenants     *tenant.Manager
	registry    *tools.Registry
	triage      *assistant.Router
	dispatcher  *assistant.Dispatcher
	convs       *conversation.BestEffort
	corsOrigins []string
	startTime   time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithCORSOrigins sets allowed CORS origins (e.g. ["*"]).
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// NewServer builds a Server. provider may be nil when no LLM credential is
// configured; chat then answers with a fixed degraded reply instead of
// failing.
func NewServer(
	cfg *config.Config,
	tenants *tenant.Manager,
	provider llm.Provider,
	registry *tools.Registry,
	convs *conversation.BestEffort,
	opts ...Option,
) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		cfg:         cfg,
		tenants:     tenants,
		registry:    registry,
		convs:       convs,
		corsOrigins: []string{"*"},
		startTime:   time.Now(),
	}
	if provider != nil {
		s.triage = assistant.NewRouter(provider, cfg.TriageModel)
		s.dispatcher = assistant.NewDispatcher(provider, registry, cfg.ChatModel)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.Middleware())
	r.Use(CORSMiddleware(s.corsOrigins))

	// Unauthenticated
	r.Get("/health", s.handleHealth)

	// Authenticated API group
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.tenants))
		r.Use(RateLimitMiddleware(s.tenants))

		// Chat routes manage their own deadline (see chatTimeout); a chi
		// Timeout here would cut off slow tool rounds and streams.
		r.Post("/v1/chat", s.handleChat)
		r.Post("/v1/chat/stream", s.handleChatStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultTimeout))
			r.Get("/v1/chat/{id}/history", s.handleHistory)
			r.Get("/v1/agents", s.handleAgents)
			if s.cfg.MemoryEnabled {
				r.Get("/v1/memory", s.handleMemoryGet)
				r.Put("/v1/memory", s.handleMemoryPut)
			}
		})
	})

	return r
}
