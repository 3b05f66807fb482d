// Package server provides the HTTP API: authentication, rate limiting, the
// chat endpoints (single-shot and streaming), conversation history, the
// specialist directory, working memory, and health.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/darioristic/opsdesk/internal/requestctx"
	"github.com/darioristic/opsdesk/internal/tenant"
)

// HeaderAPIKey authenticates a tenant; Authorization: Bearer works too.
// HeaderUser optionally names the acting user within the tenant.
const (
	HeaderAPIKey = "X-Opsdesk-Key"
	HeaderUser   = "X-Opsdesk-User"
)

// defaultUser is the acting user when the caller names none. Single-seat
// tenants never need to send the user header.
const defaultUser = "owner"

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

// AuthMiddleware validates the API key against the tenant registry and puts
// tenant_id and user_id into the request context. Key comparison is constant
// time inside the manager.
func AuthMiddleware(tm *tenant.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderAPIKey)
			if key == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			tn, err := tm.Authenticate(key)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
				return
			}

			userID := r.Header.Get(HeaderUser)
			if userID == "" {
				userID = defaultUser
			}
			ctx := requestctx.SetTenantID(r.Context(), tn.ID)
			ctx = requestctx.SetUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware enforces the tenant's token-bucket rate limit, set by
// AuthMiddleware's tenant resolution.
func RateLimitMiddleware(tm *tenant.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := requestctx.TenantID(r.Context())
			if tenantID == "" {
				next.ServeHTTP(w, r)
				return
			}
			err := tm.Allow(tenantID)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, tenant.ErrRateLimitExceeded):
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", err.Error())
			case errors.Is(err, tenant.ErrTenantNotFound):
				writeError(w, http.StatusForbidden, "forbidden", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal", err.Error())
			}
		})
	}
}

// CORSMiddleware sets CORS headers. allowedOrigins can be ["*"] for any.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
			break
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" {
				for _, o := range allowedOrigins {
					if o == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						break
					}
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, "+HeaderAPIKey+", "+HeaderUser)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
