// Package api implements the subscription service HTTP API for the twin.
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/subtrack/internal/authtoken"
	"github.com/wondertwin-ai/subtrack/internal/twin/store"
	"github.com/wondertwin-ai/subtrack/pkg/twincore"
)

// Handler holds all API handler state.
type Handler struct {
	store  *store.MemoryStore
	mw     *twincore.Middleware
	secret []byte
}

// NewHandler creates a new API handler. When secret is non-empty every
// request must carry a bearer token signed with it.
func NewHandler(s *store.MemoryStore, mw *twincore.Middleware, secret string) *Handler {
	h := &Handler{store: s, mw: mw}
	if secret != "" {
		h.secret = []byte(secret)
	}
	return h
}

// Routes mounts the subscription routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/subscriptions", func(r chi.Router) {
		r.Use(h.bearerAuth)
		r.Use(h.mw.FaultInjection)

		r.Get("/", h.ListSubscriptions)
		r.Post("/", h.CreateSubscription)
		r.Get("/{id}", h.GetSubscription)
		r.Put("/{id}", h.UpdateSubscription)
		r.Delete("/{id}", h.DeleteSubscription)
	})
}

// bearerAuth verifies HS256 bearer tokens when a secret is configured.
func (h *Handler) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.secret == nil {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if auth == "" {
			twincore.Error(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			twincore.Error(w, http.StatusUnauthorized, "invalid authorization header format, use 'Authorization: Bearer <token>'")
			return
		}
		if _, err := authtoken.Verify(h.secret, token); err != nil {
			twincore.Error(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
