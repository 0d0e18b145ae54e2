package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/subtrack/internal/subscription"
	"github.com/wondertwin-ai/subtrack/pkg/twincore"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

func notFound(w http.ResponseWriter, id string) {
	twincore.Error(w, http.StatusNotFound, fmt.Sprintf("Subscription with ID %s not found", id))
}

// decodeBody decodes a JSON request body into v, writing a 422 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		twincore.Error(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// ListSubscriptions handles GET /subscriptions
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.store.List())
}

// CreateSubscription handles POST /subscriptions
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var p subscription.Payload
	if !decodeBody(w, r, &p) {
		return
	}
	if err := p.Validate(); err != nil {
		twincore.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	twincore.JSON(w, http.StatusCreated, h.store.Create(p))
}

// GetSubscription handles GET /subscriptions/{id}
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := h.store.Get(id)
	if !ok {
		notFound(w, id)
		return
	}
	twincore.JSON(w, http.StatusOK, rec)
}

// UpdateSubscription handles PUT /subscriptions/{id}. Only the fields present
// in the body are changed.
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch subscription.Patch
	if !decodeBody(w, r, &patch) {
		return
	}
	rec, ok, err := h.store.Update(id, patch, subscription.Payload.Validate)
	if !ok {
		notFound(w, id)
		return
	}
	if err != nil {
		twincore.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, rec)
}

// DeleteSubscription handles DELETE /subscriptions/{id}
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.Delete(id) {
		notFound(w, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
