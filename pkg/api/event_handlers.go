package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/catalogforge/catalog/pkg/fulfillment"
	"github.com/catalogforge/catalog/pkg/httputil"
)

// maxEventBytes bounds inbound task event payloads.
const maxEventBytes = 256 << 10

// EventHandlers serves the inbound task-event endpoint consumed by order
// fulfillment, plus the admin audit trail.
type EventHandlers struct {
	*Server
}

// NewEventHandlers creates event handlers bound to the server.
func NewEventHandlers(s *Server) *EventHandlers {
	return &EventHandlers{Server: s}
}

// RegisterRoutes registers event routes.
func (h *EventHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/task_events", h.SubmitTaskEvent).Methods("POST")
	if h.deps.AuditReader != nil {
		router.HandleFunc("/audit_events", h.ListAuditEvents).Methods("GET")
	}
}

// SubmitTaskEvent accepts a task status update from the provisioning engine
// and queues it for processing. Acceptance means queued, not applied; the
// consumer works the event off asynchronously.
func (h *EventHandlers) SubmitTaskEvent(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.requestScope(w, r); !ok {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		httputil.WriteBadRequest(w, "event exceeds size limit")
		return
	}

	if err := h.deps.Consumer.Submit(raw); err != nil {
		var malformed *fulfillment.MalformedEventError
		if errors.As(err, &malformed) {
			httputil.WriteBadRequest(w, malformed.Error())
			return
		}
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ListAuditEvents returns recent audit events for the caller's tenant.
// Admin only.
func (h *EventHandlers) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, principal, eval) {
		return
	}

	limit := int(httputil.QueryInt64(r, "limit", 100))
	events, err := h.deps.AuditReader.List(r.Context(), principal.Tenant, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, events)
}
