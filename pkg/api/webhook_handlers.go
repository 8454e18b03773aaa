package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/catalogforge/catalog/pkg/httputil"
	"github.com/catalogforge/catalog/pkg/notifications"
)

// WebhookHandlers serves webhook administration routes. All of them are
// admin only.
type WebhookHandlers struct {
	*Server
}

// NewWebhookHandlers creates webhook handlers bound to the server.
func NewWebhookHandlers(s *Server) *WebhookHandlers {
	return &WebhookHandlers{Server: s}
}

// RegisterRoutes registers webhook routes.
func (h *WebhookHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks", h.CreateWebhook).Methods("POST")
	router.HandleFunc("/webhooks", h.ListWebhooks).Methods("GET")
	router.HandleFunc("/webhooks/{id}", h.DeleteWebhook).Methods("DELETE")
}

type webhookRequest struct {
	URL    string                    `json:"url"`
	Events []notifications.EventType `json:"events"`
	Secret string                    `json:"secret"`
}

// CreateWebhook registers a delivery target for fulfillment events.
func (h *WebhookHandlers) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, principal, eval) {
		return
	}

	var req webhookRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	webhook := &notifications.Webhook{
		URL:    req.URL,
		Events: req.Events,
		Secret: req.Secret,
	}
	if err := h.deps.Notifier.Register(webhook); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteCreated(w, webhook)
}

// ListWebhooks returns the registered webhooks.
func (h *WebhookHandlers) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, principal, eval) {
		return
	}
	httputil.WriteSuccess(w, h.deps.Notifier.List())
}

// DeleteWebhook unregisters a webhook.
func (h *WebhookHandlers) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, principal, eval) {
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.deps.Notifier.Unregister(id); err != nil {
		httputil.WriteNotFound(w, err.Error())
		return
	}
	httputil.WriteNoContent(w)
}
