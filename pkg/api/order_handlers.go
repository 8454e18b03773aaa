package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/catalogforge/catalog/pkg/audit"
	"github.com/catalogforge/catalog/pkg/catalog"
	"github.com/catalogforge/catalog/pkg/httputil"
	"github.com/catalogforge/catalog/pkg/rbac"
)

// OrderHandlers serves order and order item routes.
type OrderHandlers struct {
	*Server
}

// NewOrderHandlers creates order handlers bound to the server.
func NewOrderHandlers(s *Server) *OrderHandlers {
	return &OrderHandlers{Server: s}
}

// RegisterRoutes registers order routes.
func (h *OrderHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/orders", h.CreateOrder).Methods("POST")
	router.HandleFunc("/orders", h.ListOrders).Methods("GET")
	router.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
	router.HandleFunc("/orders/{id}", h.DeleteOrder).Methods("DELETE")
	router.HandleFunc("/orders/{id}/submit", h.SubmitOrder).Methods("POST")

	router.HandleFunc("/orders/{id}/order_items", h.AddOrderItem).Methods("POST")
	router.HandleFunc("/orders/{id}/order_items", h.ListOrderItems).Methods("GET")
	router.HandleFunc("/order_items/{id}", h.GetOrderItem).Methods("GET")
	router.HandleFunc("/order_items/{id}/progress_messages", h.ListProgressMessages).Methods("GET")
}

// CreateOrder opens an empty order for the caller.
func (h *OrderHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	target := &catalog.Order{Tenant: principal.Tenant}
	if !h.authorize(w, r, principal, eval, rbac.ActionCreate, target, 0) {
		return
	}

	o, err := h.deps.Service.CreateOrder(r.Context(), principal)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.deps.Audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventTypeOrderCreated,
		Status:       audit.EventStatusSuccess,
		Username:     principal.Username,
		Tenant:       principal.Tenant,
		ResourceType: string(rbac.ResourceOrder),
		ResourceID:   fmt.Sprintf("%d", o.ID),
	})
	httputil.WriteCreated(w, o)
}

// ListOrders lists the orders visible to the caller.
func (h *OrderHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	all, err := h.deps.Store.ListOrders(r.Context(), principal.Tenant)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	visible, err := rbac.ResolveScope(r.Context(), h.deps.Resolver, principal, eval, rbac.ResourceOrder, rbac.PermissionRead, all)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, visible)
}

func (h *OrderHandlers) loadOrder(w http.ResponseWriter, r *http.Request, tenant string) (*catalog.Order, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}
	o, err := h.deps.Store.GetOrder(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return nil, false
	}
	if o.Tenant != tenant {
		httputil.WriteNotFound(w, fmt.Sprintf("order %d not found", id))
		return nil, false
	}
	return o, true
}

// GetOrder returns one order.
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	o, ok := h.loadOrder(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionShow, o, 0) {
		return
	}
	httputil.WriteSuccess(w, o)
}

// DeleteOrder discards an order that has not been submitted.
func (h *OrderHandlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	o, ok := h.loadOrder(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionDestroy, o, 0) {
		return
	}
	if o.State != catalog.OrderCreated {
		httputil.WriteBadRequest(w, fmt.Sprintf("order %d is %s and can no longer be discarded", o.ID, o.State))
		return
	}

	if err := h.deps.Store.DeleteOrder(r.Context(), o.ID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type addOrderItemRequest struct {
	PortfolioItemID   int64          `json:"portfolio_item_id"`
	Count             int            `json:"count"`
	ServicePlanRef    string         `json:"service_plan_ref"`
	ServiceParameters map[string]any `json:"service_parameters"`
}

// AddOrderItem adds a portfolio item to an open order.
func (h *OrderHandlers) AddOrderItem(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	o, ok := h.loadOrder(w, r, principal.Tenant)
	if !ok {
		return
	}

	target := &catalog.OrderItem{OrderID: o.ID, Tenant: principal.Tenant}
	if !h.authorize(w, r, principal, eval, rbac.ActionCreate, target, 0) {
		return
	}

	var req addOrderItemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}

	item, err := h.deps.Service.AddToOrder(r.Context(), principal, catalog.AddToOrderParams{
		OrderID:           o.ID,
		PortfolioItemID:   req.PortfolioItemID,
		Count:             req.Count,
		ServicePlanRef:    req.ServicePlanRef,
		ServiceParameters: req.ServiceParameters,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, item)
}

// ListOrderItems lists the visible items of one order.
func (h *OrderHandlers) ListOrderItems(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	o, ok := h.loadOrder(w, r, principal.Tenant)
	if !ok {
		return
	}

	all, err := h.deps.Store.ListOrderItems(r.Context(), o.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	visible, err := rbac.ResolveScope(r.Context(), h.deps.Resolver, principal, eval, rbac.ResourceOrderItem, rbac.PermissionRead, all)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, visible)
}

// SubmitOrder dispatches every item of the order to the provisioning engine.
func (h *OrderHandlers) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	o, ok := h.loadOrder(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionOrder, o, 0) {
		return
	}

	submitted, err := h.deps.Service.SubmitOrder(r.Context(), o.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.deps.Audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventTypeOrderSubmitted,
		Status:       audit.EventStatusSuccess,
		Username:     principal.Username,
		Tenant:       principal.Tenant,
		ResourceType: string(rbac.ResourceOrder),
		ResourceID:   fmt.Sprintf("%d", o.ID),
		Detail:       map[string]any{"state": string(submitted.State)},
	})
	httputil.WriteSuccess(w, submitted)
}

func (h *OrderHandlers) loadOrderItem(w http.ResponseWriter, r *http.Request, tenant string) (*catalog.OrderItem, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}
	item, err := h.deps.Store.GetOrderItem(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return nil, false
	}
	if item.Tenant != tenant {
		httputil.WriteNotFound(w, fmt.Sprintf("order item %d not found", id))
		return nil, false
	}
	return item, true
}

// GetOrderItem returns one order item.
func (h *OrderHandlers) GetOrderItem(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	item, ok := h.loadOrderItem(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionShow, item, 0) {
		return
	}
	httputil.WriteSuccess(w, item)
}

// ListProgressMessages returns the progress log of one order item.
func (h *OrderHandlers) ListProgressMessages(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	item, ok := h.loadOrderItem(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionShow, item, 0) {
		return
	}

	messages, err := h.deps.Store.ListProgressMessages(r.Context(), item.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, messages)
}
