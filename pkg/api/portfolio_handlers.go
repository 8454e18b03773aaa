package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/catalogforge/catalog/pkg/audit"
	"github.com/catalogforge/catalog/pkg/catalog"
	"github.com/catalogforge/catalog/pkg/httputil"
	"github.com/catalogforge/catalog/pkg/rbac"
	"github.com/catalogforge/catalog/pkg/storage"
)

// maxIconBytes bounds uploaded icon blobs.
const maxIconBytes = 1 << 20

// sharablePermissions are the grants a share request may name.
var sharablePermissions = map[rbac.Permission]bool{
	rbac.PermissionRead:   true,
	rbac.PermissionUpdate: true,
	rbac.PermissionOrder:  true,
	rbac.PermissionDelete: true,
}

// PortfolioHandlers serves portfolio and portfolio item routes.
type PortfolioHandlers struct {
	*Server
}

// NewPortfolioHandlers creates portfolio handlers bound to the server.
func NewPortfolioHandlers(s *Server) *PortfolioHandlers {
	return &PortfolioHandlers{Server: s}
}

// RegisterRoutes registers portfolio routes.
func (h *PortfolioHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/portfolios", h.CreatePortfolio).Methods("POST")
	router.HandleFunc("/portfolios", h.ListPortfolios).Methods("GET")
	router.HandleFunc("/portfolios/{id}", h.GetPortfolio).Methods("GET")
	router.HandleFunc("/portfolios/{id}", h.UpdatePortfolio).Methods("PATCH")
	router.HandleFunc("/portfolios/{id}", h.DeletePortfolio).Methods("DELETE")

	// Sharing
	router.HandleFunc("/portfolios/{id}/share", h.SharePortfolio).Methods("POST")
	router.HandleFunc("/portfolios/{id}/unshare", h.UnsharePortfolio).Methods("POST")

	// Icons
	router.HandleFunc("/portfolios/{id}/icon", h.UploadIcon).Methods("POST")
	router.HandleFunc("/portfolios/{id}/icon", h.GetIcon).Methods("GET")
	router.HandleFunc("/portfolios/{id}/icon", h.DeleteIcon).Methods("DELETE")

	// Items
	router.HandleFunc("/portfolios/{id}/portfolio_items", h.CreatePortfolioItem).Methods("POST")
	router.HandleFunc("/portfolios/{id}/portfolio_items", h.ListPortfolioItems).Methods("GET")
	router.HandleFunc("/portfolio_items/{id}", h.GetPortfolioItem).Methods("GET")
	router.HandleFunc("/portfolio_items/{id}", h.UpdatePortfolioItem).Methods("PATCH")
	router.HandleFunc("/portfolio_items/{id}", h.DeletePortfolioItem).Methods("DELETE")
	router.HandleFunc("/portfolio_items/{id}/copy", h.CopyPortfolioItem).Methods("POST")
	router.HandleFunc("/portfolio_items/{id}/workflow", h.SetItemWorkflow).Methods("POST")
}

type portfolioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     *bool  `json:"enabled"`
	WorkflowRef string `json:"workflow_ref"`
}

// CreatePortfolio creates a portfolio owned by the caller.
func (h *PortfolioHandlers) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	var req portfolioRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	target := &catalog.Portfolio{Tenant: principal.Tenant}
	if !h.authorize(w, r, principal, eval, rbac.ActionCreate, target, 0) {
		return
	}

	p := &catalog.Portfolio{
		Name:        req.Name,
		Description: req.Description,
		Owner:       principal.Username,
		Tenant:      principal.Tenant,
		Enabled:     req.Enabled == nil || *req.Enabled,
		WorkflowRef: req.WorkflowRef,
	}
	if err := h.deps.Store.CreatePortfolio(r.Context(), p); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, p)
}

// ListPortfolios lists the portfolios visible to the caller.
func (h *PortfolioHandlers) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	all, err := h.deps.Store.ListPortfolios(r.Context(), principal.Tenant)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	visible, err := rbac.ResolveScope(r.Context(), h.deps.Resolver, principal, eval, rbac.ResourcePortfolio, rbac.PermissionRead, all)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, visible)
}

// loadPortfolio fetches a portfolio and hides records from other tenants.
func (h *PortfolioHandlers) loadPortfolio(w http.ResponseWriter, r *http.Request, tenant string) (*catalog.Portfolio, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}
	p, err := h.deps.Store.GetPortfolio(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return nil, false
	}
	if p.Tenant != tenant {
		httputil.WriteNotFound(w, fmt.Sprintf("portfolio %d not found", id))
		return nil, false
	}
	return p, true
}

// GetPortfolio returns one portfolio.
func (h *PortfolioHandlers) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	p, ok := h.loadPortfolio(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionShow, p, 0) {
		return
	}
	httputil.WriteSuccess(w, p)
}

// UpdatePortfolio applies a partial update.
func (h *PortfolioHandlers) UpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	p, ok := h.loadPortfolio(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionUpdate, p, 0) {
		return
	}

	var req portfolioRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name != "" {
		p.Name = req.Name
	}
	if req.Description != "" {
		p.Description = req.Description
	}
	if req.Enabled != nil {
		p.Enabled = *req.Enabled
	}
	if req.WorkflowRef != "" {
		p.WorkflowRef = req.WorkflowRef
	}

	if err := h.deps.Store.UpdatePortfolio(r.Context(), p); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

// DeletePortfolio removes a portfolio and revokes its grants.
func (h *PortfolioHandlers) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	p, ok := h.loadPortfolio(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionDestroy, p, 0) {
		return
	}

	if err := h.deps.Store.DeletePortfolio(r.Context(), p.ID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.deps.Entitlements.DeleteEntitlements(r.Context(), rbac.ResourcePortfolio, p.ID); err != nil {
		h.logger.WithError(err).Error("Failed to revoke entitlements for deleted portfolio")
	}
	h.invalidateEntitlementCache(r)
	httputil.WriteNoContent(w)
}

type shareRequest struct {
	GroupIDs    []string `json:"group_ids"`
	Permissions []string `json:"permissions"`
}

func (req *shareRequest) permissions() ([]rbac.Permission, error) {
	if len(req.GroupIDs) == 0 {
		return nil, fmt.Errorf("group_ids is required")
	}
	if len(req.Permissions) == 0 {
		return nil, fmt.Errorf("permissions is required")
	}
	perms := make([]rbac.Permission, 0, len(req.Permissions))
	for _, raw := range req.Permissions {
		p := rbac.Permission(raw)
		if !sharablePermissions[p] {
			return nil, fmt.Errorf("permission %q cannot be shared", raw)
		}
		perms = append(perms, p)
	}
	return perms, nil
}

// SharePortfolio grants permissions on a portfolio to principal groups.
func (h *PortfolioHandlers) SharePortfolio(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	p, ok := h.loadPortfolio(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionUpdate, p, 0) {
		return
	}

	var req shareRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	perms, err := req.permissions()
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	for _, group := range req.GroupIDs {
		for _, perm := range perms {
			e := &rbac.Entitlement{
				GroupID:      group,
				Permission:   perm,
				ResourceType: rbac.ResourcePortfolio,
				ResourceID:   p.ID,
			}
			if err := h.deps.Entitlements.CreateEntitlement(r.Context(), e); err != nil {
				h.writeDomainError(w, r, err)
				return
			}
		}
	}

	h.deps.Audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventTypeEntitlementGranted,
		Status:       audit.EventStatusSuccess,
		Username:     principal.Username,
		Tenant:       principal.Tenant,
		ResourceType: string(rbac.ResourcePortfolio),
		ResourceID:   fmt.Sprintf("%d", p.ID),
		Detail:       map[string]any{"groups": req.GroupIDs, "permissions": req.Permissions},
	})
	h.invalidateEntitlementCache(r)
	httputil.WriteNoContent(w)
}

// UnsharePortfolio revokes previously granted permissions.
func (h *PortfolioHandlers) UnsharePortfolio(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	p, ok := h.loadPortfolio(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionUpdate, p, 0) {
		return
	}

	var req shareRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	perms, err := req.permissions()
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	for _, group := range req.GroupIDs {
		for _, perm := range perms {
			if err := h.deps.Entitlements.DeleteEntitlement(r.Context(), group, perm, rbac.ResourcePortfolio, p.ID); err != nil {
				h.writeDomainError(w, r, err)
				return
			}
		}
	}

	h.deps.Audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventTypeEntitlementRevoked,
		Status:       audit.EventStatusSuccess,
		Username:     principal.Username,
		Tenant:       principal.Tenant,
		ResourceType: string(rbac.ResourcePortfolio),
		ResourceID:   fmt.Sprintf("%d", p.ID),
		Detail:       map[string]any{"groups": req.GroupIDs, "permissions": req.Permissions},
	})
	h.invalidateEntitlementCache(r)
	httputil.WriteNoContent(w)
}

func (h *Server) invalidateEntitlementCache(r *http.Request) {
	if h.deps.Cache == nil {
		return
	}
	if err := h.deps.Cache.Invalidate(r.Context()); err != nil {
		h.logger.WithError(err).Warn("Failed to invalidate entitlement cache")
	}
}

// UploadIcon stores an icon blob and attaches its reference.
func (h *PortfolioHandlers) UploadIcon(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	p, ok := h.loadPortfolio(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionUpdate, p, 0) {
		return
	}

	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIconBytes))
	if err != nil {
		httputil.WriteBadRequest(w, "icon exceeds size limit")
		return
	}
	if len(content) == 0 {
		httputil.WriteBadRequest(w, "icon content is required")
		return
	}

	ref, err := h.deps.Icons.Put(r.Context(), content, r.Header.Get("Content-Type"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	p.IconRef = ref
	if err := h.deps.Store.UpdatePortfolio(r.Context(), p); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"icon_ref": ref})
}

// GetIcon streams the portfolio icon.
func (h *PortfolioHandlers) GetIcon(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	p, ok := h.loadPortfolio(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionShow, p, 0) {
		return
	}
	if p.IconRef == "" {
		httputil.WriteNotFound(w, "portfolio has no icon")
		return
	}

	blob, err := h.deps.Icons.Get(r.Context(), p.IconRef)
	if err != nil {
		if errors.Is(err, storage.ErrIconNotFound) {
			httputil.WriteNotFound(w, "icon not found")
			return
		}
		h.writeDomainError(w, r, err)
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, blob)
}

// DeleteIcon detaches and removes the portfolio icon.
func (h *PortfolioHandlers) DeleteIcon(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	p, ok := h.loadPortfolio(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionUpdate, p, 0) {
		return
	}
	if p.IconRef == "" {
		httputil.WriteNoContent(w)
		return
	}

	ref := p.IconRef
	p.IconRef = ""
	if err := h.deps.Store.UpdatePortfolio(r.Context(), p); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.deps.Icons.Delete(r.Context(), ref); err != nil {
		h.logger.WithError(err).Warn("Failed to delete icon blob")
	}
	httputil.WriteNoContent(w)
}

type portfolioItemRequest struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	ServiceOfferingRef string `json:"service_offering_ref"`
	WorkflowRef        string `json:"workflow_ref"`
	Orderable          *bool  `json:"orderable"`
}

// CreatePortfolioItem adds an item to a portfolio.
func (h *PortfolioHandlers) CreatePortfolioItem(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	p, ok := h.loadPortfolio(w, r, principal.Tenant)
	if !ok {
		return
	}

	var req portfolioItemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}
	if req.ServiceOfferingRef == "" {
		httputil.WriteBadRequest(w, "service_offering_ref is required")
		return
	}

	target := &catalog.PortfolioItem{PortfolioID: p.ID, Tenant: principal.Tenant}
	if !h.authorize(w, r, principal, eval, rbac.ActionCreate, target, 0) {
		return
	}

	item := &catalog.PortfolioItem{
		PortfolioID:        p.ID,
		Name:               req.Name,
		Description:        req.Description,
		Owner:              principal.Username,
		Tenant:             principal.Tenant,
		ServiceOfferingRef: req.ServiceOfferingRef,
		WorkflowRef:        req.WorkflowRef,
		Orderable:          req.Orderable == nil || *req.Orderable,
	}
	if err := h.deps.Store.CreatePortfolioItem(r.Context(), item); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, item)
}

// ListPortfolioItems lists the visible items of one portfolio.
func (h *PortfolioHandlers) ListPortfolioItems(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	p, ok := h.loadPortfolio(w, r, principal.Tenant)
	if !ok {
		return
	}

	all, err := h.deps.Store.ListPortfolioItems(r.Context(), principal.Tenant, p.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	visible, err := rbac.ResolveScope(r.Context(), h.deps.Resolver, principal, eval, rbac.ResourcePortfolioItem, rbac.PermissionRead, all)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, visible)
}

func (h *PortfolioHandlers) loadPortfolioItem(w http.ResponseWriter, r *http.Request, tenant string) (*catalog.PortfolioItem, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}
	item, err := h.deps.Store.GetPortfolioItem(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return nil, false
	}
	if item.Tenant != tenant {
		httputil.WriteNotFound(w, fmt.Sprintf("portfolio item %d not found", id))
		return nil, false
	}
	return item, true
}

// GetPortfolioItem returns one portfolio item.
func (h *PortfolioHandlers) GetPortfolioItem(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	item, ok := h.loadPortfolioItem(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionShow, item, 0) {
		return
	}
	httputil.WriteSuccess(w, item)
}

// UpdatePortfolioItem applies a partial update to an item.
func (h *PortfolioHandlers) UpdatePortfolioItem(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	item, ok := h.loadPortfolioItem(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionUpdate, item, 0) {
		return
	}

	var req portfolioItemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name != "" {
		item.Name = req.Name
	}
	if req.Description != "" {
		item.Description = req.Description
	}
	if req.ServiceOfferingRef != "" {
		item.ServiceOfferingRef = req.ServiceOfferingRef
	}
	if req.Orderable != nil {
		item.Orderable = *req.Orderable
	}

	if err := h.deps.Store.UpdatePortfolioItem(r.Context(), item); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, item)
}

// DeletePortfolioItem removes an item.
func (h *PortfolioHandlers) DeletePortfolioItem(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	item, ok := h.loadPortfolioItem(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionDestroy, item, 0) {
		return
	}

	if err := h.deps.Store.DeletePortfolioItem(r.Context(), item.ID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type copyRequest struct {
	PortfolioID int64 `json:"portfolio_id"`
}

// CopyPortfolioItem duplicates an item, optionally into another portfolio.
func (h *PortfolioHandlers) CopyPortfolioItem(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	item, ok := h.loadPortfolioItem(w, r, principal.Tenant)
	if !ok {
		return
	}

	// The body is optional; an absent destination copies in place.
	var req copyRequest
	if err := httputil.ParseJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionCopy, item, req.PortfolioID) {
		return
	}

	dst := req.PortfolioID
	if dst == 0 {
		dst = item.PortfolioID
	}
	copied, err := h.deps.Store.CopyPortfolioItem(r.Context(), item.ID, dst, principal.Username)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, copied)
}

type workflowRequest struct {
	WorkflowRef string `json:"workflow_ref"`
}

// SetItemWorkflow attaches or clears the approval workflow reference of an
// item. Requires a configured approval workflow service.
func (h *PortfolioHandlers) SetItemWorkflow(w http.ResponseWriter, r *http.Request) {
	principal, eval, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	item, ok := h.loadPortfolioItem(w, r, principal.Tenant)
	if !ok {
		return
	}
	if !h.authorize(w, r, principal, eval, rbac.ActionSetApproval, item, 0) {
		return
	}

	var req workflowRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	item.WorkflowRef = req.WorkflowRef
	if err := h.deps.Store.UpdatePortfolioItem(r.Context(), item); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, item)
}
