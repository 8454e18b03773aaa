package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/catalogforge/catalog/pkg/audit"
	"github.com/catalogforge/catalog/pkg/auth"
	"github.com/catalogforge/catalog/pkg/catalog"
	"github.com/catalogforge/catalog/pkg/httputil"
	"github.com/catalogforge/catalog/pkg/provision"
	"github.com/catalogforge/catalog/pkg/rbac"
)

// requestScope pulls the authenticated principal off the request and
// evaluates its scope tier. A missing principal means the route was wired
// outside the identity middleware; that is answered with 401, not a panic.
func (s *Server) requestScope(w http.ResponseWriter, r *http.Request) (*auth.Principal, auth.ScopeEvaluation, bool) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, auth.ScopeEvaluation{}, false
	}
	return principal, auth.EvaluateScope(principal, s.deps.AdminRole), true
}

// authorize runs the gate for one (action, target) pair and writes the
// response on failure. Denials and scope misconfigurations are recorded in
// the audit log.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, principal *auth.Principal, eval auth.ScopeEvaluation, action rbac.Action, target rbac.Target, destParentID int64) bool {
	ctx := r.Context()
	ok, err := s.deps.Gate.Check(ctx, rbac.CheckRequest{
		Principal:           principal,
		Eval:                eval,
		Action:              action,
		Target:              target,
		DestinationParentID: destParentID,
	})
	if err != nil {
		if catalog.IsNotFound(err) {
			httputil.WriteNotFound(w, err.Error())
			return false
		}
		if rbac.IsConfigurationError(err) {
			s.deps.Audit.Record(ctx, &audit.Event{
				EventType:    audit.EventTypeScopeMisconfigured,
				Status:       audit.EventStatusFailure,
				Username:     principal.Username,
				Tenant:       principal.Tenant,
				ResourceType: string(target.ResourceType()),
				ResourceID:   fmt.Sprintf("%d", target.ResourceID()),
				Detail:       map[string]any{"action": string(action), "error": err.Error()},
			})
			httputil.WriteInternalError(w, err)
			return false
		}
		httputil.WriteInternalError(w, err)
		return false
	}
	if !ok {
		s.deps.Audit.Record(ctx, &audit.Event{
			EventType:    audit.EventTypeAccessDenied,
			Status:       audit.EventStatusDenied,
			Username:     principal.Username,
			Tenant:       principal.Tenant,
			ResourceType: string(target.ResourceType()),
			ResourceID:   fmt.Sprintf("%d", target.ResourceID()),
			Detail:       map[string]any{"action": string(action)},
		})
		httputil.WriteForbidden(w, "not authorized")
		return false
	}
	return true
}

// requireAdmin restricts a route to the admin tier.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request, principal *auth.Principal, eval auth.ScopeEvaluation) bool {
	if eval.Tier == auth.TierAdmin {
		return true
	}
	s.deps.Audit.Record(r.Context(), &audit.Event{
		EventType: audit.EventTypeAccessDenied,
		Status:    audit.EventStatusDenied,
		Username:  principal.Username,
		Tenant:    principal.Tenant,
		Detail:    map[string]any{"path": r.URL.Path},
	})
	httputil.WriteForbidden(w, "not authorized")
	return false
}

// writeDomainError maps catalog and collaborator errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var unavailable *provision.UnavailableError
	switch {
	case catalog.IsValidation(err):
		httputil.WriteBadRequest(w, err.Error())
	case catalog.IsNotFound(err):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, catalog.ErrStaleOrderItem):
		httputil.WriteErrorMessage(w, http.StatusConflict, err.Error())
	case errors.As(err, &unavailable):
		httputil.WriteServiceUnavailable(w, "provisioning engine unavailable")
	default:
		httputil.LoggerFromContext(r.Context(), s.logger).WithError(err).Error("Request failed")
		httputil.WriteInternalError(w, err)
	}
}
