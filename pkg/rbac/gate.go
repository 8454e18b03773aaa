package rbac

import (
	"context"

	"github.com/catalogforge/catalog/pkg/auth"
	"github.com/catalogforge/catalog/pkg/observability"
)

// Target is a single resource under permission evaluation. For create
// actions the record does not exist yet; the caller supplies a target
// carrying the declared parent id.
type Target interface {
	ResourceType() Resource
	ResourceID() int64

	// ParentID is the containing resource id, 0 when the type has no parent.
	ParentID() int64

	OwnerUsername() string
	TenantID() string
}

// ResourceRef is a container resource looked up during a check.
type ResourceRef struct {
	ID     int64
	Owner  string
	Tenant string
}

// RefFinder resolves resource references for ownership and tenant checks.
// A lookup miss returns an error satisfying the caller's not-found class;
// the gate propagates it since a dangling parent is malformed state.
type RefFinder interface {
	FindRef(ctx context.Context, resourceType Resource, id int64) (*ResourceRef, error)
}

// WorkflowChecker is the external approval-workflow predicate consulted by
// the set_approval rule.
type WorkflowChecker interface {
	ApprovalWorkflowConfigured(ctx context.Context) (bool, error)
}

// CheckRequest carries one permission question.
type CheckRequest struct {
	Principal *auth.Principal
	Eval      auth.ScopeEvaluation
	Action    Action
	Target    Target

	// DestinationParentID is the copy destination declared in request
	// parameters. Zero falls back to the source parent.
	DestinationParentID int64
}

type ruleFunc func(ctx context.Context, g *Gate, req CheckRequest) (bool, error)

// Gate answers yes/no permission questions from a declarative rule table.
// Denial is a normal false return; errors are reserved for malformed state.
type Gate struct {
	resolver     *ScopeResolver
	entitlements EntitlementSource
	refs         RefFinder
	workflow     WorkflowChecker
	logger       *observability.Logger
	rules        map[Resource]map[Action]ruleFunc
}

// NewGate builds the gate with its per-type action rules.
func NewGate(resolver *ScopeResolver, entitlements EntitlementSource, refs RefFinder, workflow WorkflowChecker, logger *observability.Logger) *Gate {
	g := &Gate{
		resolver:     resolver,
		entitlements: entitlements,
		refs:         refs,
		workflow:     workflow,
		logger:       logger,
	}

	g.rules = map[Resource]map[Action]ruleFunc{
		ResourcePortfolio: {
			ActionIndex:   indexRule(ResourcePortfolio, PermissionRead),
			ActionShow:    selfCheckRule(PermissionRead),
			ActionCreate:  adminOnlyRule,
			ActionUpdate:  selfCheckRule(PermissionUpdate),
			ActionDestroy: selfCheckRule(PermissionUpdate),
		},
		ResourcePortfolioItem: {
			ActionIndex:       indexRule(ResourcePortfolioItem, PermissionRead),
			ActionShow:        parentCheckRule(PermissionRead),
			ActionCreate:      parentCheckRule(PermissionUpdate),
			ActionUpdate:      parentCheckRule(PermissionUpdate),
			ActionDestroy:     parentCheckRule(PermissionUpdate),
			ActionEditSurvey:  parentCheckRule(PermissionUpdate),
			ActionCopy:        copyRule,
			ActionSetApproval: approvalRule,
		},
		ResourceOrder: {
			ActionIndex:   indexRule(ResourceOrder, PermissionRead),
			ActionShow:    selfCheckRule(PermissionRead),
			ActionCreate:  allowRule,
			ActionUpdate:  selfCheckRule(PermissionUpdate),
			ActionDestroy: selfCheckRule(PermissionUpdate),
			ActionOrder:   selfCheckRule(PermissionOrder),
		},
		ResourceOrderItem: {
			ActionIndex:   indexRule(ResourceOrderItem, PermissionRead),
			ActionShow:    parentCheckRule(PermissionRead),
			ActionCreate:  parentCheckRule(PermissionUpdate),
			ActionDestroy: parentCheckRule(PermissionUpdate),
		},
	}

	return g
}

// Check evaluates the rule for (target type, action). Unknown pairs deny.
func (g *Gate) Check(ctx context.Context, req CheckRequest) (bool, error) {
	actions, ok := g.rules[req.Target.ResourceType()]
	if !ok {
		g.logger.WithField("resource_type", string(req.Target.ResourceType())).
			Warn("no permission rules for resource type")
		return false, nil
	}
	rule, ok := actions[req.Action]
	if !ok {
		g.logger.WithField("resource_type", string(req.Target.ResourceType())).
			WithField("action", string(req.Action)).
			Warn("no permission rule for action")
		return false, nil
	}
	return rule(ctx, g, req)
}

// resourceCheck answers "does the principal hold permission on this specific
// resource" per tier: admins always, groups via an entitlement row, users
// via ownership of the referenced resource.
func (g *Gate) resourceCheck(ctx context.Context, req CheckRequest, permission Permission, resourceType Resource, id int64) (bool, error) {
	switch req.Eval.Tier {
	case auth.TierAdmin:
		return true, nil
	case auth.TierGroup:
		return g.entitlements.HasResource(ctx, req.Principal.GroupIDs, permission, resourceType, id)
	case auth.TierUser:
		ref, err := g.refs.FindRef(ctx, resourceType, id)
		if err != nil {
			return false, err
		}
		return ref.Owner == req.Principal.Username, nil
	default:
		g.logger.WithField("resource_type", string(resourceType)).
			WithField("scope", string(req.Eval.Tier)).
			Error("scope tag not in admin/group/user set")
		return false, &ConfigurationError{ResourceType: resourceType, Scope: string(req.Eval.Tier)}
	}
}

func (g *Gate) canReadAndUpdate(ctx context.Context, req CheckRequest, resourceType Resource, id int64) (bool, error) {
	ok, err := g.resourceCheck(ctx, req, PermissionRead, resourceType, id)
	if err != nil || !ok {
		return false, err
	}
	return g.resourceCheck(ctx, req, PermissionUpdate, resourceType, id)
}

// indexRule delegates entirely to the resolver's existence check: can the
// principal see anything in this collection context.
func indexRule(resourceType Resource, permission Permission) ruleFunc {
	return func(ctx context.Context, g *Gate, req CheckRequest) (bool, error) {
		return g.resolver.VisibleAny(ctx, req.Principal, req.Eval, resourceType, permission)
	}
}

// selfCheckRule checks the permission on the resource itself.
func selfCheckRule(permission Permission) ruleFunc {
	return func(ctx context.Context, g *Gate, req CheckRequest) (bool, error) {
		return g.resourceCheck(ctx, req, permission, req.Target.ResourceType(), req.Target.ResourceID())
	}
}

// parentCheckRule checks the permission on the target's containing resource.
// Creating or mutating a child requires the permission on its container.
func parentCheckRule(permission Permission) ruleFunc {
	return func(ctx context.Context, g *Gate, req CheckRequest) (bool, error) {
		parentID := req.Target.ParentID()
		if parentID == 0 {
			return false, ErrMissingParent
		}
		return g.resourceCheck(ctx, req, permission, ParentType(req.Target.ResourceType()), parentID)
	}
}

func adminOnlyRule(ctx context.Context, g *Gate, req CheckRequest) (bool, error) {
	return req.Eval.Tier == auth.TierAdmin, nil
}

func allowRule(ctx context.Context, g *Gate, req CheckRequest) (bool, error) {
	return true, nil
}

// copyRule is asymmetric. Copying within one portfolio requires read+update
// there. Copying across portfolios requires read on the source plus
// read+update on the destination, and is refused outright across tenant
// boundaries regardless of individual grants.
func copyRule(ctx context.Context, g *Gate, req CheckRequest) (bool, error) {
	sourceParent := req.Target.ParentID()
	if sourceParent == 0 {
		return false, ErrMissingParent
	}

	destParent := req.DestinationParentID
	if destParent == 0 {
		destParent = sourceParent
	}

	if destParent == sourceParent {
		return g.canReadAndUpdate(ctx, req, ParentType(req.Target.ResourceType()), destParent)
	}

	parentType := ParentType(req.Target.ResourceType())

	// Tenant isolation is an explicit cross-check, not a consequence of the
	// two permission checks.
	sourceRef, err := g.refs.FindRef(ctx, parentType, sourceParent)
	if err != nil {
		return false, err
	}
	destRef, err := g.refs.FindRef(ctx, parentType, destParent)
	if err != nil {
		return false, err
	}
	if sourceRef.Tenant != destRef.Tenant {
		return false, nil
	}

	ok, err := g.resourceCheck(ctx, req, PermissionRead, parentType, sourceParent)
	if err != nil || !ok {
		return false, err
	}
	return g.canReadAndUpdate(ctx, req, parentType, destParent)
}

// approvalRule requires the ordinary update check and the external
// approval-workflow predicate to both hold.
func approvalRule(ctx context.Context, g *Gate, req CheckRequest) (bool, error) {
	ok, err := parentCheckRule(PermissionUpdate)(ctx, g, req)
	if err != nil || !ok {
		return false, err
	}
	return g.workflow.ApprovalWorkflowConfigured(ctx)
}
