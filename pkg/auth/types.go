package auth

import "context"

// ScopeTier is the coarse-grained visibility class assigned to a principal
// for a permission check.
type ScopeTier string

const (
	TierAdmin ScopeTier = "admin"
	TierGroup ScopeTier = "group"
	TierUser  ScopeTier = "user"
)

// Principal is the authenticated actor making a request. It is built once
// per inbound request from an external identity assertion and never
// persisted.
type Principal struct {
	Username string   `json:"username"`
	Tenant   string   `json:"tenant"`
	Roles    []string `json:"roles"`
	GroupIDs []string `json:"groups"`

	// ScopeOverride carries an explicit scope tag from the assertion.
	// Empty for most requests; the tier is then derived from roles and
	// group membership.
	ScopeOverride string `json:"scope,omitempty"`
}

// HasRole reports whether the principal carries the named role.
func (p *Principal) HasRole(name string) bool {
	for _, r := range p.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// ScopeEvaluation is the per-request scope decision consumed by the access
// scope resolver. Tier holds the raw tag so a malformed upstream override
// survives to the resolver, which owns the unrecognized-scope error path.
type ScopeEvaluation struct {
	Tier ScopeTier
}

// EvaluateScope computes the principal's scope tier. Precedence: explicit
// assertion override, then the configured admin role, then group
// membership, then user.
func EvaluateScope(p *Principal, adminRole string) ScopeEvaluation {
	if p.ScopeOverride != "" {
		return ScopeEvaluation{Tier: ScopeTier(p.ScopeOverride)}
	}
	if p.HasRole(adminRole) {
		return ScopeEvaluation{Tier: TierAdmin}
	}
	if len(p.GroupIDs) > 0 {
		return ScopeEvaluation{Tier: TierGroup}
	}
	return ScopeEvaluation{Tier: TierUser}
}

type principalContextKey struct{}

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext retrieves the principal, or nil when unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalContextKey{}).(*Principal); ok {
		return p
	}
	return nil
}
