package rbac

import (
	"context"

	"github.com/catalogforge/catalog/pkg/auth"
	"github.com/catalogforge/catalog/pkg/observability"
)

// Scopeable is implemented by records subject to scope resolution.
type Scopeable interface {
	// ResourceID is the record's own id.
	ResourceID() int64

	// ScopeParentID is the id the group tier matches entitlements against:
	// the parent record id for child resource types, the record's own id
	// otherwise.
	ScopeParentID() int64

	// OwnerUsername is the record owner, used by the user tier.
	OwnerUsername() string
}

// ScopeResolver filters record collections down to what a principal may see.
type ScopeResolver struct {
	entitlements EntitlementSource
	logger       *observability.Logger
}

// NewScopeResolver creates a resolver backed by the given entitlement source.
func NewScopeResolver(entitlements EntitlementSource, logger *observability.Logger) *ScopeResolver {
	return &ScopeResolver{entitlements: entitlements, logger: logger}
}

// ResolveScope returns the subset of collection visible to the principal for
// the requested permission. Tiers are strict precedence, first match wins:
//
//	admin: the full collection, unfiltered
//	group: records whose scope parent carries a matching group entitlement
//	user:  records owned by the principal
//
// Any other tier tag is a configuration defect and raises; it is never
// folded into an empty result.
func ResolveScope[T Scopeable](ctx context.Context, r *ScopeResolver, principal *auth.Principal, eval auth.ScopeEvaluation, resourceType Resource, permission Permission, collection []T) ([]T, error) {
	switch eval.Tier {
	case auth.TierAdmin:
		return collection, nil

	case auth.TierGroup:
		ids, err := r.entitlements.ResourceIDs(ctx, principal.GroupIDs, permission, scopedType(resourceType))
		if err != nil {
			return nil, err
		}
		allowed := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			allowed[id] = struct{}{}
		}
		filtered := make([]T, 0, len(collection))
		for _, record := range collection {
			if _, ok := allowed[record.ScopeParentID()]; ok {
				filtered = append(filtered, record)
			}
		}
		return filtered, nil

	case auth.TierUser:
		filtered := make([]T, 0, len(collection))
		for _, record := range collection {
			if record.OwnerUsername() == principal.Username {
				filtered = append(filtered, record)
			}
		}
		return filtered, nil

	default:
		r.logger.WithField("resource_type", string(resourceType)).
			WithField("scope", string(eval.Tier)).
			Error("scope tag not in admin/group/user set")
		return nil, &ConfigurationError{ResourceType: resourceType, Scope: string(eval.Tier)}
	}
}

// VisibleAny reports whether the principal can see anything at all in a
// collection context, used by index gates to short-circuit before a scan.
func (r *ScopeResolver) VisibleAny(ctx context.Context, principal *auth.Principal, eval auth.ScopeEvaluation, resourceType Resource, permission Permission) (bool, error) {
	switch eval.Tier {
	case auth.TierAdmin:
		return true, nil
	case auth.TierGroup:
		return r.entitlements.HasAny(ctx, principal.GroupIDs, permission, scopedType(resourceType))
	case auth.TierUser:
		// owner-scoped queries always have a (possibly empty) answer
		return true, nil
	default:
		r.logger.WithField("resource_type", string(resourceType)).
			WithField("scope", string(eval.Tier)).
			Error("scope tag not in admin/group/user set")
		return false, &ConfigurationError{ResourceType: resourceType, Scope: string(eval.Tier)}
	}
}
