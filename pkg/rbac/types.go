package rbac

import "time"

// Resource identifies a resource type subject to access control
type Resource string

const (
	ResourcePortfolio     Resource = "portfolio"
	ResourcePortfolioItem Resource = "portfolio_item"
	ResourceOrder         Resource = "order"
	ResourceOrderItem     Resource = "order_item"
	ResourceProgressMsg   Resource = "progress_message"
)

// Permission is a named grant on a resource
type Permission string

const (
	PermissionRead   Permission = "read"
	PermissionCreate Permission = "create"
	PermissionUpdate Permission = "update"
	PermissionDelete Permission = "delete"
	PermissionOrder  Permission = "order"
)

// Action is an operation a principal attempts on a resource
type Action string

const (
	ActionIndex       Action = "index"
	ActionShow        Action = "show"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDestroy     Action = "destroy"
	ActionCopy        Action = "copy"
	ActionEditSurvey  Action = "edit_survey"
	ActionSetApproval Action = "set_approval"
	ActionOrder       Action = "order"
)

// Entitlement is an explicit grant of a permission on one resource to a
// principal group. Uniqueness is not required; evaluation only asks whether
// at least one matching row exists.
type Entitlement struct {
	ID           int64      `json:"id"`
	GroupID      string     `json:"group_id"`
	Permission   Permission `json:"permission"`
	ResourceType Resource   `json:"resource_type"`
	ResourceID   int64      `json:"resource_id"`
	CreatedAt    time.Time  `json:"created_at"`
}

// scopedType returns the resource type at which entitlements are granted.
// Child resource types are scoped by their parent: sharing a portfolio
// entitles its items, ordering rights attach to the order, not the item.
func scopedType(rt Resource) Resource {
	switch rt {
	case ResourcePortfolioItem:
		return ResourcePortfolio
	case ResourceOrderItem, ResourceProgressMsg:
		return ResourceOrder
	default:
		return rt
	}
}

// ParentType exposes the entitlement granularity mapping for callers that
// need to phrase a parent-level check themselves.
func ParentType(rt Resource) Resource {
	return scopedType(rt)
}
