package catalog

import (
	"time"

	"github.com/catalogforge/catalog/pkg/rbac"
)

// ItemState is the lifecycle state of an order item.
type ItemState string

const (
	// StateCreated means the item sits on an unsubmitted order.
	StateCreated ItemState = "created"
	// StatePending means the item was dispatched and awaits execution.
	StatePending ItemState = "pending"
	// StateRunning means the external task reported progress.
	StateRunning ItemState = "running"
	// StateCompleted is terminal success.
	StateCompleted ItemState = "completed"
	// StateFailed is terminal failure.
	StateFailed ItemState = "failed"
)

// Terminal reports whether the state accepts no further transitions.
func (s ItemState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// OrderState is the lifecycle state of an order.
type OrderState string

const (
	OrderCreated   OrderState = "created"
	OrderSubmitted OrderState = "submitted"
	OrderCompleted OrderState = "completed"
	OrderFailed    OrderState = "failed"
)

// MessageLevel classifies a progress message.
type MessageLevel string

const (
	LevelInfo  MessageLevel = "info"
	LevelError MessageLevel = "error"
)

// Portfolio groups portfolio items and is the unit entitlements attach to.
type Portfolio struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"owner"`
	Tenant      string    `json:"tenant"`
	Enabled     bool      `json:"enabled"`
	WorkflowRef string    `json:"workflow_ref,omitempty"`
	IconRef     string    `json:"icon_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Portfolio) ResourceType() rbac.Resource { return rbac.ResourcePortfolio }
func (p *Portfolio) ResourceID() int64           { return p.ID }
func (p *Portfolio) ScopeParentID() int64        { return p.ID }
func (p *Portfolio) ParentID() int64             { return 0 }
func (p *Portfolio) OwnerUsername() string       { return p.Owner }
func (p *Portfolio) TenantID() string            { return p.Tenant }

// PortfolioItem is one orderable offering inside a portfolio. Its
// ServiceOfferingRef points at the offering in the external inventory.
type PortfolioItem struct {
	ID                 int64     `json:"id"`
	PortfolioID        int64     `json:"portfolio_id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	Owner              string    `json:"owner"`
	Tenant             string    `json:"tenant"`
	ServiceOfferingRef string    `json:"service_offering_ref"`
	WorkflowRef        string    `json:"workflow_ref,omitempty"`
	Orderable          bool      `json:"orderable"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (i *PortfolioItem) ResourceType() rbac.Resource { return rbac.ResourcePortfolioItem }
func (i *PortfolioItem) ResourceID() int64           { return i.ID }
func (i *PortfolioItem) ScopeParentID() int64        { return i.PortfolioID }
func (i *PortfolioItem) ParentID() int64             { return i.PortfolioID }
func (i *PortfolioItem) OwnerUsername() string       { return i.Owner }
func (i *PortfolioItem) TenantID() string            { return i.Tenant }

// Order is a user-owned collection of order items submitted as one unit.
type Order struct {
	ID          int64      `json:"id"`
	State       OrderState `json:"state"`
	Owner       string     `json:"owner"`
	Tenant      string     `json:"tenant"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (o *Order) ResourceType() rbac.Resource { return rbac.ResourceOrder }
func (o *Order) ResourceID() int64           { return o.ID }
func (o *Order) ScopeParentID() int64        { return o.ID }
func (o *Order) ParentID() int64             { return 0 }
func (o *Order) OwnerUsername() string       { return o.Owner }
func (o *Order) TenantID() string            { return o.Tenant }

// OrderItem ties a portfolio item on an order to its external provisioning
// task. ExternalTaskRef is set exactly once, at dispatch, and is the sole
// key fulfillment events are correlated by. Version guards concurrent
// transitions.
type OrderItem struct {
	ID                 int64             `json:"id"`
	OrderID            int64             `json:"order_id"`
	PortfolioItemID    int64             `json:"portfolio_item_id"`
	State              ItemState         `json:"state"`
	Owner              string            `json:"owner"`
	Tenant             string            `json:"tenant"`
	Count              int               `json:"count"`
	ServicePlanRef     string            `json:"service_plan_ref"`
	ServiceParameters  map[string]any    `json:"service_parameters,omitempty"`
	Context            map[string]string `json:"context,omitempty"`
	ExternalTaskRef    string            `json:"external_task_ref,omitempty"`
	ServiceInstanceRef string            `json:"service_instance_ref,omitempty"`
	ExternalURL        string            `json:"external_url,omitempty"`
	Artifacts          map[string]string `json:"artifacts,omitempty"`
	Version            int64             `json:"-"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func (i *OrderItem) ResourceType() rbac.Resource { return rbac.ResourceOrderItem }
func (i *OrderItem) ResourceID() int64           { return i.ID }
func (i *OrderItem) ScopeParentID() int64        { return i.OrderID }
func (i *OrderItem) ParentID() int64             { return i.OrderID }
func (i *OrderItem) OwnerUsername() string       { return i.Owner }
func (i *OrderItem) TenantID() string            { return i.Tenant }

// ProgressMessage is one append-only audit entry on an order item.
type ProgressMessage struct {
	ID          int64        `json:"id"`
	OrderItemID int64        `json:"order_item_id"`
	Level       MessageLevel `json:"level"`
	Message     string       `json:"message"`
	CreatedAt   time.Time    `json:"created_at"`
}
