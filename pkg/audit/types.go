package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypeAccessDenied       EventType = "authz.access_denied"
	EventTypeScopeMisconfigured EventType = "authz.scope_misconfigured"

	// Order lifecycle events
	EventTypeOrderCreated      EventType = "order.created"
	EventTypeOrderSubmitted    EventType = "order.submitted"
	EventTypeOrderItemComplete EventType = "order.item_completed"
	EventTypeOrderItemFailed   EventType = "order.item_failed"

	// Sharing events
	EventTypeEntitlementGranted EventType = "sharing.entitlement_granted"
	EventTypeEntitlementRevoked EventType = "sharing.entitlement_revoked"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit log entry.
type Event struct {
	ID           int64          `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	EventType    EventType      `json:"event_type"`
	Status       EventStatus    `json:"status"`
	Username     string         `json:"username"`
	Tenant       string         `json:"tenant"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Detail       map[string]any `json:"detail,omitempty"`
}
