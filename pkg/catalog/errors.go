package catalog

import (
	"errors"
	"fmt"
)

// ErrStaleOrderItem signals an optimistic version conflict: another writer
// transitioned the item between the caller's read and its update.
var ErrStaleOrderItem = errors.New("order item was modified concurrently")

// ErrTaskRefAssigned signals an attempt to change an order item's external
// task reference after dispatch already set it.
var ErrTaskRefAssigned = errors.New("order item already has a task reference")

// NotFoundError reports a lookup miss for a specific record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// IsNotFound reports whether err is a record lookup miss.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ValidationError reports a rejected request payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
