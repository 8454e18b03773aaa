package rbac

import (
	"errors"
	"fmt"
)

// ErrMissingParent indicates an action that requires a parent reference was
// invoked on a record without one. This is malformed state, not a denial.
var ErrMissingParent = errors.New("resource has no parent reference")

// ConfigurationError indicates the principal's scope tag fell outside the
// recognized admin/group/user set. This is a deployment or upstream defect
// and must never be presented as an ordinary 403.
type ConfigurationError struct {
	ResourceType Resource
	Scope        string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unrecognized access scope %q for resource type %s", e.Scope, e.ResourceType)
}

// IsConfigurationError reports whether err is a scope configuration defect.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
