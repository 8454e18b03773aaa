// Package provision wraps the HTTP collaborators the ordering flow talks
// to: the external inventory engine that executes provisioning tasks, and
// the approval service that owns workflows. Transport failures surface as
// UnavailableError so the API layer can answer service-unavailable instead
// of a generic 500.
package provision
