// Package audit records security-relevant events: denied permission
// checks, scope misconfigurations, and order lifecycle milestones. Events
// go to the audit_events table; a nop logger is available for tests and
// for deployments that do their auditing elsewhere.
package audit
