// Package api exposes the catalog over HTTP.
//
// Routes are grouped per resource into handler structs, each registering its
// own routes on the shared gorilla/mux router. Every business route passes
// through the identity middleware, the rate limiter, and an authorization
// check against the rbac gate before touching the store. Authorization
// failures map to 403 and are recorded in the audit log; a misconfigured
// scope maps to 500 because silently narrowing access would hide the defect.
//
// The task-event endpoint is the inbound edge of order fulfillment: the
// provisioning engine posts task status updates there and they are queued to
// the fulfillment consumer for asynchronous processing.
package api
