// Package middleware carries the HTTP middleware specific to this service:
// identity extraction (encoded identity header or OIDC bearer token) and a
// Redis-backed rate limiter shared across instances. Generic request
// plumbing (request ids, logging, panic recovery) lives in pkg/httputil.
package middleware
