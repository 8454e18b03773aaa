// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, audit trail, progress messages
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	// Used by: handlers that need request-scoped structured logging
	LoggerKey Key = "logger"

	// ForwardableHeadersKey contains map[string]string of identity headers
	// Set by: middleware.IdentityMiddleware
	// Used by: provision client (pass-through to the inventory service),
	// order-item context capture
	ForwardableHeadersKey Key = "forwardable_headers"
)

// WithRequestID stores a request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID returns the request ID from the context, or "" if unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithForwardableHeaders stores pass-through identity headers in the context.
func WithForwardableHeaders(ctx context.Context, headers map[string]string) context.Context {
	return context.WithValue(ctx, ForwardableHeadersKey, headers)
}

// ForwardableHeaders returns the pass-through identity headers, or nil.
func ForwardableHeaders(ctx context.Context) map[string]string {
	if h, ok := ctx.Value(ForwardableHeadersKey).(map[string]string); ok {
		return h
	}
	return nil
}
