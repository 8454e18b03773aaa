// Package notifications delivers order lifecycle events to registered
// webhooks. Payloads are HMAC-SHA256 signed when the webhook carries a
// secret, and failed deliveries are retried with exponential backoff.
// Delivery is fire-and-forget from the caller's perspective: the
// fulfillment processor must never block on a slow receiver.
package notifications
