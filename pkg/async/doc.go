// Package async provides supervised goroutine helpers: SafeGo for
// fire-and-forget background work with panic recovery and a timeout, and
// WorkerPool for bounded concurrent processing with graceful shutdown.
// Use these instead of bare `go func()`.
package async
