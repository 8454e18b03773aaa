package fulfillment

import (
	"context"
	"time"

	"github.com/catalogforge/catalog/pkg/async"
	"github.com/catalogforge/catalog/pkg/observability"
)

// Consumer feeds raw event payloads through a bounded worker pool into the
// processor. Events for different task references process in parallel; the
// processor's per-reference lock keeps same-reference events serialized.
type Consumer struct {
	processor *Processor
	pool      *async.WorkerPool
	logger    *observability.Logger
}

// NewConsumer starts workers goroutines draining submitted events.
func NewConsumer(ctx context.Context, processor *Processor, workers int, taskTimeout time.Duration, logger *observability.Logger) *Consumer {
	return &Consumer{
		processor: processor,
		pool:      async.NewWorkerPool(ctx, workers, "fulfillment events", taskTimeout, logger),
		logger:    logger,
	}
}

// Submit parses raw and queues it for processing. Parse failures are
// returned immediately; processing failures surface on the pool's error
// channel and in logs.
func (c *Consumer) Submit(raw []byte) error {
	ev, err := ParseEvent(raw)
	if err != nil {
		c.logger.WithError(err).Error("Rejecting unparseable task event")
		return err
	}
	return c.pool.Submit(func(ctx context.Context) error {
		return c.processor.Handle(ctx, ev)
	})
}

// Errors exposes processing failures for the delivery layer to act on.
func (c *Consumer) Errors() <-chan error {
	return c.pool.Errors()
}

// Shutdown drains in-flight events, waiting up to timeout.
func (c *Consumer) Shutdown(timeout time.Duration) error {
	return c.pool.Shutdown(timeout)
}
