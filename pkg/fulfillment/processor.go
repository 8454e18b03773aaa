package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/catalogforge/catalog/pkg/catalog"
	"github.com/catalogforge/catalog/pkg/observability"
)

// RecordStore is the slice of the catalog store the processor mutates.
type RecordStore interface {
	GetOrderItemByTaskRef(ctx context.Context, taskRef string) (*catalog.OrderItem, error)
	TransitionOrderItem(ctx context.Context, item *catalog.OrderItem, update *catalog.OrderItemUpdate, messages []catalog.ProgressMessage) error
	RefreshOrderState(ctx context.Context, orderID int64) (catalog.OrderState, error)
}

// TerminalNotifier is told when an order item first reaches a terminal
// state. Duplicate event deliveries never reach it.
type TerminalNotifier interface {
	OrderItemFinished(ctx context.Context, item *catalog.OrderItem)
}

// NopNotifier discards terminal notifications.
type NopNotifier struct{}

func (NopNotifier) OrderItemFinished(context.Context, *catalog.OrderItem) {}

// Processor applies task events to order items.
type Processor struct {
	store    RecordStore
	notifier TerminalNotifier
	logger   *observability.Logger
	metrics  *observability.Metrics
	locks    *keyedMutex
}

// NewProcessor creates an event processor. notifier may be NopNotifier.
func NewProcessor(store RecordStore, notifier TerminalNotifier, logger *observability.Logger, metrics *observability.Metrics) *Processor {
	return &Processor{
		store:    store,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		locks:    newKeyedMutex(),
	}
}

// Handle processes one event to completion. Events for different task
// references run fully in parallel; events for the same reference are
// serialized here, with the item's version guarding against writers in
// other processes.
//
// An unknown task reference is a hard error: the caller's delivery
// machinery owns redelivery and dead-lettering, not this method.
func (p *Processor) Handle(ctx context.Context, ev *TaskEvent) error {
	if ev == nil || ev.TaskID == "" {
		return &MalformedEventError{Reason: "missing task_id"}
	}

	start := time.Now()
	defer func() {
		p.metrics.FulfillmentEventDuration.Observe(time.Since(start).Seconds())
	}()

	unlock := p.locks.lock(ev.TaskID)
	defer unlock()

	item, err := p.store.GetOrderItemByTaskRef(ctx, ev.TaskID)
	if err != nil {
		if catalog.IsNotFound(err) {
			p.metrics.UnmatchedTaskRefsTotal.Inc()
			p.logger.WithField("task_ref", ev.TaskID).Error("Task event matched no order item")
		}
		return fmt.Errorf("resolving task %s: %w", ev.TaskID, err)
	}

	logger := p.logger.WithFields(map[string]any{
		"task_ref":      ev.TaskID,
		"order_item_id": item.ID,
		"status":        ev.Status,
		"state":         ev.State,
	})

	// Every event leaves an audit trace on the item, whatever else
	// happens to it.
	receipt := catalog.ProgressMessage{
		Level:   catalog.LevelInfo,
		Message: fmt.Sprintf("Task update received: status=%s state=%s", ev.Status, ev.State),
	}

	var (
		update     *catalog.OrderItemUpdate
		messages   = []catalog.ProgressMessage{receipt}
		transition = "noop"
		finished   bool
	)

	switch {
	case ev.Status == StatusOK && ev.State == TaskCompleted:
		if item.State.Terminal() {
			transition = "duplicate_terminal"
			logger.Info("Terminal item received duplicate completion event")
			break
		}
		update, messages = p.completeUpdate(item, ev, messages)
		transition = "completed"
		finished = true

	case ev.Status == StatusOK && ev.State == TaskRunning:
		if item.State.Terminal() {
			transition = "ignored_regression"
			logger.Warn("Dropping running update for terminal item")
			break
		}
		update, messages = p.runningUpdate(item, ev, messages)
		transition = "running"

	case ev.Status == StatusError:
		if item.State.Terminal() {
			transition = "duplicate_terminal"
			logger.Info("Terminal item received duplicate failure event")
			break
		}
		update, messages = p.failUpdate(item, ev, messages)
		transition = "failed"
		finished = true

	default:
		// Unrecognized statuses such as "warn" are acknowledged but
		// change nothing beyond the receipt message.
		logger.Info("Ignoring task event with unhandled status")
	}

	if err := p.store.TransitionOrderItem(ctx, item, update, messages); err != nil {
		return fmt.Errorf("applying task %s event: %w", ev.TaskID, err)
	}
	p.metrics.FulfillmentEventsTotal.WithLabelValues(transition).Inc()

	if finished {
		if _, err := p.store.RefreshOrderState(ctx, item.OrderID); err != nil {
			logger.WithError(err).Error("Failed to refresh order state")
		}
		p.notifier.OrderItemFinished(ctx, item)
	}
	return nil
}

func (p *Processor) completeUpdate(item *catalog.OrderItem, ev *TaskEvent, messages []catalog.ProgressMessage) (*catalog.OrderItemUpdate, []catalog.ProgressMessage) {
	state := catalog.StateCompleted
	now := time.Now().UTC()
	update := &catalog.OrderItemUpdate{
		State:       &state,
		Artifacts:   FilterArtifacts(ev.Output.Artifacts),
		CompletedAt: &now,
	}

	ref := p.resolveInstanceRef(item, ev)
	update.ServiceInstanceRef = &ref
	if ev.Output.URL != "" {
		update.ExternalURL = &ev.Output.URL
	}

	msg := "Provisioning completed"
	if ref != "" {
		msg = fmt.Sprintf("Provisioning completed, service instance %s", ref)
	}
	return update, append(messages, catalog.ProgressMessage{Level: catalog.LevelInfo, Message: msg})
}

func (p *Processor) runningUpdate(item *catalog.OrderItem, ev *TaskEvent, messages []catalog.ProgressMessage) (*catalog.OrderItemUpdate, []catalog.ProgressMessage) {
	state := catalog.StateRunning
	update := &catalog.OrderItemUpdate{State: &state}

	if si := ev.Context.ServiceInstance; si != nil {
		if si.URL != "" {
			update.ExternalURL = &si.URL
		}
		if si.ID != "" {
			update.ServiceInstanceRef = &si.ID
		}
	}

	return update, append(messages, catalog.ProgressMessage{
		Level:   catalog.LevelInfo,
		Message: "Provisioning in progress",
	})
}

func (p *Processor) failUpdate(item *catalog.OrderItem, ev *TaskEvent, messages []catalog.ProgressMessage) (*catalog.OrderItemUpdate, []catalog.ProgressMessage) {
	state := catalog.StateFailed
	now := time.Now().UTC()
	update := &catalog.OrderItemUpdate{State: &state, CompletedAt: &now}

	ref := p.resolveInstanceRef(item, ev)
	update.ServiceInstanceRef = &ref

	return update, append(messages, catalog.ProgressMessage{
		Level:   catalog.LevelError,
		Message: fmt.Sprintf("Provisioning failed: status=%s state=%s", ev.Status, ev.State),
	})
}

// resolveInstanceRef prefers the terminal event's output id, falling back
// to whatever an earlier running event already stored on the item. Some
// providers omit the id on the terminal event.
func (p *Processor) resolveInstanceRef(item *catalog.OrderItem, ev *TaskEvent) string {
	if ev.Output.ID != "" {
		return ev.Output.ID
	}
	return item.ServiceInstanceRef
}
