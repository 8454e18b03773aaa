package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/catalogforge/catalog/pkg/observability"
)

// Sweeper flags dispatched order items that have gone quiet. An item stuck
// in pending or running past MaxAge gets an error progress message so the
// staleness is visible next to the rest of its history; the item itself is
// left alone since the external task may still finish.
type Sweeper struct {
	store  *Store
	maxAge time.Duration
	logger *observability.Logger
}

// NewSweeper creates a sweeper that flags items idle longer than maxAge.
func NewSweeper(store *Store, maxAge time.Duration, logger *observability.Logger) *Sweeper {
	return &Sweeper{store: store, maxAge: maxAge, logger: logger}
}

// Run performs one sweep and returns how many items were flagged.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.maxAge)
	items, err := s.store.ListStuckOrderItems(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, oi := range items {
		msg := ProgressMessage{
			Level:   LevelError,
			Message: fmt.Sprintf("No status update from task %s in %s", oi.ExternalTaskRef, s.maxAge),
		}
		// Writing the state back bumps updated_at so the next sweep
		// does not flag the same item again immediately.
		update := &OrderItemUpdate{State: &oi.State}
		if err := s.store.TransitionOrderItem(ctx, oi, update, []ProgressMessage{msg}); err != nil {
			s.logger.WithError(err).WithField("order_item_id", oi.ID).Error("Failed to flag stuck order item")
			continue
		}
		flagged++
	}

	if flagged > 0 {
		s.logger.WithField("count", flagged).Warn("Flagged stuck order items")
	}
	return flagged, nil
}
