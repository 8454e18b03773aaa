package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogforge/catalog/pkg/observability"
)

func TestSweeperFlagsStuckItems(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := t.Context()

	p := seedPortfolio(t, store)
	pi := seedPortfolioItem(t, store, p.ID)
	o := &Order{Owner: "bob", Tenant: "acme"}
	require.NoError(t, store.CreateOrder(ctx, o))
	oi := seedOrderItem(t, store, o.ID, pi.ID)
	require.NoError(t, store.AssignTaskRef(ctx, oi.ID, "task-1"))

	// Backdate the item past the sweeper's horizon.
	_, err := db.ExecContext(ctx, `UPDATE order_items SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-2*time.Hour), oi.ID)
	require.NoError(t, err)

	sweeper := NewSweeper(store, time.Hour, observability.NewLogger(observability.ErrorLevel, nil))
	flagged, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)

	msgs, err := store.ListProgressMessages(ctx, oi.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, LevelError, msgs[0].Level)
	assert.Contains(t, msgs[0].Message, "task-1")

	// Flagging refreshed the item, so an immediate second sweep is a no-op.
	flagged, err = sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, flagged)
}

func TestSweeperIgnoresTerminalItems(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := t.Context()

	p := seedPortfolio(t, store)
	pi := seedPortfolioItem(t, store, p.ID)
	o := &Order{Owner: "bob", Tenant: "acme"}
	require.NoError(t, store.CreateOrder(ctx, o))
	oi := seedOrderItem(t, store, o.ID, pi.ID)
	require.NoError(t, store.AssignTaskRef(ctx, oi.ID, "task-1"))

	completed := StateCompleted
	item, err := store.GetOrderItem(ctx, oi.ID)
	require.NoError(t, err)
	require.NoError(t, store.TransitionOrderItem(ctx, item, &OrderItemUpdate{State: &completed}, nil))

	_, err = db.ExecContext(ctx, `UPDATE order_items SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-2*time.Hour), oi.ID)
	require.NoError(t, err)

	sweeper := NewSweeper(store, time.Hour, observability.NewLogger(observability.ErrorLevel, nil))
	flagged, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, flagged)
}
