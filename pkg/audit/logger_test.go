package audit

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogforge/catalog/pkg/observability"
)

func setupAuditDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		status TEXT NOT NULL,
		username TEXT NOT NULL,
		tenant TEXT NOT NULL,
		resource_type TEXT,
		resource_id TEXT,
		detail TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	)`)
	require.NoError(t, err)
	return db
}

func TestDBLoggerRecordAndList(t *testing.T) {
	logger := NewDBLogger(setupAuditDB(t), observability.NewLogger(observability.ErrorLevel, nil))
	ctx := t.Context()

	logger.Record(ctx, &Event{
		EventType:    EventTypeAccessDenied,
		Status:       EventStatusDenied,
		Username:     "bob",
		Tenant:       "acme",
		ResourceType: "portfolio",
		ResourceID:   "12",
		Detail:       map[string]any{"action": "destroy"},
	})
	logger.Record(ctx, &Event{
		EventType: EventTypeOrderSubmitted,
		Status:    EventStatusSuccess,
		Username:  "bob",
		Tenant:    "acme",
	})
	logger.Record(ctx, &Event{
		EventType: EventTypeOrderSubmitted,
		Status:    EventStatusSuccess,
		Username:  "eve",
		Tenant:    "other",
	})

	events, err := logger.List(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, EventTypeOrderSubmitted, events[0].EventType)
	assert.Equal(t, EventTypeAccessDenied, events[1].EventType)
	assert.Equal(t, "destroy", events[1].Detail["action"])
	assert.False(t, events[1].Timestamp.IsZero())
}

func TestDBLoggerRecordSurvivesFailure(t *testing.T) {
	db := setupAuditDB(t)
	logger := NewDBLogger(db, observability.NewLogger(observability.ErrorLevel, nil))
	require.NoError(t, db.Close())

	// Must not panic or propagate the error.
	logger.Record(t.Context(), &Event{EventType: EventTypeAccessDenied, Status: EventStatusDenied})
}
