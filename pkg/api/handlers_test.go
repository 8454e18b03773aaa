package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/catalogforge/catalog/pkg/audit"
	"github.com/catalogforge/catalog/pkg/auth"
	"github.com/catalogforge/catalog/pkg/catalog"
	"github.com/catalogforge/catalog/pkg/fulfillment"
	"github.com/catalogforge/catalog/pkg/middleware"
	"github.com/catalogforge/catalog/pkg/notifications"
	"github.com/catalogforge/catalog/pkg/observability"
	"github.com/catalogforge/catalog/pkg/rbac"
	"github.com/catalogforge/catalog/pkg/storage"
)

var testSchema = []string{
	`CREATE TABLE portfolios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL,
		tenant TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		workflow_ref TEXT NOT NULL DEFAULT '',
		icon_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE portfolio_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL,
		tenant TEXT NOT NULL,
		service_offering_ref TEXT NOT NULL,
		workflow_ref TEXT NOT NULL DEFAULT '',
		orderable BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		state TEXT NOT NULL DEFAULT 'created',
		owner TEXT NOT NULL,
		tenant TEXT NOT NULL,
		submitted_at TIMESTAMP,
		completed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL,
		portfolio_item_id INTEGER NOT NULL,
		state TEXT NOT NULL DEFAULT 'created',
		owner TEXT NOT NULL,
		tenant TEXT NOT NULL,
		item_count INTEGER NOT NULL DEFAULT 1,
		service_plan_ref TEXT NOT NULL,
		service_parameters TEXT NOT NULL DEFAULT '{}',
		item_context TEXT NOT NULL DEFAULT '{}',
		external_task_ref TEXT,
		service_instance_ref TEXT NOT NULL DEFAULT '',
		external_url TEXT NOT NULL DEFAULT '',
		artifacts TEXT NOT NULL DEFAULT '{}',
		version INTEGER NOT NULL DEFAULT 0,
		completed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(external_task_ref)
	)`,
	`CREATE TABLE progress_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_item_id INTEGER NOT NULL,
		level TEXT NOT NULL DEFAULT 'info',
		message TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE entitlements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id TEXT NOT NULL,
		permission TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
}

const testAdminRole = "catalog-admin"

type fakeProvisioner struct {
	mu      sync.Mutex
	nextRef int
	refs    []string
}

func (f *fakeProvisioner) StartTask(_ context.Context, _ catalog.ProvisionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRef++
	ref := fmt.Sprintf("task-%d", f.nextRef)
	f.refs = append(f.refs, ref)
	return ref, nil
}

type fakeWorkflowChecker struct {
	configured bool
}

func (f *fakeWorkflowChecker) ApprovalWorkflowConfigured(context.Context) (bool, error) {
	return f.configured, nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (a *recordingAudit) Record(_ context.Context, e *audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAudit) byType(t audit.EventType) []*audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*audit.Event
	for _, e := range a.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	server      *Server
	db          *sql.DB
	store       *catalog.Store
	entStore    *rbac.Store
	provisioner *fakeProvisioner
	consumer    *fulfillment.Consumer
	audit       *recordingAudit
	workflow    *fakeWorkflowChecker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range testSchema {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	store := catalog.NewStore(db)
	entStore := rbac.NewStore(db)
	resolver := rbac.NewScopeResolver(entStore, logger)
	workflow := &fakeWorkflowChecker{}
	gate := rbac.NewGate(resolver, entStore, store, workflow, logger)

	provisioner := &fakeProvisioner{}
	service := catalog.NewService(store, provisioner, logger, metrics)

	icons, err := storage.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	notifier := notifications.NewNotifier(t.Context(), notifications.NewRetryPolicy(notifications.DefaultRetryConfig()), logger)
	processor := fulfillment.NewProcessor(store, notifier, logger, metrics)
	consumer := fulfillment.NewConsumer(t.Context(), processor, 1, 5*time.Second, logger)
	t.Cleanup(func() { consumer.Shutdown(2 * time.Second) })

	auditLog := &recordingAudit{}

	server := NewServer(Deps{
		Store:        store,
		Service:      service,
		Gate:         gate,
		Resolver:     resolver,
		Entitlements: entStore,
		Audit:        auditLog,
		Icons:        icons,
		Consumer:     consumer,
		Notifier:     notifier,
		AdminRole:    testAdminRole,
		Identity:     middleware.NewIdentity(nil, logger).Handler,
		Logger:       logger,
	})

	return &testEnv{
		server:      server,
		db:          db,
		store:       store,
		entStore:    entStore,
		provisioner: provisioner,
		consumer:    consumer,
		audit:       auditLog,
		workflow:    workflow,
	}
}

func adminPrincipal() *auth.Principal {
	return &auth.Principal{Username: "root", Tenant: "acme", Roles: []string{testAdminRole}}
}

func userPrincipal(name string) *auth.Principal {
	return &auth.Principal{Username: name, Tenant: "acme"}
}

func groupPrincipal(name string, groups ...string) *auth.Principal {
	return &auth.Principal{Username: name, Tenant: "acme", GroupIDs: groups}
}

// request performs an API call as the given principal and returns the
// recorded response.
func (env *testEnv) request(t *testing.T, principal *auth.Principal, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if principal != nil {
		encoded, err := auth.EncodeIdentity(principal)
		require.NoError(t, err)
		req.Header.Set(middleware.IdentityHeader, encoded)
	}

	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, nil, http.MethodGet, "/api/v1/portfolios", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
