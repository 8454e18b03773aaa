package notifications

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogforge/catalog/pkg/catalog"
	"github.com/catalogforge/catalog/pkg/observability"
)

func testNotifier(t *testing.T) *Notifier {
	t.Helper()
	retry := NewRetryPolicy(RetryConfig{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond})
	return NewNotifier(t.Context(), retry, observability.NewLogger(observability.ErrorLevel, nil))
}

func TestRegisterValidation(t *testing.T) {
	n := testNotifier(t)

	assert.Error(t, n.Register(&Webhook{Events: []EventType{EventOrderItemCompleted}}))
	assert.Error(t, n.Register(&Webhook{URL: "https://example.com/hook"}))

	w := &Webhook{URL: "https://example.com/hook", Events: []EventType{EventOrderItemCompleted}}
	require.NoError(t, n.Register(w))
	assert.NotEmpty(t, w.ID)
	assert.True(t, w.Active)
	assert.Len(t, n.List(), 1)

	require.NoError(t, n.Unregister(w.ID))
	assert.Empty(t, n.List())
	assert.Error(t, n.Unregister(w.ID))
}

func TestOrderItemFinishedDeliversSignedEvent(t *testing.T) {
	received := make(chan *http.Request, 1)
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		received <- r
	}))
	defer srv.Close()

	n := testNotifier(t)
	require.NoError(t, n.Register(&Webhook{
		URL:    srv.URL,
		Events: []EventType{EventOrderItemCompleted},
		Secret: "s3cret",
	}))

	n.OrderItemFinished(t.Context(), &catalog.OrderItem{
		ID:                 7,
		OrderID:            3,
		State:              catalog.StateCompleted,
		ServiceInstanceRef: "inst-1",
	})

	var req *http.Request
	select {
	case req = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never delivered")
	}

	assert.Equal(t, string(EventOrderItemCompleted), req.Header.Get("X-Catalog-Event"))
	assert.True(t, VerifySignature(body, req.Header.Get("X-Catalog-Signature"), "s3cret"))

	var ev Event
	require.NoError(t, json.Unmarshal(body, &ev))
	assert.Equal(t, EventOrderItemCompleted, ev.Type)
	assert.EqualValues(t, 7, ev.Data["order_item_id"])
	assert.Equal(t, "inst-1", ev.Data["service_instance_ref"])
}

func TestFailedItemMapsToFailureEvent(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("X-Catalog-Event")
	}))
	defer srv.Close()

	n := testNotifier(t)
	require.NoError(t, n.Register(&Webhook{URL: srv.URL, Events: []EventType{EventOrderItemFailed}}))

	n.OrderItemFinished(t.Context(), &catalog.OrderItem{ID: 7, State: catalog.StateFailed})

	select {
	case got := <-received:
		assert.Equal(t, string(EventOrderItemFailed), got)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never delivered")
	}
}

func TestDispatchSkipsUnsubscribedWebhooks(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	n := testNotifier(t)
	require.NoError(t, n.Register(&Webhook{URL: srv.URL, Events: []EventType{EventOrderItemFailed}}))

	n.OrderItemFinished(t.Context(), &catalog.OrderItem{ID: 7, State: catalog.StateCompleted})

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, hits.Load())
}

func TestDeliveryRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
	}))
	defer srv.Close()

	n := testNotifier(t)
	require.NoError(t, n.Register(&Webhook{URL: srv.URL, Events: []EventType{EventOrderItemCompleted}}))

	n.OrderItemFinished(t.Context(), &catalog.OrderItem{ID: 7, State: catalog.StateCompleted})

	require.Eventually(t, func() bool {
		return calls.Load() == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{
		MaxAttempts:       4,
		InitialDelay:      time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	})

	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4), "capped at max delay")

	assert.True(t, p.ShouldRetry(3, assert.AnError))
	assert.False(t, p.ShouldRetry(4, assert.AnError))
	assert.False(t, p.ShouldRetry(1, nil))
}
