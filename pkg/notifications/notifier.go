package notifications

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/catalogforge/catalog/pkg/async"
	"github.com/catalogforge/catalog/pkg/catalog"
	"github.com/catalogforge/catalog/pkg/observability"
)

// EventType classifies a notification event
type EventType string

const (
	EventOrderItemCompleted EventType = "order_item.completed"
	EventOrderItemFailed    EventType = "order_item.failed"
)

// Event is the payload delivered to webhooks
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Webhook is one registered delivery target
type Webhook struct {
	ID        string      `json:"id"`
	URL       string      `json:"url"`
	Events    []EventType `json:"events"`
	Secret    string      `json:"secret,omitempty"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

// Notifier fans events out to registered webhooks. It implements
// fulfillment.TerminalNotifier.
type Notifier struct {
	mu       sync.RWMutex
	webhooks map[string]*Webhook

	client  *http.Client
	retry   *RetryPolicy
	logger  *observability.Logger
	baseCtx context.Context
}

// NewNotifier creates a notifier. baseCtx bounds the lifetime of all
// background deliveries.
func NewNotifier(baseCtx context.Context, retry *RetryPolicy, logger *observability.Logger) *Notifier {
	return &Notifier{
		webhooks: make(map[string]*Webhook),
		client:   &http.Client{Timeout: 10 * time.Second},
		retry:    retry,
		logger:   logger,
		baseCtx:  baseCtx,
	}
}

// Register adds a webhook and assigns its ID.
func (n *Notifier) Register(w *Webhook) error {
	if w.URL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if len(w.Events) == 0 {
		return fmt.Errorf("at least one event type is required")
	}

	w.ID = uuid.NewString()
	w.Active = true
	w.CreatedAt = time.Now().UTC()

	n.mu.Lock()
	n.webhooks[w.ID] = w
	n.mu.Unlock()
	return nil
}

// Unregister removes a webhook.
func (n *Notifier) Unregister(id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.webhooks[id]; !ok {
		return fmt.Errorf("webhook %s not found", id)
	}
	delete(n.webhooks, id)
	return nil
}

// List returns all registered webhooks.
func (n *Notifier) List() []*Webhook {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Webhook, 0, len(n.webhooks))
	for _, w := range n.webhooks {
		out = append(out, w)
	}
	return out
}

// OrderItemFinished publishes the terminal event for an order item.
func (n *Notifier) OrderItemFinished(_ context.Context, item *catalog.OrderItem) {
	eventType := EventOrderItemCompleted
	if item.State == catalog.StateFailed {
		eventType = EventOrderItemFailed
	}

	n.Dispatch(&Event{
		Type: eventType,
		Data: map[string]any{
			"order_id":             item.OrderID,
			"order_item_id":        item.ID,
			"state":                item.State,
			"service_instance_ref": item.ServiceInstanceRef,
			"external_url":         item.ExternalURL,
			"artifacts":            item.Artifacts,
		},
	})
}

// Dispatch sends event to every active webhook subscribed to its type.
// Delivery happens on background goroutines bounded by the notifier's
// base context, not the caller's request context.
func (n *Notifier) Dispatch(event *Event) {
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()

	n.mu.RLock()
	targets := make([]*Webhook, 0, len(n.webhooks))
	for _, w := range n.webhooks {
		if w.Active && w.subscribed(event.Type) {
			targets = append(targets, w)
		}
	}
	n.mu.RUnlock()

	for _, w := range targets {
		webhook := w
		async.SafeGo(n.baseCtx, n.logger, 30*time.Minute, "webhook delivery", func(ctx context.Context) error {
			return n.deliver(ctx, webhook, event)
		})
	}
}

func (w *Webhook) subscribed(t EventType) bool {
	for _, e := range w.Events {
		if e == t {
			return true
		}
	}
	return false
}

// deliver attempts the delivery with backoff until it succeeds or the
// retry policy gives up.
func (n *Notifier) deliver(ctx context.Context, webhook *Webhook, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	attempts := 0
	for {
		attempts++
		err := n.send(ctx, webhook, event, payload)
		if err == nil {
			n.logger.WithFields(map[string]any{
				"webhook_id": webhook.ID,
				"event_type": event.Type,
				"attempts":   attempts,
			}).Debug("Delivered webhook event")
			return nil
		}

		if !n.retry.ShouldRetry(attempts, err) {
			return fmt.Errorf("giving up on webhook %s after %d attempts: %w", webhook.ID, attempts, err)
		}

		select {
		case <-time.After(n.retry.NextDelay(attempts)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (n *Notifier) send(ctx context.Context, webhook *Webhook, event *Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Catalog-Event", string(event.Type))
	req.Header.Set("X-Catalog-Event-ID", event.ID)
	req.Header.Set("X-Catalog-Delivery", time.Now().UTC().Format(time.RFC3339))
	if webhook.Secret != "" {
		req.Header.Set("X-Catalog-Signature", Sign(payload, webhook.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}

// Sign produces the HMAC-SHA256 signature header value for a payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature against the payload.
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
