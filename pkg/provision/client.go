package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/catalogforge/catalog/pkg/catalog"
	"github.com/catalogforge/catalog/pkg/contextkeys"
	"github.com/catalogforge/catalog/pkg/observability"
)

// UnavailableError reports that the inventory engine could not be reached
// or answered with a server error. The API layer maps it to 503.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provisioning engine unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// Client talks to the external inventory engine. It implements
// catalog.Provisioner.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *observability.Logger
}

// NewClient creates an engine client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *observability.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// OAuthConfig carries client-credentials settings for engines that require
// service-to-service tokens.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// NewOAuthClient creates an engine client that authenticates with OAuth2
// client credentials. Tokens are fetched and refreshed automatically.
func NewOAuthClient(ctx context.Context, baseURL string, timeout time.Duration, oauth OAuthConfig, logger *observability.Logger) *Client {
	cc := clientcredentials.Config{
		TokenURL:     oauth.TokenURL,
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
	}
	httpClient := cc.Client(ctx)
	httpClient.Timeout = timeout
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

type startTaskRequest struct {
	ServiceOfferingRef string            `json:"service_offering_ref"`
	ServicePlanRef     string            `json:"service_plan_ref"`
	Count              int               `json:"count"`
	Parameters         map[string]any    `json:"parameters,omitempty"`
	Context            map[string]string `json:"context,omitempty"`
}

type startTaskResponse struct {
	TaskID string `json:"task_id"`
}

// StartTask asks the engine to provision one order item and returns the
// task reference tracking the work. Headers captured at order time are
// forwarded so the engine sees the original caller's identity.
func (c *Client) StartTask(ctx context.Context, req catalog.ProvisionRequest) (string, error) {
	body, err := json.Marshal(startTaskRequest{
		ServiceOfferingRef: req.ServiceOfferingRef,
		ServicePlanRef:     req.ServicePlanRef,
		Count:              req.Count,
		Parameters:         req.Parameters,
		Context:            req.Context,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode task request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build task request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Context {
		httpReq.Header.Set(k, v)
	}
	for k, v := range contextkeys.ForwardableHeaders(ctx) {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &UnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", &UnavailableError{Cause: fmt.Errorf("engine answered %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("engine rejected task: %d %s", resp.StatusCode, payload)
	}

	var out startTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode task response: %w", err)
	}
	if out.TaskID == "" {
		return "", fmt.Errorf("engine returned no task id")
	}

	c.logger.WithField("task_ref", out.TaskID).Debug("Dispatched provisioning task")
	return out.TaskID, nil
}
