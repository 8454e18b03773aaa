package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/catalogforge/catalog/pkg/observability"
)

// ApprovalClient answers questions about approval workflows. The workflows
// themselves live in a separate service; this module only needs to know
// whether a given workflow reference exists.
type ApprovalClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *observability.Logger
}

// NewApprovalClient creates an approval service client rooted at baseURL.
// An empty baseURL disables approval checks: WorkflowExists then reports
// false for every reference.
func NewApprovalClient(baseURL string, timeout time.Duration, logger *observability.Logger) *ApprovalClient {
	return &ApprovalClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WorkflowExists reports whether ref names a known approval workflow.
func (c *ApprovalClient) WorkflowExists(ctx context.Context, ref string) (bool, error) {
	if c.baseURL == "" || ref == "" {
		return false, nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/workflows/%s", c.baseURL, url.PathEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build workflow request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &UnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return false, fmt.Errorf("failed to decode workflow response: %w", err)
		}
		return out.ID != "", nil
	case http.StatusNotFound:
		return false, nil
	default:
		if resp.StatusCode >= http.StatusInternalServerError {
			return false, &UnavailableError{Cause: fmt.Errorf("approval service answered %d", resp.StatusCode)}
		}
		return false, fmt.Errorf("approval service answered %d", resp.StatusCode)
	}
}

// ApprovalWorkflowConfigured reports whether the approval service is wired
// up at all. Assigning approval workflows only makes sense when it is.
func (c *ApprovalClient) ApprovalWorkflowConfigured(ctx context.Context) (bool, error) {
	if c.baseURL == "" {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/workflows", nil)
	if err != nil {
		return false, fmt.Errorf("failed to build workflow request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &UnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return false, &UnavailableError{Cause: fmt.Errorf("approval service answered %d", resp.StatusCode)}
	}
	return resp.StatusCode == http.StatusOK, nil
}
