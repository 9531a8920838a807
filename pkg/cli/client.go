package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/platinummonkey/subledger/pkg/api"
	"github.com/platinummonkey/subledger/pkg/billing"
	"github.com/platinummonkey/subledger/pkg/plans"
	"github.com/platinummonkey/subledger/pkg/subscriptions"
)

// APIError is a non-2xx response from the server
type APIError struct {
	Status  int
	Message string
	Details map[string]string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
	if len(e.Details) == 0 {
		return msg
	}
	fields := make([]string, 0, len(e.Details))
	for field, problem := range e.Details {
		fields = append(fields, field+" "+problem)
	}
	sort.Strings(fields)
	return msg + " (" + strings.Join(fields, "; ") + ")"
}

// Client talks to the subledger HTTP API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Simulate runs a billing simulation
func (c *Client) Simulate(ctx context.Context, req *api.SimulateBillingRequest) (*billing.SimulateResponse, error) {
	var resp billing.SimulateResponse
	if err := c.do(ctx, http.MethodPost, "/billing/simulate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSubscription fetches one subscription
func (c *Client) GetSubscription(ctx context.Context, id string) (*subscriptions.View, error) {
	return c.subscription(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(id))
}

// CancelSubscription cancels a subscription
func (c *Client) CancelSubscription(ctx context.Context, id string) (*subscriptions.View, error) {
	return c.subscription(ctx, http.MethodPost, "/subscriptions/"+url.PathEscape(id)+"/cancel")
}

// ReactivateSubscription reactivates a canceled subscription
func (c *Client) ReactivateSubscription(ctx context.Context, id string) (*subscriptions.View, error) {
	return c.subscription(ctx, http.MethodPost, "/subscriptions/"+url.PathEscape(id)+"/reactivate")
}

func (c *Client) subscription(ctx context.Context, method, path string) (*subscriptions.View, error) {
	var view subscriptions.View
	if err := c.do(ctx, method, path, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// GetPlan fetches one plan, converted into currency when set
func (c *Client) GetPlan(ctx context.Context, id, currency string) (*plans.View, error) {
	path := "/plans/" + url.PathEscape(id)
	if currency != "" {
		path += "?" + url.Values{"currency": {currency}}.Encode()
	}
	var view plans.View
	if err := c.do(ctx, http.MethodGet, path, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &payload)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to reach %s", c.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody struct {
			Error   string            `json:"error"`
			Details map[string]string `json:"details"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil {
			apiErr.Message = errBody.Error
			apiErr.Details = errBody.Details
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
