// Package dune executes parameterized Dune Analytics queries and ingests
// their results through the CSV ingestion sequence.
package dune

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gnosischain/click-runner/internal/logger"
)

// DefaultBaseURL is the Dune API v1 endpoint.
const DefaultBaseURL = "https://api.dune.com/api/v1"

// Client is a thin Dune API v1 client.
type Client struct {
	http *resty.Client
}

// NewClient creates a Dune client. baseURL is overridable for tests.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetHeader("X-Dune-Api-Key", apiKey).
		SetHeader("Accept", "application/json").
		SetTimeout(60 * time.Second)

	return &Client{http: http}
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
}

type statusResponse struct {
	State    string `json:"state"`
	Message  string `json:"message"`
	Progress any    `json:"progress"`
}

// Execute starts an execution of a saved query with the given parameters.
// Parameters:
//   - ctx: context for the request.
//   - queryID: Dune query ID.
//   - params: query parameters, sent as-is.
// Returns:
//   - string: execution ID.
//   - error: non-nil on HTTP failure or a malformed response.
func (c *Client) Execute(ctx context.Context, queryID string, params map[string]string) (string, error) {
	var out executeResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"query_parameters": params}).
		SetResult(&out).
		Post(fmt.Sprintf("/query/%s/execute", queryID))
	if err != nil {
		return "", fmt.Errorf("dune execute request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("dune execute returned %d: %s", resp.StatusCode(), resp.String())
	}
	if out.ExecutionID == "" {
		return "", fmt.Errorf("dune execute response missing execution_id: %s", resp.String())
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"query_id":     queryID,
		"execution_id": out.ExecutionID,
	}).Info("Dune execution started")

	return out.ExecutionID, nil
}

// Wait polls the execution status until it completes, fails, or the
// timeout elapses.
func (c *Client) Wait(ctx context.Context, execID string, timeout, poll time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		var st statusResponse

		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&st).
			Get(fmt.Sprintf("/execution/%s/status", execID))
		if err != nil {
			return fmt.Errorf("dune status request failed: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("dune status returned %d: %s", resp.StatusCode(), resp.String())
		}

		switch normalizeState(st.State) {
		case stateCompleted:
			logger.FromContext(ctx).WithField("execution_id", execID).Info("Dune execution completed")
			return nil
		case stateFailed:
			return fmt.Errorf("dune execution %s failed: %s", execID, st.Message)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}

	return fmt.Errorf("timed out after %s waiting for dune execution %s", timeout, execID)
}

// ResultCSVURL returns the CSV results endpoint for an execution.
func (c *Client) ResultCSVURL(execID string) string {
	return fmt.Sprintf("%s/execution/%s/results/csv", c.http.BaseURL, execID)
}

type executionState int

const (
	statePending executionState = iota
	stateCompleted
	stateFailed
)

// normalizeState maps the API's state strings onto the three outcomes the
// poller cares about. Dune has reported several spellings over time.
func normalizeState(raw string) executionState {
	switch strings.ToLower(raw) {
	case "query_state_completed", "completed", "success", "succeeded", "finished", "done":
		return stateCompleted
	case "query_state_failed", "query_state_cancelled", "failed", "error", "cancelled":
		return stateFailed
	default:
		return statePending
	}
}
