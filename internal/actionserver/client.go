package actionserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dyluth/vigil/internal/validator"
)

// ErrUnreachable is returned when the bridge cannot be contacted.
var ErrUnreachable = errors.New("bridge unreachable")

// Client talks to a running action server. It maps HTTP outcomes back onto
// the validator's errors so callers can use errors.Is.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL (e.g. http://127.0.0.1:8089).
// No request timeout is set: Submit blocks until the operator answers.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// Submit posts goal and waits for the operator's decision.
func (c *Client) Submit(ctx context.Context, goal validator.Goal) (bool, error) {
	body, err := json.Marshal(goal)
	if err != nil {
		return false, fmt.Errorf("failed to marshal goal: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/goals", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, decodeError(resp)
	}

	var result GoalResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode goal result: %w", err)
	}
	return result.VictimValid, nil
}

// Preempt cancels the goal in flight.
func (c *Client) Preempt(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/goals/preempt", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return decodeError(resp)
	}
	return nil
}

// Current returns the goal in flight, or nil when idle.
func (c *Client) Current(ctx context.Context) (*validator.Snapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, "/goals/current", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		var snapshot validator.Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		return &snapshot, nil
	default:
		return nil, decodeError(resp)
	}
}

// Health returns the server's health report. A 503 is returned as a report,
// not an error.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &health, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrUnreachable, c.baseURL, err)
	}
	return resp, nil
}

// outcomeErrors maps ErrorResponse.Outcome back to the validator sentinel.
var outcomeErrors = map[string]error{
	"invalid":         validator.ErrInvalidGoal,
	"busy":            validator.ErrBusy,
	"preempted":       validator.ErrPreempted,
	"timed_out":       validator.ErrTimedOut,
	"publish_failure": validator.ErrPublishFailure,
	"idle":            validator.ErrNoActiveGoal,
	"stopped":         validator.ErrStopped,
}

func decodeError(resp *http.Response) error {
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("bridge returned %s", resp.Status)
	}

	sentinel, ok := outcomeErrors[body.Outcome]
	if !ok {
		return fmt.Errorf("bridge returned %s: %s", resp.Status, body.Error)
	}
	if body.Error == sentinel.Error() {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, strings.TrimPrefix(body.Error, sentinel.Error()+": "))
}

