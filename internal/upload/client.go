package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/liftsync/internal/models"
)

var (
	// ErrUnreachable wraps transport failures: the request never got a response.
	ErrUnreachable = errors.New("server unreachable")
	// ErrRejected wraps 4xx responses. Retrying the same payload will not help.
	ErrRejected = errors.New("request rejected")
)

// SaveResult is the server's answer to a save call.
type SaveResult struct {
	WorkoutID string `json:"workout_id"`
	Created   bool   `json:"created"`
}

// Client talks to the liftsync server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new HTTP client for the liftsync server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SaveWorkout calls the atomic save RPC. It makes exactly one attempt;
// retrying is the flusher's job.
func (c *Client) SaveWorkout(ctx context.Context, payload models.WorkoutPayload) (SaveResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return SaveResult{}, fmt.Errorf("marshaling payload: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v1/rpc/save_workout", nil, bytes.NewReader(data))
	if err != nil {
		return SaveResult{}, err
	}

	var res SaveResult
	if err := json.Unmarshal(body, &res); err != nil {
		return SaveResult{}, fmt.Errorf("decoding save result: %w", err)
	}
	if res.WorkoutID == "" {
		return SaveResult{}, fmt.Errorf("save result has no workout_id")
	}
	return res, nil
}

// Ping checks the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
	return err
}

// ListWorkouts fetches saved workouts in [start, end).
func (c *Client) ListWorkouts(ctx context.Context, start, end time.Time) ([]models.WorkoutRow, error) {
	params := url.Values{}
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))

	body, err := c.do(ctx, http.MethodGet, "/api/v1/workouts", params, nil)
	if err != nil {
		return nil, err
	}

	var rows []models.WorkoutRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decoding workouts: %w", err)
	}
	return rows, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader) ([]byte, error) {
	u := c.serverURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w: %w", path, ErrUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%s %s (status %d): %w: %s", method, path, resp.StatusCode, ErrRejected, respBody)
	default:
		// 5xx: the server answered, so neither sentinel applies. The flusher
		// records it and moves on to the next entry.
		return nil, fmt.Errorf("%s %s failed (status %d): %s", method, path, resp.StatusCode, respBody)
	}
}
