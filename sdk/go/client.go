package jerichosdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Jericho HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Directive is the day's recommended next action (partial).
type Directive struct {
	Kind            string   `json:"kind"`
	Type            string   `json:"type"`
	DayKey          string   `json:"day_key"`
	Domain          string   `json:"domain"`
	Title           string   `json:"title"`
	DurationMinutes int      `json:"duration_minutes"`
	BlockID         string   `json:"block_id"`
	Score           int      `json:"score"`
	Rationale       []string `json:"rationale"`
	DoneWhen        string   `json:"done_when"`
}

type NextMove struct {
	GoalID    string    `json:"goal_id"`
	Directive Directive `json:"directive"`
}

// Suggestion is a suggested block with its replayed status.
type Suggestion struct {
	ID              string `json:"id"`
	GoalID          string `json:"goal_id"`
	Status          string `json:"status"`
	Domain          string `json:"domain"`
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
	DayKey          string `json:"day_key"`
	Start           string `json:"start"`
	End             string `json:"end"`
}

type Preview struct {
	TotalBlocks  int `json:"total_blocks"`
	TotalMinutes int `json:"total_minutes"`
}

type SuggestionPlan struct {
	GoalID      string       `json:"goal_id"`
	DaysPerWeek int          `json:"days_per_week"`
	Suggestions []Suggestion `json:"suggestions"`
	Preview     Preview      `json:"preview"`
	Applied     bool         `json:"applied"`
}

// Transition is the result of accept, reject, ignore or dismiss.
type Transition struct {
	Suggestion Suggestion `json:"suggestion"`
	Applied    bool       `json:"applied"`
}

type HistoryItem struct {
	ID           string `json:"id"`
	DayKey       string `json:"day_key"`
	Type         string `json:"type"`
	SuggestionID string `json:"suggestion_id"`
	Reason       string `json:"reason"`
	Domain       string `json:"domain"`
	Title        string `json:"title"`
	Archived     bool   `json:"archived"`
}

// HistoryQuery narrows SuggestionHistory. Empty fields are omitted.
type HistoryQuery struct {
	Days    int
	Types   []string
	Domains []string
	Reasons []string
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s body=%s", e.StatusCode, e.Code, e.Body)
}

// NextMove computes the directive for a goal on a day ("" for today).
func (c *Client) NextMove(ctx context.Context, goalID, day string) (NextMove, error) {
	endpoint := fmt.Sprintf("v0/goals/%s/next-move", url.PathEscape(goalID))
	if day != "" {
		endpoint += "?day=" + url.QueryEscape(day)
	}
	var resp NextMove
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Suggestions lists a goal's suggestions; goalID "" means the active goal.
func (c *Client) Suggestions(ctx context.Context, goalID string) (SuggestionPlan, error) {
	endpoint := "v0/suggestions"
	if goalID != "" {
		endpoint += "?goal_id=" + url.QueryEscape(goalID)
	}
	var resp SuggestionPlan
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) PlanSuggestions(ctx context.Context, goalID string, daysPerWeek int, startDay string) (SuggestionPlan, error) {
	body := map[string]any{"days_per_week": daysPerWeek}
	if startDay != "" {
		body["start_day"] = startDay
	}
	var resp SuggestionPlan
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/goals/%s/suggestions/plan", url.PathEscape(goalID)), body, &resp)
	return resp, err
}

func (c *Client) Recalibrate(ctx context.Context, goalID string, daysPerWeek int) (SuggestionPlan, error) {
	var resp SuggestionPlan
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/goals/%s/suggestions/recalibrate", url.PathEscape(goalID)),
		map[string]any{"days_per_week": daysPerWeek}, &resp)
	return resp, err
}

func (c *Client) Accept(ctx context.Context, id string) (Transition, error) {
	return c.transition(ctx, id, "accept", nil)
}

func (c *Client) Reject(ctx context.Context, id, reason string) (Transition, error) {
	return c.transition(ctx, id, "reject", map[string]any{"reason": reason})
}

func (c *Client) Ignore(ctx context.Context, id string) (Transition, error) {
	return c.transition(ctx, id, "ignore", nil)
}

func (c *Client) Dismiss(ctx context.Context, id string) (Transition, error) {
	return c.transition(ctx, id, "dismiss", nil)
}

func (c *Client) transition(ctx context.Context, id, op string, body any) (Transition, error) {
	var resp Transition
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/suggestions/%s/%s", url.PathEscape(id), op), body, &resp)
	return resp, err
}

// SuggestionHistory returns history rows for the trailing window.
func (c *Client) SuggestionHistory(ctx context.Context, q HistoryQuery) ([]HistoryItem, error) {
	v := url.Values{}
	if q.Days > 0 {
		v.Set("days", fmt.Sprint(q.Days))
	}
	for _, t := range q.Types {
		v.Add("type", t)
	}
	for _, d := range q.Domains {
		v.Add("domain", d)
	}
	for _, r := range q.Reasons {
		v.Add("reason", r)
	}
	endpoint := "v0/suggestions/history"
	if enc := v.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp struct {
		Items []HistoryItem `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// TruthPanel returns the raw truth panel document.
func (c *Client) TruthPanel(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodGet, "v0/truth-panel", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
