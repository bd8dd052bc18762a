package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jericho/internal/config"
	"jericho/internal/db"
	"jericho/internal/engine"
	"jericho/internal/migrate"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))
	cfg := config.Default()
	cfg.Planner.TimeZone = "UTC"
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC) }
	_, err = e.SetGoal(context.Background(), engine.GoalOptions{ID: "g1", Text: "Ship the album"})
	require.NoError(t, err)

	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		conn.Close()
	})
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env.Error.Code
}

func TestHealthAndOpenAPI(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, srv, http.MethodGet, "/v0/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = doJSON(t, srv, http.MethodGet, "/v0/openapi.json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var oas map[string]any
	require.NoError(t, json.Unmarshal(body, &oas))
	assert.Contains(t, oas["paths"], "/v0/suggestions/{id}/accept")
}

func TestSuggestionEndpoints(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, srv, http.MethodPost, "/v0/goals/g1/suggestions/plan", map[string]any{"days_per_week": 3, "start_day": "2026-01-05"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var plan engine.SuggestionPlan
	require.NoError(t, json.Unmarshal(body, &plan))
	require.Len(t, plan.Suggestions, 6)

	resp, body = doJSON(t, srv, http.MethodPost, "/v0/goals/g1/suggestions/plan", map[string]any{"days_per_week": 3})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_planned", errorCode(t, body))

	resp, body = doJSON(t, srv, http.MethodPost, "/v0/suggestions/sugg-g1-1/accept", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out SuggestionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Applied)
	assert.Equal(t, "accepted", string(out.Suggestion.Status))

	resp, body = doJSON(t, srv, http.MethodPost, "/v0/suggestions/sugg-g1-1/reject", map[string]any{"reason": "TOO_LONG"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", errorCode(t, body))

	resp, _ = doJSON(t, srv, http.MethodPost, "/v0/suggestions/sugg-g1-2/reject", map[string]any{"reason": "BORED"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, srv, http.MethodPost, "/v0/suggestions/nope/dismiss", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, body))

	resp, body = doJSON(t, srv, http.MethodPost, "/v0/goals/g1/suggestions/recalibrate", map[string]any{"days_per_week": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var recal RecalibrateResponse
	require.NoError(t, json.Unmarshal(body, &recal))
	assert.True(t, recal.Applied)
	assert.Len(t, recal.Suggestions, 10)

	resp, body = doJSON(t, srv, http.MethodGet, "/v0/suggestions/history?type=accepted", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var hist HistoryResponse
	require.NoError(t, json.Unmarshal(body, &hist))
	require.Len(t, hist.Items, 1)
	assert.Equal(t, "sugg-g1-1", hist.Items[0].SuggestionID)
}

func TestGuidanceEndpoints(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, srv, http.MethodGet, "/v0/goals/missing/next-move", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, body))

	resp, body = doJSON(t, srv, http.MethodGet, "/v0/goals/g1/next-move?day=2026-01-05", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var next engine.NextMoveResult
	require.NoError(t, json.Unmarshal(body, &next))
	assert.Equal(t, "2026-01-05", next.Directive.DayKey)

	resp, body = doJSON(t, srv, http.MethodGet, "/v0/truth-panel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var panel struct {
		GoalID string `json:"goal_id"`
		Errors []struct {
			Code   string   `json:"code"`
			Fields []string `json:"fields"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(body, &panel))
	assert.Equal(t, "g1", panel.GoalID)
	require.Len(t, panel.Errors, 1)
	assert.Equal(t, "MISSING_ENGINE_ARTIFACT", panel.Errors[0].Code)

	resp, _ = doJSON(t, srv, http.MethodGet, "/v0/metrics/window?mode=day&anchor=not-a-day", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = doJSON(t, srv, http.MethodGet, "/v0/metrics/today?day=2026-01-05", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
