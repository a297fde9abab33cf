package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/luckyreel/validate"
)

func newTestServer(t *testing.T, log EventLog, cfg HandlerConfig) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.Validator = validate.New()
	h := NewHandler(NewRecorder(log, nil), NewAggregator(log, nil), cfg)
	t.Cleanup(h.Close)
	allow := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	h.RegisterRoutes(e.Group("/api"), allow)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set("User-Agent", iphoneUA)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTrackViewStoresEvent(t *testing.T) {
	s := newTestStore(t)
	e := newTestServer(t, s, HandlerConfig{})

	rec := do(e, http.MethodPost, "/api/metrics/track/view", `{"sessionId":"s1","pageUrl":"/"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Regexp(t, `^tip_\d{8}_\d{3}$`, resp.TipID)
	assert.Empty(t, resp.Warning)

	n, err := s.CountType(context.Background(), LastDays(time.Now().Add(time.Minute), 1), View)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTrackViewKeepsSuppliedTipID(t *testing.T) {
	e := newTestServer(t, newTestStore(t), HandlerConfig{})

	rec := do(e, http.MethodPost, "/api/metrics/track/view", `{"tipId":"tip_20240301_042","sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tipId":"tip_20240301_042"`)
}

func TestTrackViewNeverFails(t *testing.T) {
	tests := []struct {
		name    string
		log     EventLog
		body    string
		warning string
	}{
		{"storage down", brokenLog{}, `{"sessionId":"s1"}`, warnDatabase},
		{"malformed body", brokenLog{}, `{"sessionId":`, warnInvalid},
		{"oversized field", brokenLog{}, `{"sessionId":"s1","tipId":"` + strings.Repeat("x", 65) + `"}`, warnInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(t, tt.log, HandlerConfig{})
			rec := do(e, http.MethodPost, "/api/metrics/track/view", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp ViewResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, resp.Success)
			assert.NotEmpty(t, resp.TipID)
			assert.Equal(t, tt.warning, resp.Warning)
		})
	}
}

func TestTrackClick(t *testing.T) {
	e := newTestServer(t, newTestStore(t), HandlerConfig{})

	rec := do(e, http.MethodPost, "/api/metrics/track/click", `{"tipId":"tip_a","sessionId":"s1","clickUrl":"https://example.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = do(e, http.MethodPost, "/api/metrics/track/click", `{"sessionId":"s1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "required", body.Details["tipId"])
}

func TestTrackClickStorageError(t *testing.T) {
	e := newTestServer(t, brokenLog{}, HandlerConfig{})
	rec := do(e, http.MethodPost, "/api/metrics/track/click", `{"tipId":"tip_a"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTrackTime(t *testing.T) {
	s := newTestStore(t)
	e := newTestServer(t, s, HandlerConfig{})

	rec := do(e, http.MethodPost, "/api/metrics/track/time", `{"tipId":"tip_a","timeSpentMs":4200}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// longer than a day and fractional values are stored, truncated to ms
	rec = do(e, http.MethodPost, "/api/metrics/track/time", `{"tipId":"tip_a","timeSpentMs":90000000}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(e, http.MethodPost, "/api/metrics/track/time", `{"tipId":"tip_a","timeSpentMs":4200.9}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	now := time.Now()
	avg, n, err := s.AvgTimeSpent(context.Background(), Range{Start: now.Add(-time.Hour), End: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, float64(4200+90000000+4200)/3, avg)

	rec = do(e, http.MethodPost, "/api/metrics/track/time", `{"tipId":"tip_a","timeSpentMs":1e19}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/metrics/track/time", `{"tipId":"tip_a","timeSpentMs":-5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/metrics/track/time", `{"tipId":"tip_a","timeSpentMs":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackRateLimited(t *testing.T) {
	e := newTestServer(t, newTestStore(t), HandlerConfig{CollectLimit: 1})

	rec := do(e, http.MethodPost, "/api/metrics/track/click", `{"tipId":"tip_a"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(e, http.MethodPost, "/api/metrics/track/click", `{"tipId":"tip_a"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(e, http.MethodPost, "/api/metrics/track/view", `{"sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), warnLimited)
}

func TestQueryEndpoints(t *testing.T) {
	e := newTestServer(t, newTestStore(t), HandlerConfig{})
	do(e, http.MethodPost, "/api/metrics/track/view", `{"tipId":"tip_a","sessionId":"s1"}`)
	do(e, http.MethodPost, "/api/metrics/track/click", `{"tipId":"tip_a","sessionId":"s1"}`)

	rec := do(e, http.MethodGet, "/api/metrics/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ov Overview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ov))
	assert.Equal(t, Metric{Value: 1, Change: 100}, ov.TotalViews)
	assert.Equal(t, Metric{Value: 100, Change: 100}, ov.ClickThroughRate)

	rec = do(e, http.MethodGet, "/api/metrics/devices?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mobile":{"count":1,"percentage":100}}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/api/metrics/tips", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"tipId":"tip_a","views":1,"clicks":1,"ctr":100,"avgTimeSeconds":0}]`, rec.Body.String())

	rec = do(e, http.MethodGet, "/api/metrics/trend", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var trend []TrendPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trend))
	require.Len(t, trend, 1)
	assert.Equal(t, 1, trend[0].Views)

	rec = do(e, http.MethodGet, "/api/metrics/realtime", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rt []MinutePoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rt))
	require.NotEmpty(t, rt)

	rec = do(e, http.MethodDelete, "/api/metrics/cleanup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"deletedCount":0}`, rec.Body.String())
}

func TestQueryDaysValidation(t *testing.T) {
	e := newTestServer(t, newTestStore(t), HandlerConfig{})
	for _, q := range []string{"0", "-1", "366", "abc", "1.5"} {
		rec := do(e, http.MethodGet, "/api/metrics/overview?days="+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "days=%s", q)
	}
	rec := do(e, http.MethodGet, "/api/metrics/tips?days=365", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQueryStorageError(t *testing.T) {
	e := newTestServer(t, brokenLog{}, HandlerConfig{})
	for _, path := range []string{"overview", "devices", "tips", "trend", "realtime"} {
		rec := do(e, http.MethodGet, "/api/metrics/"+path, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
	}
	rec := do(e, http.MethodDelete, "/api/metrics/cleanup?days=30", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestQueryCache(t *testing.T) {
	e := newTestServer(t, newTestStore(t), HandlerConfig{CacheTTL: time.Minute})

	first := do(e, http.MethodGet, "/api/metrics/tips", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `[]`, first.Body.String())

	do(e, http.MethodPost, "/api/metrics/track/view", `{"tipId":"tip_a","sessionId":"s1"}`)
	cached := do(e, http.MethodGet, "/api/metrics/tips", "")
	assert.JSONEq(t, `[]`, cached.Body.String())

	do(e, http.MethodDelete, "/api/metrics/cleanup", "")
	fresh := do(e, http.MethodGet, "/api/metrics/tips", "")
	assert.Contains(t, fresh.Body.String(), "tip_a")
}
