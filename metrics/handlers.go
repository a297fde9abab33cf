package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/luckyreel/ratelimit"
	"github.com/eringen/luckyreel/validate"
)

const (
	maxDays = 365

	warnDatabase = "Database unavailable"
	warnInvalid  = "Invalid request"
	warnLimited  = "Rate limited"
)

// HandlerConfig tunes the HTTP layer.
type HandlerConfig struct {
	QueryTimeout  time.Duration
	CacheTTL      time.Duration
	CacheSize     int
	CollectLimit  int
	CollectWindow time.Duration
}

func (c *HandlerConfig) setDefaults() {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 5 * time.Second
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 128
	}
	if c.CollectLimit <= 0 {
		c.CollectLimit = 120
	}
	if c.CollectWindow <= 0 {
		c.CollectWindow = time.Minute
	}
}

// Handler serves the tracking beacons and the dashboard queries.
type Handler struct {
	rec     *Recorder
	agg     *Aggregator
	limiter *ratelimit.Window
	cache   *expirable.LRU[string, any]
	timeout time.Duration
}

// NewHandler wires a Handler. Query caching is disabled when cfg.CacheTTL is 0.
func NewHandler(rec *Recorder, agg *Aggregator, cfg HandlerConfig) *Handler {
	cfg.setDefaults()
	h := &Handler{
		rec:     rec,
		agg:     agg,
		limiter: ratelimit.New(cfg.CollectLimit, cfg.CollectWindow),
		timeout: cfg.QueryTimeout,
	}
	if cfg.CacheTTL > 0 {
		h.cache = expirable.NewLRU[string, any](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return h
}

// Close stops the collect limiter.
func (h *Handler) Close() {
	h.limiter.Stop()
}

// PurgeCache drops all cached query results.
func (h *Handler) PurgeCache() {
	if h.cache != nil {
		h.cache.Purge()
	}
}

// RegisterRoutes mounts the metrics API on api. Query routes are wrapped in admin.
func (h *Handler) RegisterRoutes(api *echo.Group, admin echo.MiddlewareFunc) {
	g := api.Group("/metrics")
	g.POST("/track/view", h.TrackView)
	g.POST("/track/click", h.TrackClick)
	g.POST("/track/time", h.TrackTime)

	g.GET("/overview", h.Overview, admin)
	g.GET("/devices", h.Devices, admin)
	g.GET("/tips", h.Tips, admin)
	g.GET("/trend", h.Trend, admin)
	g.GET("/realtime", h.Realtime, admin)
	g.DELETE("/cleanup", h.Cleanup, admin)
}

// ViewResponse is the body returned to view beacons.
type ViewResponse struct {
	Success bool   `json:"success"`
	TipID   string `json:"tipId"`
	Warning string `json:"warning,omitempty"`
}

func requestMeta(c echo.Context) RequestMeta {
	r := c.Request()
	return RequestMeta{IP: c.RealIP(), UserAgent: r.UserAgent(), Referrer: r.Referer()}
}

// TrackView records a view. It always answers 200 so a tracking failure
// never blocks the page; problems are reported in the warning field.
func (h *Handler) TrackView(c echo.Context) error {
	now := time.Now()
	if !h.limiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusOK, ViewResponse{Success: true, TipID: GenerateTipID(now), Warning: warnLimited})
	}

	var in ViewInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusOK, ViewResponse{Success: true, TipID: GenerateTipID(now), Warning: warnInvalid})
	}
	if err := c.Validate(&in); err != nil {
		return c.JSON(http.StatusOK, ViewResponse{Success: true, TipID: GenerateTipID(now), Warning: warnInvalid})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	tipID, err := h.rec.RecordView(ctx, in, requestMeta(c))
	if err != nil {
		log.Error().Err(err).Str("tip_id", tipID).Msg("track view failed")
		return c.JSON(http.StatusOK, ViewResponse{Success: true, TipID: tipID, Warning: warnDatabase})
	}
	return c.JSON(http.StatusOK, ViewResponse{Success: true, TipID: tipID})
}

// TrackClick records a click.
func (h *Handler) TrackClick(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
	}
	var in ClickInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	if err := h.rec.RecordClick(ctx, in, requestMeta(c)); err != nil {
		log.Error().Err(err).Str("tip_id", in.TipID).Msg("track click failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to track click")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// TrackTime records time spent on the page.
func (h *Handler) TrackTime(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
	}
	var in TimeInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	if err := h.rec.RecordTimeSpent(ctx, in, requestMeta(c)); err != nil {
		if errors.Is(err, ErrTimeOutOfRange) {
			return echo.NewHTTPError(http.StatusBadRequest, "timeSpentMs out of range")
		}
		log.Error().Err(err).Str("tip_id", in.TipID).Msg("track time failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to track time")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// Overview serves GET /metrics/overview?days=N (default 1).
func (h *Handler) Overview(c echo.Context) error {
	days, err := parseDays(c, 1)
	if err != nil {
		return err
	}
	return h.serveQuery(c, "overview", days, func(ctx context.Context) (any, error) {
		return h.agg.Overview(ctx, days)
	})
}

// Devices serves GET /metrics/devices?days=N (default 1).
func (h *Handler) Devices(c echo.Context) error {
	days, err := parseDays(c, 1)
	if err != nil {
		return err
	}
	return h.serveQuery(c, "device distribution", days, func(ctx context.Context) (any, error) {
		return h.agg.DeviceDistribution(ctx, h.agg.Window(days))
	})
}

// Tips serves GET /metrics/tips?days=N (default 1).
func (h *Handler) Tips(c echo.Context) error {
	days, err := parseDays(c, 1)
	if err != nil {
		return err
	}
	return h.serveQuery(c, "tip performance", days, func(ctx context.Context) (any, error) {
		return h.agg.TipPerformance(ctx, h.agg.Window(days))
	})
}

// Trend serves GET /metrics/trend?days=N (default 7).
func (h *Handler) Trend(c echo.Context) error {
	days, err := parseDays(c, 7)
	if err != nil {
		return err
	}
	return h.serveQuery(c, "metrics trend", days, func(ctx context.Context) (any, error) {
		return h.agg.Trend(ctx, days)
	})
}

// Realtime serves GET /metrics/realtime. It is never cached.
func (h *Handler) Realtime(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	points, err := h.agg.Realtime(ctx)
	if err != nil {
		log.Error().Err(err).Msg("realtime metrics failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get realtime metrics")
	}
	return c.JSON(http.StatusOK, points)
}

// Cleanup serves DELETE /metrics/cleanup?days=N (default 30).
func (h *Handler) Cleanup(c echo.Context) error {
	days, err := parseDays(c, 30)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	n, err := h.agg.Cleanup(ctx, days)
	if err != nil {
		log.Error().Err(err).Int("days", days).Msg("metrics cleanup failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to cleanup old data")
	}
	h.PurgeCache()
	log.Info().Int64("deleted", n).Int("days", days).Msg("metrics cleanup")
	return c.JSON(http.StatusOK, map[string]any{"success": true, "deletedCount": n})
}

func (h *Handler) serveQuery(c echo.Context, what string, days int, fn func(context.Context) (any, error)) error {
	key := fmt.Sprintf("%s:%d", what, days)
	if h.cache != nil {
		if v, ok := h.cache.Get(key); ok {
			return c.JSON(http.StatusOK, v)
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	v, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Str("query", what).Int("days", days).Msg("metrics query failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get "+what)
	}
	if h.cache != nil {
		h.cache.Add(key, v)
	}
	return c.JSON(http.StatusOK, v)
}

// parseDays reads the days query parameter. A missing value yields def; a
// value outside 1..365 is a 400.
func parseDays(c echo.Context, def int) (int, error) {
	raw := c.QueryParam("days")
	if raw == "" {
		return def, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxDays {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("days must be an integer between 1 and %d", maxDays))
	}
	return days, nil
}
