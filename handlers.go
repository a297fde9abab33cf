package luckyreel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/luckyreel/games"
	"github.com/eringen/luckyreel/views"
)

const healthTimeout = 2 * time.Second

func (a *App) handleHome(c echo.Context) error {
	now := a.now()
	sel := a.Games.Daily(a.Config.Games.DailyCount, now)
	winners, err := a.Winners.Active(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("home: active winners")
	}
	page := views.HomePage{
		SiteName: a.Config.Name,
		SiteURL:  BuildURL(a.Config.URL),
		Games:    sel.Games,
		Winners:  toWinnerRows(winners),
		Year:     now.UTC().Year(),
	}
	if id := games.DailyVideo(a.Config.Games.Videos, now); id != "" {
		page.VideoURL = games.EmbedURL(id)
	}
	return Render(c, views.Home(page))
}

func (a *App) handleGamesData(c echo.Context) error {
	return c.JSON(http.StatusOK, games.File{GamesPool: a.Games.Entries()})
}

func (a *App) handleGamesDaily(c echo.Context) error {
	return c.JSON(http.StatusOK, a.Games.Daily(a.Config.Games.DailyCount, a.now()))
}

func (a *App) gamesStatus() games.Status {
	return a.Games.Status(a.Config.Games.DailyCount, a.now())
}

func (a *App) handleGamesStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, a.gamesStatus())
}

// handleGamesRefresh re-reads the pool file now instead of waiting for the
// watcher. On failure the previous snapshot stays live.
func (a *App) handleGamesRefresh(c echo.Context) error {
	if err := a.Games.Reload(); err != nil {
		log.Error().Err(err).Str("path", a.Games.Path()).Msg("games refresh")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to refresh games")
	}
	a.thumbs.Purge()
	return c.JSON(http.StatusOK, a.gamesStatus())
}

func (a *App) handleRobots(c echo.Context) error {
	if path := filepath.Join(a.Config.StaticDir, "robots.txt"); fileExists(path) {
		return c.File(path)
	}
	body := fmt.Sprintf("User-agent: *\nDisallow: /admin/\nDisallow: /api/\n\nSitemap: %s\n",
		strings.TrimSuffix(BuildURL(a.Config.URL), "/")+"/sitemap.xml")
	return c.String(http.StatusOK, body)
}

type healthResponse struct {
	Status string `json:"status"`
	Games  int    `json:"games"`
	Error  string `json:"error,omitempty"`
}

func (a *App) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	err := errors.Join(a.Store.Ping(ctx), a.Metrics.Ping(ctx))
	if err != nil {
		log.Error().Err(err).Msg("health check")
		return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "degraded", Games: a.Games.Len(), Error: "database unavailable"})
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Games: a.Games.Len()})
}

func (a *App) metricsEndpoint() echo.HandlerFunc {
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: a.Registry})
}

// httpErrorHandler answers /api/ requests with {"error": "..."} and renders
// the templ error pages for everything else.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}
	if code >= 500 {
		log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("server error")
	}

	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		_ = c.JSON(code, apiError(he, code))
		return
	}
	switch {
	case code == http.StatusNotFound:
		_ = RenderStatus(c, code, views.NotFound())
	case code >= 500:
		_ = RenderStatus(c, code, views.ServerError())
	default:
		a.Echo.DefaultHTTPErrorHandler(err, c)
	}
}

// apiError builds the JSON body for an API error. Map messages are passed
// through so handlers can attach validation details.
func apiError(he *echo.HTTPError, code int) any {
	if he == nil || code >= 500 && he.Internal != nil {
		return map[string]string{"error": http.StatusText(code)}
	}
	switch msg := he.Message.(type) {
	case string:
		return map[string]string{"error": msg}
	case map[string]any:
		return msg
	default:
		return map[string]string{"error": http.StatusText(code)}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
