// Package luckyreel serves a landing page whose game reels rotate once a day,
// records how visitors interact with it, and gives an admin a dashboard over
// those interactions plus a managed list of recent winners.
//
// The App wires the stores, caches, handlers and middleware together; the
// cmd/luckyreel binary only loads configuration and calls Start.
package luckyreel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/luckyreel/games"
	"github.com/eringen/luckyreel/metrics"
	"github.com/eringen/luckyreel/ratelimit"
	"github.com/eringen/luckyreel/validate"
)

const shutdownTimeout = 10 * time.Second

// App is the central luckyreel application.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Store    *Store
	Winners  *WinnerCache
	Games    *games.Pool
	Metrics  *metrics.Store
	Registry *prometheus.Registry

	aggregator     *metrics.Aggregator
	metricsHandler *metrics.Handler
	retention      *metrics.Retention
	loginLimiter   *ratelimit.Window
	tokens         *tokenSigner
	thumbs         *expirable.LRU[string, []byte]
	customRoutes   []func(*App)
	now            func() time.Time
	initialized    bool
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config:   cfg,
		Echo:     e,
		Registry: prometheus.NewRegistry(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens the databases, loads the game pool and registers middleware and
// routes. Start calls it; tests call it directly and drive a.Echo.
func (a *App) Init() error {
	if a.initialized {
		return nil
	}
	if err := a.Config.validate(); err != nil {
		return fmt.Errorf("luckyreel: invalid config: %w", err)
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("luckyreel: init store: %w", err)
	}
	a.Store = store
	a.Winners = NewWinnerCache(store, a.Config.WinnerCacheTTL)

	pool, err := games.Load(a.Config.Games.PoolPath)
	if err != nil {
		a.Close()
		return fmt.Errorf("luckyreel: load games: %w", err)
	}
	a.Games = pool

	ms, err := metrics.NewStore(a.Config.MetricsDatabasePath)
	if err != nil {
		a.Close()
		return fmt.Errorf("luckyreel: init metrics: %w", err)
	}
	a.Metrics = ms

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	inst := metrics.NewInstruments(a.Registry)
	a.aggregator = metrics.NewAggregator(ms, inst)
	a.metricsHandler = metrics.NewHandler(metrics.NewRecorder(ms, inst), a.aggregator, metrics.HandlerConfig{
		QueryTimeout: a.Config.Metrics.QueryTimeout,
		CacheTTL:     a.Config.Metrics.CacheTTL,
		CollectLimit: a.Config.Metrics.CollectLimit,
	})

	if spec := a.Config.Metrics.RetentionSchedule; spec != "" {
		r, err := metrics.NewRetention(a.aggregator, spec, a.Config.Metrics.RetentionDays,
			a.Config.Metrics.QueryTimeout, a.metricsHandler.PurgeCache)
		if err != nil {
			a.Close()
			return fmt.Errorf("luckyreel: retention: %w", err)
		}
		a.retention = r
	}

	a.loginLimiter = ratelimit.New(5, time.Minute)
	a.tokens = newTokenSigner(a.Config.JWTSecret, a.Config.Name, a.Config.TokenTTL)
	a.thumbs = expirable.NewLRU[string, []byte](thumbCacheSize, nil, thumbCacheTTL)

	a.Echo.Validator = validate.New()
	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

// Start initializes the app and serves until ctx is cancelled, then shuts
// the server down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(); err != nil {
		return err
	}
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)

	if a.Config.Games.Watch {
		g.Go(func() error {
			if err := a.Games.Watch(ctx); err != nil {
				log.Warn().Err(err).Msg("games pool watcher stopped")
			}
			return nil
		})
	}
	if a.retention != nil {
		a.retention.Start()
		defer a.retention.Stop()
	}

	g.Go(func() error {
		log.Info().Str("addr", a.Config.Addr).Int("games", a.Games.Len()).Msg("luckyreel listening")
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return a.Echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) setupRoutes() {
	e := a.Echo

	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.GET("/public/tracker.js", echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(embeddedFS)))))
	e.Static("/public", a.Config.StaticDir)

	e.GET("/", a.handleHome)
	e.GET("/games-data.json", a.handleGamesData)
	e.GET("/games/:id/thumb", a.handleThumb)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/health", a.handleHealth)
	e.GET("/metrics", a.metricsEndpoint())

	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	api := e.Group("/api")
	adminAPI := a.requireAdminAPI

	api.POST("/auth/login", a.handleLogin)
	api.GET("/auth/verify", a.handleVerify, adminAPI)

	api.GET("/games/daily", a.handleGamesDaily)
	api.GET("/games/status", a.handleGamesStatus, adminAPI)
	api.POST("/games/refresh", a.handleGamesRefresh, adminAPI)

	api.GET("/winners/active", a.handleActiveWinners)
	api.GET("/winners", a.handleListWinners, adminAPI)
	api.POST("/winners", a.handleCreateWinner, adminAPI)
	api.PUT("/winners/:id", a.handleUpdateWinner, adminAPI)
	api.DELETE("/winners/:id", a.handleDeleteWinner, adminAPI)

	a.metricsHandler.RegisterRoutes(api, adminAPI)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	var errs []error
	if a.metricsHandler != nil {
		a.metricsHandler.Close()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
		a.Store = nil
	}
	if a.Metrics != nil {
		errs = append(errs, a.Metrics.Close())
		a.Metrics = nil
	}
	return errors.Join(errs...)
}
