package luckyreel

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SiteConfig holds all configuration for a luckyreel site.
type SiteConfig struct {
	Name string `mapstructure:"name"` // Site name (default "LuckyReel")
	URL  string `mapstructure:"url"`  // Canonical URL (default "http://localhost:3000")

	Addr                string `mapstructure:"addr"`                  // Listen address (default ":3000")
	DatabasePath        string `mapstructure:"database_path"`         // Winners SQLite path (default "data/site.db")
	MetricsDatabasePath string `mapstructure:"metrics_database_path"` // Events SQLite path (default "data/metrics.db")
	StaticDir           string `mapstructure:"static_dir"`            // Public assets (default "public")

	AdminPassword string        `mapstructure:"admin_password"` // Required: admin login password
	SessionSecret string        `mapstructure:"session_secret"` // Required: session encryption secret
	JWTSecret     string        `mapstructure:"jwt_secret"`     // Required: admin token signing key
	TokenTTL      time.Duration `mapstructure:"token_ttl"`      // Admin token lifetime (default 24h)
	CookieSecure  bool          `mapstructure:"cookie_secure"`  // Set true for HTTPS

	WinnerCacheTTL time.Duration `mapstructure:"winner_cache_ttl"` // Active winners cache TTL (default 1min)

	Games   GamesConfig   `mapstructure:"games"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// GamesConfig controls the daily trending games display.
type GamesConfig struct {
	PoolPath   string   `mapstructure:"pool_path"`   // games JSON (default "games-data.json")
	ImageDir   string   `mapstructure:"image_dir"`   // entry images are resolved here (default "public")
	DailyCount int      `mapstructure:"daily_count"` // games shown per day (default 3)
	Watch      bool     `mapstructure:"watch"`       // reload the pool file on change
	Videos     []string `mapstructure:"videos"`      // YouTube ids for the daily highlight
}

// MetricsConfig tunes ingestion and dashboard queries.
type MetricsConfig struct {
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	CollectLimit      int           `mapstructure:"collect_limit"` // requests per IP per minute
	RetentionSchedule string        `mapstructure:"retention_schedule"`
	RetentionDays     int           `mapstructure:"retention_days"`
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "LuckyReel"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/site.db"
	}
	if c.MetricsDatabasePath == "" {
		c.MetricsDatabasePath = "data/metrics.db"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 24 * time.Hour
	}
	if c.WinnerCacheTTL == 0 {
		c.WinnerCacheTTL = time.Minute
	}
	if c.Games.PoolPath == "" {
		c.Games.PoolPath = "games-data.json"
	}
	if c.Games.ImageDir == "" {
		c.Games.ImageDir = c.StaticDir
	}
	if c.Games.DailyCount <= 0 {
		c.Games.DailyCount = 3
	}
	if c.Metrics.QueryTimeout == 0 {
		c.Metrics.QueryTimeout = 5 * time.Second
	}
	if c.Metrics.CollectLimit <= 0 {
		c.Metrics.CollectLimit = 120
	}
	if c.Metrics.RetentionDays <= 0 {
		c.Metrics.RetentionDays = 90
	}
}

// validate reports every missing required field at once.
func (c *SiteConfig) validate() error {
	var errs []error
	if c.AdminPassword == "" {
		errs = append(errs, errors.New("admin_password is required"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("session_secret is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	return errors.Join(errs...)
}

// LoadConfig reads config.yaml from dir (optional) and applies LUCKYREEL_*
// environment overrides, e.g. LUCKYREEL_METRICS_CACHE_TTL=1m.
func LoadConfig(dir string) (SiteConfig, error) {
	v := viper.New()
	setConfigDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")

	v.SetEnvPrefix("luckyreel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return SiteConfig{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg SiteConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// setConfigDefaults registers every key so AutomaticEnv can override keys
// that are absent from the file.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("name", "LuckyReel")
	v.SetDefault("url", "http://localhost:3000")
	v.SetDefault("addr", ":3000")
	v.SetDefault("database_path", "data/site.db")
	v.SetDefault("metrics_database_path", "data/metrics.db")
	v.SetDefault("static_dir", "public")
	v.SetDefault("admin_password", "")
	v.SetDefault("session_secret", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("winner_cache_ttl", "1m")

	v.SetDefault("games.pool_path", "games-data.json")
	v.SetDefault("games.image_dir", "")
	v.SetDefault("games.daily_count", 3)
	v.SetDefault("games.watch", true)
	v.SetDefault("games.videos", []string{"E7He8psjoJ8"})

	v.SetDefault("metrics.query_timeout", "5s")
	v.SetDefault("metrics.cache_ttl", "30s")
	v.SetDefault("metrics.collect_limit", 120)
	v.SetDefault("metrics.retention_schedule", "")
	v.SetDefault("metrics.retention_days", 90)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
