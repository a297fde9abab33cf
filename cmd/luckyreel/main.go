package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/eringen/luckyreel"
	"github.com/eringen/luckyreel/games"
	"github.com/eringen/luckyreel/metrics"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env is fine; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: load .env: %v\n", err)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "select":
		err = runSelect(os.Args[2:])
	case "cleanup":
		err = runCleanup(os.Args[2:])
	case "version":
		fmt.Printf("luckyreel %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Error().Err(err).Msg(os.Args[1] + " failed")
		os.Exit(1)
	}
}

func loadConfig(dir string) (luckyreel.SiteConfig, func(), error) {
	cfg, err := luckyreel.LoadConfig(dir)
	if err != nil {
		return cfg, nil, err
	}
	closer, err := luckyreel.SetupLogging(cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, func() { _ = closer.Close() }, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dir := fs.String("config", luckyreel.EnvOr("LUCKYREEL_CONFIG_DIR", "."), "directory containing config.yaml")
	_ = fs.Parse(args)

	cfg, done, err := loadConfig(*dir)
	if err != nil {
		return err
	}
	defer done()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return luckyreel.New(cfg).Start(ctx)
}

func runSelect(args []string) error {
	fs := flag.NewFlagSet("select", flag.ExitOnError)
	dir := fs.String("config", luckyreel.EnvOr("LUCKYREEL_CONFIG_DIR", "."), "directory containing config.yaml")
	date := fs.String("date", "", "UTC day to preview (YYYY-MM-DD, default today)")
	count := fs.Int("count", 0, "games per day (default from config)")
	_ = fs.Parse(args)

	cfg, done, err := loadConfig(*dir)
	if err != nil {
		return err
	}
	defer done()

	day := time.Now().UTC()
	if *date != "" {
		day, err = time.Parse("2006-01-02", *date)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", *date, err)
		}
	}
	k := cfg.Games.DailyCount
	if *count > 0 {
		k = *count
	}

	pool, err := games.Load(cfg.Games.PoolPath)
	if err != nil {
		return err
	}
	sel := pool.Daily(k, day)
	fmt.Printf("%s  day %d  start %d of %d\n", day.Format("2006-01-02"), sel.DayIndex, sel.StartIndex, pool.Len())
	for i, g := range sel.Games {
		fmt.Printf("  %d. %-8s %s\n", i+1, g.ID, g.Title)
	}
	if id := games.DailyVideo(cfg.Games.Videos, day); id != "" {
		fmt.Printf("  video: %s\n", games.EmbedURL(id))
	}
	return nil
}

func runCleanup(args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	dir := fs.String("config", luckyreel.EnvOr("LUCKYREEL_CONFIG_DIR", "."), "directory containing config.yaml")
	days := fs.Int("days", 30, "delete events older than this many days")
	_ = fs.Parse(args)

	if *days < 1 {
		return fmt.Errorf("days must be positive, got %d", *days)
	}
	cfg, done, err := loadConfig(*dir)
	if err != nil {
		return err
	}
	defer done()

	store, err := metrics.NewStore(cfg.MetricsDatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := metrics.NewAggregator(store, nil).Cleanup(ctx, *days)
	if err != nil {
		return err
	}
	log.Info().Int64("deleted", n).Int("days", *days).Msg("metrics cleanup done")
	return nil
}

func printUsage() {
	fmt.Println(`luckyreel - daily game reels with interaction metrics

Usage:
  luckyreel <command> [flags]

Commands:
  serve               Run the web server
  select [-date D]    Preview the games shown on a UTC day
  cleanup [-days N]   Delete interaction events older than N days (default 30)
  version             Print the luckyreel version
  help                Show this help message

Configuration is read from config.yaml and LUCKYREEL_* environment
variables; a .env file in the working directory is loaded first.`)
}
