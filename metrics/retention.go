package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Retention periodically deletes events older than a fixed number of days.
type Retention struct {
	agg     *Aggregator
	days    int
	timeout time.Duration
	cron    *cron.Cron
	onPurge func()
}

// NewRetention schedules cleanup on the standard five-field cron spec.
// onPurge, if set, runs after every successful pass (e.g. to drop cached
// query results).
func NewRetention(agg *Aggregator, spec string, days int, timeout time.Duration, onPurge func()) (*Retention, error) {
	if days < 1 {
		return nil, fmt.Errorf("retention days must be positive, got %d", days)
	}
	r := &Retention{
		agg:     agg,
		days:    days,
		timeout: timeout,
		cron:    cron.New(),
		onPurge: onPurge,
	}
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return nil, fmt.Errorf("schedule retention %q: %w", spec, err)
	}
	return r, nil
}

// Start runs the scheduler in the background.
func (r *Retention) Start() {
	r.cron.Start()
	log.Info().Int("days", r.days).Msg("metrics retention scheduled")
}

// Stop halts the scheduler and waits for a running pass to finish.
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Retention) run() {
	if _, err := r.RunOnce(context.Background()); err != nil {
		log.Error().Err(err).Msg("metrics retention failed")
	}
}

// RunOnce performs a single cleanup pass.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	n, err := r.agg.Cleanup(ctx, r.days)
	if err != nil {
		return 0, err
	}
	if r.onPurge != nil {
		r.onPurge()
	}
	log.Info().Int64("deleted", n).Int("days", r.days).Msg("metrics retention pass")
	return n, nil
}
