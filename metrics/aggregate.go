package metrics

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

// Reader is the query side of the event log.
type Reader interface {
	CountType(ctx context.Context, r Range, t InteractionType) (int, error)
	CountUniqueVisitors(ctx context.Context, r Range) (int, error)
	AvgTimeSpent(ctx context.Context, r Range) (float64, int, error)
	DeviceCounts(ctx context.Context, r Range) ([]DeviceCount, error)
	TipStats(ctx context.Context, r Range) ([]TipCounts, error)
	DailyStats(ctx context.Context, r Range) ([]DayCounts, error)
	MinuteStats(ctx context.Context, r Range) ([]MinuteCounts, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Appender is the write side of the event log.
type Appender interface {
	Append(ctx context.Context, e *Event) error
}

// EventLog is implemented by *Store.
type EventLog interface {
	Reader
	Appender
}

// Metric is one overview figure with its change against the previous window.
type Metric struct {
	Value  float64 `json:"value"`
	Change float64 `json:"change"`
}

// Overview is the dashboard headline block.
type Overview struct {
	TotalViews       Metric `json:"totalViews"`
	UniqueVisitors   Metric `json:"uniqueVisitors"`
	ClickThroughRate Metric `json:"clickThroughRate"`
	AvgTimeOnPage    Metric `json:"avgTimeOnPage"`
}

// DeviceShare is the view count and percentage of one device class.
type DeviceShare struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TipPerformance summarises one tip over a window.
type TipPerformance struct {
	TipID          string  `json:"tipId"`
	Views          int     `json:"views"`
	Clicks         int     `json:"clicks"`
	CTR            float64 `json:"ctr"`
	AvgTimeSeconds int64   `json:"avgTimeSeconds"`
}

// TrendPoint is one calendar day of the trend chart.
type TrendPoint struct {
	Date      string `json:"date"`
	Views     int    `json:"views"`
	Clicks    int    `json:"clicks"`
	AvgTimeMs int64  `json:"avgTimeMs"`
}

// MinutePoint is one minute of the realtime chart.
type MinutePoint struct {
	Minute time.Time `json:"minute"`
	Views  int       `json:"views"`
	Clicks int       `json:"clicks"`
}

// Aggregator answers windowed queries over the event log.
type Aggregator struct {
	log  Reader
	inst *Instruments
	now  func() time.Time
}

// NewAggregator returns an Aggregator reading from log. inst may be nil.
func NewAggregator(log Reader, inst *Instruments) *Aggregator {
	return &Aggregator{log: log, inst: inst, now: time.Now}
}

// Window returns the range covering the last days days.
func (a *Aggregator) Window(days int) Range {
	return LastDays(a.now(), days)
}

// TotalViews counts view events in r.
func (a *Aggregator) TotalViews(ctx context.Context, r Range) (int, error) {
	return a.log.CountType(ctx, r, View)
}

// UniqueVisitors counts distinct (session, tip, date) triples among views in r.
func (a *Aggregator) UniqueVisitors(ctx context.Context, r Range) (int, error) {
	return a.log.CountUniqueVisitors(ctx, r)
}

// ClickThroughRate is 100*clicks/views rounded to 2 decimals, 0 without views.
func (a *Aggregator) ClickThroughRate(ctx context.Context, r Range) (float64, error) {
	var views, clicks int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		views, err = a.log.CountType(gctx, r, View)
		return err
	})
	g.Go(func() (err error) {
		clicks, err = a.log.CountType(gctx, r, Click)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return ctr(clicks, views, 2), nil
}

// AverageTimeOnPage is the mean positive time_spent in r, in whole seconds.
func (a *Aggregator) AverageTimeOnPage(ctx context.Context, r Range) (int64, error) {
	avgMs, n, err := a.log.AvgTimeSpent(ctx, r)
	if err != nil || n == 0 {
		return 0, err
	}
	return int64(math.Round(avgMs / 1000)), nil
}

// DeviceDistribution breaks views in r down by device class.
func (a *Aggregator) DeviceDistribution(ctx context.Context, r Range) (map[DeviceType]DeviceShare, error) {
	counts, err := a.log.DeviceCounts(ctx, r)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, dc := range counts {
		total += dc.Count
	}
	out := make(map[DeviceType]DeviceShare, len(counts))
	for _, dc := range counts {
		out[dc.DeviceType] = DeviceShare{
			Count:      dc.Count,
			Percentage: round(100*float64(dc.Count)/float64(total), 1),
		}
	}
	return out, nil
}

// TipPerformance lists every tip with activity in r, most viewed first.
func (a *Aggregator) TipPerformance(ctx context.Context, r Range) ([]TipPerformance, error) {
	rows, err := a.log.TipStats(ctx, r)
	if err != nil {
		return nil, err
	}
	out := make([]TipPerformance, 0, len(rows))
	for _, row := range rows {
		tp := TipPerformance{
			TipID:  row.TipID,
			Views:  row.Views,
			Clicks: row.Clicks,
			CTR:    ctr(row.Clicks, row.Views, 1),
		}
		if row.AvgTimeMs.Valid {
			tp.AvgTimeSeconds = int64(math.Round(row.AvgTimeMs.Float64 / 1000))
		}
		out = append(out, tp)
	}
	return out, nil
}

// Trend returns per-day views, clicks and mean time spent over the last days.
func (a *Aggregator) Trend(ctx context.Context, days int) ([]TrendPoint, error) {
	rows, err := a.log.DailyStats(ctx, a.Window(days))
	if err != nil {
		return nil, err
	}
	out := make([]TrendPoint, 0, len(rows))
	for _, row := range rows {
		tp := TrendPoint{Date: row.Date, Views: row.Views, Clicks: row.Clicks}
		if row.AvgTimeMs.Valid {
			tp.AvgTimeMs = int64(math.Round(row.AvgTimeMs.Float64))
		}
		out = append(out, tp)
	}
	return out, nil
}

// Overview computes the four headline metrics for the last days and their
// change against the window of equal length immediately before it.
func (a *Aggregator) Overview(ctx context.Context, days int) (Overview, error) {
	cur := a.Window(days)
	prev := cur.Previous()

	var (
		views, prevViews       int
		visitors, prevVisitors int
		rate, prevRate         float64
		avg, prevAvg           int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { views, err = a.TotalViews(gctx, cur); return })
	g.Go(func() (err error) { prevViews, err = a.TotalViews(gctx, prev); return })
	g.Go(func() (err error) { visitors, err = a.UniqueVisitors(gctx, cur); return })
	g.Go(func() (err error) { prevVisitors, err = a.UniqueVisitors(gctx, prev); return })
	g.Go(func() (err error) { rate, err = a.ClickThroughRate(gctx, cur); return })
	g.Go(func() (err error) { prevRate, err = a.ClickThroughRate(gctx, prev); return })
	g.Go(func() (err error) { avg, err = a.AverageTimeOnPage(gctx, cur); return })
	g.Go(func() (err error) { prevAvg, err = a.AverageTimeOnPage(gctx, prev); return })
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	return Overview{
		TotalViews:       metric(float64(views), float64(prevViews)),
		UniqueVisitors:   metric(float64(visitors), float64(prevVisitors)),
		ClickThroughRate: Metric{Value: rate, Change: ChangePercent(rate, prevRate)},
		AvgTimeOnPage:    metric(float64(avg), float64(prevAvg)),
	}, nil
}

// Realtime returns per-minute views and clicks over the last hour.
func (a *Aggregator) Realtime(ctx context.Context) ([]MinutePoint, error) {
	now := a.now()
	rows, err := a.log.MinuteStats(ctx, Range{Start: now.Add(-time.Hour), End: now})
	if err != nil {
		return nil, err
	}
	out := make([]MinutePoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, MinutePoint(row))
	}
	return out, nil
}

// Cleanup deletes events older than days and returns how many were removed.
func (a *Aggregator) Cleanup(ctx context.Context, days int) (int64, error) {
	n, err := a.log.DeleteBefore(ctx, a.now().Add(-time.Duration(days)*24*time.Hour))
	if err != nil {
		return 0, err
	}
	a.inst.deleted(n)
	return n, nil
}

// ChangePercent is 100*(cur-prev)/prev rounded to one decimal. A zero
// previous value yields 100 when cur is positive and 0 otherwise.
func ChangePercent(cur, prev float64) float64 {
	if prev == 0 {
		if cur > 0 {
			return 100
		}
		return 0
	}
	return round((cur-prev)/prev*100, 1)
}

// metric rounds cur to one decimal. Values already rounded to a finer
// precision are built directly.
func metric(cur, prev float64) Metric {
	return Metric{Value: round(cur, 1), Change: ChangePercent(cur, prev)}
}

func ctr(clicks, views, places int) float64 {
	if views == 0 {
		return 0
	}
	return round(100*float64(clicks)/float64(views), places)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
