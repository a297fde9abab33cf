package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestAggregator returns an aggregator whose clock is fixed at now.
func newTestAggregator(s *Store, now time.Time) *Aggregator {
	a := NewAggregator(s, nil)
	a.now = func() time.Time { return now }
	return a
}

func event(typ InteractionType, tip, session string, ts time.Time) *Event {
	e := &Event{
		ID:        uuid.NewString(),
		TipID:     tip,
		SessionID: session,
		IPAddress: "203.0.113.1",
		Type:      typ,
		Device:    Classify(desktopUA),
	}
	e.stamp(ts)
	return e
}

func timeEvent(tip string, ms int64, ts time.Time) *Event {
	e := event(TimeSpent, tip, "s1", ts)
	e.TimeSpentMs = ms
	return e
}

func appendAll(t *testing.T, s *Store, events ...*Event) {
	t.Helper()
	for _, e := range events {
		require.NoError(t, s.Append(context.Background(), e))
	}
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	appendAll(t, s, event(View, "tip_a", "s1", base))
	require.NoError(t, s.Close())

	s, err = NewStore(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountType(context.Background(), Range{Start: base, End: base}, View)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppendRejectsDuplicateID(t *testing.T) {
	s := newTestStore(t)
	e := event(View, "tip_a", "s1", base)
	appendAll(t, s, e)
	assert.Error(t, s.Append(context.Background(), e))
}

func TestTipPerformanceSingleTip(t *testing.T) {
	s := newTestStore(t)
	appendAll(t, s,
		event(View, "tip_a", "s1", base),
		event(Click, "tip_a", "s1", base.Add(time.Second)),
		timeEvent("tip_a", 5000, base.Add(2*time.Second)),
	)

	a := newTestAggregator(s, base.Add(time.Hour))
	got, err := a.TipPerformance(context.Background(), a.Window(1))
	require.NoError(t, err)
	assert.Equal(t, []TipPerformance{{TipID: "tip_a", Views: 1, Clicks: 1, CTR: 100, AvgTimeSeconds: 5}}, got)
}

func TestTipPerformanceOrdering(t *testing.T) {
	s := newTestStore(t)
	appendAll(t, s,
		event(View, "tip_b", "s1", base),
		event(View, "tip_c", "s1", base),
		event(View, "tip_c", "s2", base),
		event(View, "tip_a", "s1", base),
		event(Click, "tip_d", "s1", base),
	)

	a := newTestAggregator(s, base.Add(time.Hour))
	got, err := a.TipPerformance(context.Background(), a.Window(1))
	require.NoError(t, err)

	var ids []string
	for _, tp := range got {
		ids = append(ids, tp.TipID)
	}
	assert.Equal(t, []string{"tip_c", "tip_a", "tip_b", "tip_d"}, ids)
	assert.Equal(t, 0.0, got[3].CTR, "clicks without views")
}

func TestUniqueVisitors(t *testing.T) {
	s := newTestStore(t)
	appendAll(t, s,
		event(View, "tip_a", "s1", base),
		event(View, "tip_b", "s1", base.Add(time.Minute)),
		event(View, "tip_a", "s1", base.Add(2*time.Minute)),
		event(Click, "tip_c", "s1", base),
	)

	a := newTestAggregator(s, base.Add(time.Hour))
	n, err := a.UniqueVisitors(context.Background(), a.Window(1))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUniqueVisitorsSplitsByDate(t *testing.T) {
	s := newTestStore(t)
	midnight := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	appendAll(t, s,
		event(View, "tip_a", "s1", midnight.Add(-time.Minute)),
		event(View, "tip_a", "s1", midnight.Add(time.Minute)),
	)

	a := newTestAggregator(s, midnight.Add(time.Hour))
	n, err := a.UniqueVisitors(context.Background(), a.Window(1))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestClickThroughRate(t *testing.T) {
	s := newTestStore(t)
	a := newTestAggregator(s, base.Add(time.Hour))
	ctx := context.Background()

	rate, err := a.ClickThroughRate(ctx, a.Window(1))
	require.NoError(t, err)
	assert.Equal(t, 0.0, rate, "no views")

	appendAll(t, s,
		event(View, "tip_a", "s1", base),
		event(View, "tip_a", "s2", base),
		event(View, "tip_b", "s3", base),
		event(Click, "tip_a", "s1", base),
	)
	rate, err = a.ClickThroughRate(ctx, a.Window(1))
	require.NoError(t, err)
	assert.Equal(t, 33.33, rate)
}

func TestAverageTimeOnPageIgnoresZero(t *testing.T) {
	s := newTestStore(t)
	appendAll(t, s,
		timeEvent("tip_a", 0, base),
		timeEvent("tip_a", 4000, base),
		timeEvent("tip_a", 6000, base),
		event(View, "tip_a", "s1", base),
	)

	a := newTestAggregator(s, base.Add(time.Hour))
	ctx := context.Background()

	avg, err := a.AverageTimeOnPage(ctx, a.Window(1))
	require.NoError(t, err)
	assert.Equal(t, int64(5), avg)

	// Per-tip averages keep zero values.
	tips, err := a.TipPerformance(ctx, a.Window(1))
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, int64(3), tips[0].AvgTimeSeconds)
}

func TestAverageTimeOnPageEmpty(t *testing.T) {
	a := newTestAggregator(newTestStore(t), base)
	avg, err := a.AverageTimeOnPage(context.Background(), a.Window(1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), avg)
}

func TestDeviceDistribution(t *testing.T) {
	s := newTestStore(t)
	mobile := event(View, "tip_a", "s4", base)
	mobile.Device = Classify(iphoneUA)
	appendAll(t, s,
		event(View, "tip_a", "s1", base),
		event(View, "tip_a", "s2", base),
		event(View, "tip_a", "s3", base),
		mobile,
		event(Click, "tip_a", "s1", base),
	)

	a := newTestAggregator(s, base.Add(time.Hour))
	got, err := a.DeviceDistribution(context.Background(), a.Window(1))
	require.NoError(t, err)
	assert.Equal(t, map[DeviceType]DeviceShare{
		Desktop: {Count: 3, Percentage: 75},
		Mobile:  {Count: 1, Percentage: 25},
	}, got)
}

func TestOverviewComparesPreviousWindow(t *testing.T) {
	s := newTestStore(t)
	now := base
	appendAll(t, s,
		// previous window
		event(View, "tip_a", "p1", now.Add(-36*time.Hour)),
		event(View, "tip_a", "p2", now.Add(-30*time.Hour)),
		// boundary belongs to the current window only
		event(View, "tip_a", "c1", now.Add(-24*time.Hour)),
		event(View, "tip_a", "c2", now.Add(-time.Hour)),
		event(View, "tip_a", "c3", now),
		event(Click, "tip_a", "c2", now.Add(-time.Hour)),
		// outside both
		event(View, "tip_a", "old", now.Add(-49*time.Hour)),
	)

	a := newTestAggregator(s, now)
	got, err := a.Overview(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, Metric{Value: 3, Change: 50}, got.TotalViews)
	assert.Equal(t, Metric{Value: 3, Change: 50}, got.UniqueVisitors)
	assert.Equal(t, Metric{Value: 33.33, Change: 100}, got.ClickThroughRate)
	assert.Equal(t, Metric{Value: 0, Change: 0}, got.AvgTimeOnPage)
}

func TestTrend(t *testing.T) {
	s := newTestStore(t)
	day1 := time.Date(2024, 2, 28, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	appendAll(t, s,
		event(View, "tip_a", "s1", day2),
		event(View, "tip_a", "s1", day1),
		event(View, "tip_b", "s2", day1),
		event(Click, "tip_a", "s1", day1),
		timeEvent("tip_a", 1500, day1),
		timeEvent("tip_a", 2500, day1),
		event(View, "tip_a", "s1", day1.Add(-30*24*time.Hour)),
	)

	a := newTestAggregator(s, base)
	got, err := a.Trend(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []TrendPoint{
		{Date: "2024-02-28", Views: 2, Clicks: 1, AvgTimeMs: 2000},
		{Date: "2024-02-29", Views: 1, Clicks: 0, AvgTimeMs: 0},
	}, got)
}

func TestRealtime(t *testing.T) {
	s := newTestStore(t)
	appendAll(t, s,
		event(View, "tip_a", "s1", base.Add(-10*time.Minute)),
		event(Click, "tip_a", "s1", base.Add(-10*time.Minute+5*time.Second)),
		event(View, "tip_a", "s2", base.Add(-2*time.Minute)),
		timeEvent("tip_a", 3000, base.Add(-time.Minute)),
		event(View, "tip_a", "s3", base.Add(-2*time.Hour)),
	)

	a := newTestAggregator(s, base)
	got, err := a.Realtime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []MinutePoint{
		{Minute: base.Add(-10 * time.Minute), Views: 1, Clicks: 1},
		{Minute: base.Add(-2 * time.Minute), Views: 1, Clicks: 0},
	}, got)
}

func TestCleanup(t *testing.T) {
	s := newTestStore(t)
	appendAll(t, s,
		event(View, "tip_a", "s1", base.Add(-40*24*time.Hour)),
		event(View, "tip_a", "s1", base.Add(-31*24*time.Hour)),
		event(View, "tip_a", "s1", base.Add(-24*time.Hour)),
	)

	a := newTestAggregator(s, base)
	ctx := context.Background()

	n, err := a.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := a.TotalViews(ctx, a.Window(365))
	require.NoError(t, err)
	assert.Equal(t, 1, left)
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.getSetting(ctx, "schema_version")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	v, err = s.getSetting(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)
}
