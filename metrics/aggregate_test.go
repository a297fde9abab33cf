package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("database is locked")

// brokenLog fails every call.
type brokenLog struct{}

func (brokenLog) Append(context.Context, *Event) error { return errBoom }
func (brokenLog) CountType(context.Context, Range, InteractionType) (int, error) {
	return 0, errBoom
}
func (brokenLog) CountUniqueVisitors(context.Context, Range) (int, error) { return 0, errBoom }
func (brokenLog) AvgTimeSpent(context.Context, Range) (float64, int, error) {
	return 0, 0, errBoom
}
func (brokenLog) DeviceCounts(context.Context, Range) ([]DeviceCount, error) { return nil, errBoom }
func (brokenLog) TipStats(context.Context, Range) ([]TipCounts, error)       { return nil, errBoom }
func (brokenLog) DailyStats(context.Context, Range) ([]DayCounts, error)     { return nil, errBoom }
func (brokenLog) MinuteStats(context.Context, Range) ([]MinuteCounts, error) {
	return nil, errBoom
}
func (brokenLog) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, errBoom }

func TestChangePercent(t *testing.T) {
	tests := []struct {
		cur, prev, want float64
	}{
		{0, 0, 0},
		{10, 0, 100},
		{5, 10, -50},
		{10, 10, 0},
		{4, 3, 33.3},
		{2, 3, -33.3},
		{0, 7, -100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChangePercent(tt.cur, tt.prev), "cur=%v prev=%v", tt.cur, tt.prev)
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 33.33, round(100.0/3, 2))
	assert.Equal(t, 66.7, round(200.0/3, 1))
	assert.Equal(t, 0.0, round(0, 1))
}

func TestRangePrevious(t *testing.T) {
	r := LastDays(base, 2)
	prev := r.Previous()
	assert.Equal(t, base.Add(-96*time.Hour), prev.Start)
	assert.Equal(t, r.Start.Add(-time.Millisecond), prev.End)
}

func TestAggregatorPropagatesErrors(t *testing.T) {
	a := NewAggregator(brokenLog{}, nil)
	ctx := context.Background()
	r := a.Window(1)

	_, err := a.Overview(ctx, 1)
	assert.ErrorIs(t, err, errBoom)
	_, err = a.ClickThroughRate(ctx, r)
	assert.ErrorIs(t, err, errBoom)
	_, err = a.AverageTimeOnPage(ctx, r)
	assert.ErrorIs(t, err, errBoom)
	_, err = a.DeviceDistribution(ctx, r)
	assert.ErrorIs(t, err, errBoom)
	_, err = a.TipPerformance(ctx, r)
	assert.ErrorIs(t, err, errBoom)
	_, err = a.Trend(ctx, 7)
	assert.ErrorIs(t, err, errBoom)
	_, err = a.Realtime(ctx)
	assert.ErrorIs(t, err, errBoom)
	_, err = a.Cleanup(ctx, 30)
	assert.ErrorIs(t, err, errBoom)
}

func TestRecordViewKeepsTipIDOnFailure(t *testing.T) {
	inst := NewInstruments(prometheus.NewRegistry())
	r := NewRecorder(brokenLog{}, inst)

	tipID, err := r.RecordView(context.Background(), ViewInput{SessionID: "s1"}, RequestMeta{IP: "203.0.113.9"})
	require.ErrorIs(t, err, errBoom)
	assert.Regexp(t, `^tip_\d{8}_\d{3}$`, tipID)
	assert.Equal(t, 1.0, testutil.ToFloat64(inst.Dropped.WithLabelValues("view")))

	tipID, err = r.RecordView(context.Background(), ViewInput{TipID: "tip_given"}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, "tip_given", tipID)
}

func TestRecorderStoresEvents(t *testing.T) {
	s := newTestStore(t)
	inst := NewInstruments(prometheus.NewRegistry())
	r := NewRecorder(s, inst)
	r.now = func() time.Time { return base }
	ctx := context.Background()
	meta := RequestMeta{IP: "203.0.113.9", UserAgent: iphoneUA, Referrer: "https://example.com/"}

	tipID, err := r.RecordView(ctx, ViewInput{SessionID: "s1", PageURL: "/"}, meta)
	require.NoError(t, err)
	require.True(t, len(tipID) > 0)
	require.NoError(t, r.RecordClick(ctx, ClickInput{TipID: tipID, SessionID: "s1", ClickURL: "https://example.com/play"}, meta))
	require.NoError(t, r.RecordTimeSpent(ctx, TimeInput{TipID: tipID, SessionID: "s1", TimeSpentMs: 7000}, meta))
	assert.ErrorIs(t, r.RecordTimeSpent(ctx, TimeInput{TipID: tipID, TimeSpentMs: -1}, meta), ErrTimeOutOfRange)

	a := newTestAggregator(s, base)
	tips, err := a.TipPerformance(ctx, a.Window(1))
	require.NoError(t, err)
	assert.Equal(t, []TipPerformance{{TipID: tipID, Views: 1, Clicks: 1, CTR: 100, AvgTimeSeconds: 7}}, tips)

	assert.Equal(t, 1.0, testutil.ToFloat64(inst.Recorded.WithLabelValues("view", "mobile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(inst.Recorded.WithLabelValues("time_spent", "mobile")))
}

func TestNilInstruments(t *testing.T) {
	var inst *Instruments
	inst.recorded(View, Desktop)
	inst.dropped(Click)
	inst.deleted(3)
}
