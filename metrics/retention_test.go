package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionRunOnce(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	appendAll(t, s,
		event(View, "tip_a", "s1", now.Add(-10*24*time.Hour)),
		event(View, "tip_a", "s1", now.Add(-time.Hour)),
	)

	inst := NewInstruments(prometheus.NewRegistry())
	purged := 0
	r, err := NewRetention(NewAggregator(s, inst), "@daily", 7, time.Second, func() { purged++ })
	require.NoError(t, err)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, purged)
	assert.Equal(t, 1.0, testutil.ToFloat64(inst.Deleted))
}

func TestRetentionStartStop(t *testing.T) {
	r, err := NewRetention(NewAggregator(newTestStore(t), nil), "*/5 * * * *", 30, 0, nil)
	require.NoError(t, err)
	r.Start()
	r.Stop()
}

func TestNewRetentionErrors(t *testing.T) {
	agg := NewAggregator(brokenLog{}, nil)

	_, err := NewRetention(agg, "not a schedule", 30, 0, nil)
	assert.Error(t, err)

	_, err = NewRetention(agg, "@daily", 0, 0, nil)
	assert.Error(t, err)
}

func TestRetentionRunOnceError(t *testing.T) {
	called := false
	r, err := NewRetention(NewAggregator(brokenLog{}, nil), "@hourly", 30, 0, func() { called = true })
	require.NoError(t, err)

	_, err = r.RunOnce(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, called)
}
