package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Instruments holds the ingestion counters. A nil *Instruments is valid and
// records nothing.
type Instruments struct {
	Recorded *prometheus.CounterVec
	Dropped  *prometheus.CounterVec
	Deleted  prometheus.Counter
}

// NewInstruments registers the counters on reg.
func NewInstruments(reg prometheus.Registerer) *Instruments {
	f := promauto.With(reg)
	return &Instruments{
		Recorded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luckyreel",
			Name:      "interactions_recorded_total",
			Help:      "Interaction events appended to the log.",
		}, []string{"type", "device"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luckyreel",
			Name:      "interactions_dropped_total",
			Help:      "Interaction events lost to storage errors.",
		}, []string{"type"}),
		Deleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "luckyreel",
			Name:      "interactions_deleted_total",
			Help:      "Interaction events removed by retention cleanup.",
		}),
	}
}

func (i *Instruments) recorded(t InteractionType, d DeviceType) {
	if i == nil {
		return
	}
	i.Recorded.WithLabelValues(string(t), string(d)).Inc()
}

func (i *Instruments) dropped(t InteractionType) {
	if i == nil {
		return
	}
	i.Dropped.WithLabelValues(string(t)).Inc()
}

func (i *Instruments) deleted(n int64) {
	if i == nil || n <= 0 {
		return
	}
	i.Deleted.Add(float64(n))
}
