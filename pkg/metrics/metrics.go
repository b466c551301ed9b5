package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hsmeta"

// Shard fetch results.
const (
	ShardFound   = "found"
	ShardMissing = "missing"
	ShardFailed  = "failed"
)

// Rollup outcomes.
const (
	RollupSuccess = "success"
	RollupEmpty   = "empty"
	RollupFailed  = "failed"
)

// Collectors of the rollup engine.
// A nil *Rollup is valid and records nothing, so tests don't need a registry.
type Rollup struct {
	shardsFetched *prometheus.CounterVec
	decksRejected *prometheus.CounterVec
	rollups       *prometheus.CounterVec
	duration      prometheus.Histogram
}

func NewRollup(reg prometheus.Registerer) *Rollup {
	r := &Rollup{
		shardsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shards_fetched_total",
			Help:      "Shards requested by the rollups, by result.",
		}, []string{"result"}),
		decksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decks_rejected_total",
			Help:      "Deck contributions dropped by the rollups, by reason.",
		}, []string{"reason"}),
		rollups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollups_total",
			Help:      "Finished rollups, by status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rollup_duration_seconds",
			Help:      "Duration of a rollup invocation.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
	reg.MustRegister(r.shardsFetched, r.decksRejected, r.rollups, r.duration)
	return r
}

func (r *Rollup) ShardFetched(result string) {
	if r == nil {
		return
	}
	r.shardsFetched.WithLabelValues(result).Inc()
}

func (r *Rollup) DecksRejected(reason string, count int) {
	if r == nil || count <= 0 {
		return
	}
	r.decksRejected.WithLabelValues(reason).Add(float64(count))
}

func (r *Rollup) RollupFinished(status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.rollups.WithLabelValues(status).Inc()
	r.duration.Observe(elapsed.Seconds())
}
