package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"

	DirectionSent      = "sent"
	DirectionReceived  = "received"
	DirectionRejected  = "rejected"
	DirectionCommitted = "committed"
)

var (
	registerOnce sync.Once

	sessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plenty",
			Subsystem: "sync",
			Name:      "sessions_total",
			Help:      "Synchronization sessions by role and outcome.",
		},
		[]string{"role", "outcome"},
	)
	records = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plenty",
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "History records moved by role and direction.",
		},
		[]string{"role", "direction"},
	)
	commitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "plenty",
			Subsystem: "store",
			Name:      "commit_duration_seconds",
			Help:      "Batch commit duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	commitSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "plenty",
			Subsystem: "store",
			Name:      "commit_batch_records",
			Help:      "Records per committed batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sessions, records, commitDuration, commitSize)
	})
}

func RecordSession(role, outcome string) {
	RegisterMetrics()
	sessions.WithLabelValues(role, outcome).Inc()
}

func AddRecords(role, direction string, n int) {
	RegisterMetrics()
	if n <= 0 {
		return
	}
	records.WithLabelValues(role, direction).Add(float64(n))
}

func ObserveCommit(size int, duration time.Duration) {
	RegisterMetrics()
	commitSize.Observe(float64(size))
	commitDuration.Observe(duration.Seconds())
}

// WriteTextfile dumps the default registry in the node_exporter textfile
// format. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	RegisterMetrics()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("observability: write metrics textfile %s: %w", path, err)
	}
	return nil
}
