package metrics

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bathy_queries_total",
			Help: "Queries handled by the raster provider, by artifact kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	queryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bathy_query_duration_seconds",
			Help:    "Duration of provider queries in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"kind"},
	)

	toolkitDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bathy_toolkit_call_duration_seconds",
			Help:    "Duration of GDAL toolkit calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"op", "outcome"},
	)

	metadataInspections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bathy_metadata_inspections_total",
			Help: "Dataset metadata inspections by outcome.",
		},
		[]string{"outcome"},
	)

	collectorDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bathy_collector_deleted_total",
		Help: "Published artifacts removed by the collector.",
	})

	collectorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bathy_collector_failures_total",
			Help: "Collector failures by stage.",
		},
		[]string{"stage"},
	)

	resultCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bathy_result_cache_total",
			Help: "Result cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveQuery(kind string, d time.Duration, err error) {
	queriesTotal.WithLabelValues(kind, outcome(err)).Inc()
	queryDurationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

func ObserveToolkitCall(op string, d time.Duration, err error) {
	toolkitDurationSeconds.WithLabelValues(op, outcome(err)).Observe(d.Seconds())
}

func ObserveInspection(err error) {
	metadataInspections.WithLabelValues(outcome(err)).Inc()
}

func IncCollectorDeleted() {
	collectorDeleted.Inc()
}

func IncCollectorFailure(stage string) {
	collectorFailures.WithLabelValues(stage).Inc()
}

func IncCacheHit(tier string) {
	resultCache.WithLabelValues(tier, "hit").Inc()
}

func IncCacheMiss(tier string) {
	resultCache.WithLabelValues(tier, "miss").Inc()
}

// QueryInfo is one line of the query log.
type QueryInfo struct {
	ReqTime      string        `json:"req_time"`
	ReqDuration  time.Duration `json:"req_duration"`
	Transport    string        `json:"transport"`
	RemoteAddr   string        `json:"remote_addr,omitempty"`
	Dataset      string        `json:"dataset"`
	Kind         string        `json:"kind"`
	BBox         []float64     `json:"bbox,omitempty"`
	OutputWidth  int           `json:"output_width,omitempty"`
	OutputHeight int           `json:"output_height,omitempty"`
	Interpolated bool          `json:"interpolated"`
	Status       string        `json:"status"`
	Error        string        `json:"error,omitempty"`
}

type QueryCollector struct {
	Info   *QueryInfo
	start  time.Time
	logger Logger
}

func NewQueryCollector(logger Logger, transport string) *QueryCollector {
	now := time.Now()
	return &QueryCollector{
		Info: &QueryInfo{
			ReqTime:   now.UTC().Format(time.RFC3339Nano),
			Transport: transport,
			Status:    "ok",
		},
		start:  now,
		logger: logger,
	}
}

// Finish records the outcome, updates the Prometheus series and hands the
// record to the query logger.
func (m *QueryCollector) Finish(err error) {
	m.Info.ReqDuration = time.Since(m.start)
	if err != nil {
		m.Info.Status = "error"
		m.Info.Error = err.Error()
	}
	ObserveQuery(m.Info.Kind, m.Info.ReqDuration, err)
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *QueryInfo) ToJSON() (string, error) {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(i); err != nil {
		return "", err
	}
	return buf.String(), nil
}
