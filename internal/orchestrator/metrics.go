package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics is the rolling aggregate for one engine.
type EngineMetrics struct {
	Engine  string `json:"engine"`
	Queries int    `json:"queries"`
	Errors  int    `json:"errors"`
	// FallbackTriggered counts failures of this engine that handed the query to another.
	FallbackTriggered int `json:"fallback_triggered"`
	// FallbackServed counts answers this engine gave in place of another.
	FallbackServed int     `json:"fallback_served"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

type metricsBook struct {
	mu      sync.Mutex
	engines map[string]*EngineMetrics
	order   []string
}

func newMetricsBook(names []string) *metricsBook {
	b := &metricsBook{engines: make(map[string]*EngineMetrics)}
	for _, n := range names {
		b.engines[n] = &EngineMetrics{Engine: n}
		b.order = append(b.order, n)
	}
	return b
}

func (b *metricsBook) recordSuccess(name string, latency time.Duration, confidence float64, fallback bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := b.engines[name]
	if m == nil {
		return
	}
	m.Queries++
	n := float64(m.Queries)
	m.AvgLatencyMs += (float64(latency.Microseconds())/1000 - m.AvgLatencyMs) / n
	m.AvgConfidence += (confidence - m.AvgConfidence) / n
	if fallback {
		m.FallbackServed++
	}
}

func (b *metricsBook) recordFailure(name string, fellBack bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := b.engines[name]
	if m == nil {
		return
	}
	m.Errors++
	if fellBack {
		m.FallbackTriggered++
	}
}

func (b *metricsBook) snapshot() []EngineMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]EngineMetrics, 0, len(b.order))
	for _, n := range b.order {
		out = append(out, *b.engines[n])
	}
	return out
}

func (b *metricsBook) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for n := range b.engines {
		b.engines[n] = &EngineMetrics{Engine: n}
	}
}

// collectors exports the same figures to Prometheus.
type collectors struct {
	queries     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	confidence  *prometheus.HistogramVec
	fallbacks   *prometheus.CounterVec
	escalations *prometheus.CounterVec
	cacheHits   prometheus.Counter
	available   *prometheus.GaugeVec
}

func newCollectors(reg prometheus.Registerer) *collectors {
	f := promauto.With(reg)
	return &collectors{
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "profile_qa",
			Name:      "engine_queries_total",
			Help:      "Engine round-trips by engine and result.",
		}, []string{"engine", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "profile_qa",
			Name:      "engine_query_duration_seconds",
			Help:      "Engine round-trip latency.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}, []string{"engine"}),
		confidence: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "profile_qa",
			Name:      "answer_confidence",
			Help:      "Confidence of answers after boosting.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"engine"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "profile_qa",
			Name:      "engine_fallbacks_total",
			Help:      "Infrastructure fallbacks by failing engine.",
		}, []string{"engine"}),
		escalations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "profile_qa",
			Name:      "escalations_total",
			Help:      "Confidence escalations by action.",
		}, []string{"action"}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "profile_qa",
			Name:      "response_cache_hits_total",
			Help:      "Queries answered from the response cache.",
		}),
		available: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "profile_qa",
			Name:      "engine_available",
			Help:      "1 when the engine has signalled readiness.",
		}, []string{"engine"}),
	}
}
