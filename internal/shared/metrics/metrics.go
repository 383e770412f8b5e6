package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "photoshoot"

var (
	registry = prometheus.NewRegistry()

	generationsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_started_total",
		Help:      "Total generation jobs accepted.",
	})
	generationsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_finished_total",
		Help:      "Total generation jobs reaching a terminal state.",
	}, []string{"status"})
	generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Wall time from job start to terminal state.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})
	imagesSynthesized = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "images_synthesized_total",
		Help:      "Output images returned by the image provider.",
	})
	aiFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ai",
		Name:      "fallbacks_total",
		Help:      "Provider calls that failed and were replaced by a fallback value.",
	}, []string{"operation"})
	realtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "connections",
		Help:      "Currently registered push connections.",
	})
	realtimeDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "dropped_connections_total",
		Help:      "Connections dropped after a failed delivery.",
	})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		generationsStarted,
		generationsFinished,
		generationDuration,
		imagesSynthesized,
		aiFallbacks,
		realtimeConnections,
		realtimeDropped,
	)
}

// IncGenerationStarted increments the started counter.
func IncGenerationStarted() {
	generationsStarted.Inc()
}

// ObserveGenerationFinished records a terminal state and the job duration.
func ObserveGenerationFinished(status string, d time.Duration) {
	generationsFinished.WithLabelValues(status).Inc()
	if d < 0 {
		d = 0
	}
	generationDuration.Observe(d.Seconds())
}

// AddImagesSynthesized counts output images returned by the provider.
func AddImagesSynthesized(n int) {
	if n > 0 {
		imagesSynthesized.Add(float64(n))
	}
}

// IncAIFallback counts a provider failure replaced by a fallback for operation.
func IncAIFallback(operation string) {
	aiFallbacks.WithLabelValues(operation).Inc()
}

// SetRealtimeConnections reports the registry size.
func SetRealtimeConnections(n int) {
	realtimeConnections.Set(float64(n))
}

// IncRealtimeDropped counts a connection removed after a failed write.
func IncRealtimeDropped() {
	realtimeDropped.Inc()
}

// Registry exposes the collector registry, mainly for tests.
func Registry() *prometheus.Registry {
	return registry
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
