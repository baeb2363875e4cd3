package steps

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ecoverify_step_duration_seconds",
		Help:    "Duration of one agent step invocation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"step", "outcome"})

	stepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoverify_step_errors_total",
		Help: "Agent step invocations that returned an error.",
	}, []string{"step"})
)

// span wraps a step's body with duration/outcome metrics and a
// structured log line, the way agent_span wraps every node function.
func span[T any](name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		stepErrors.WithLabelValues(name).Inc()
	}
	stepDuration.WithLabelValues(name, outcome).Observe(elapsed.Seconds())

	slog.Debug("step span", "step", name, "outcome", outcome, "duration_ms", elapsed.Milliseconds())
	return result, err
}
