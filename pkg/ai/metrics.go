package ai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marker",
		Subsystem: "ai",
		Name:      "completion_duration_seconds",
		Help:      "Duration of chat completion requests",
	}, []string{"provider", "model"})

	completionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marker",
		Subsystem: "ai",
		Name:      "completion_failures_total",
		Help:      "Number of failed chat completion requests",
	}, []string{"provider", "model"})
)

func observeCompletion(provider, model string, start time.Time) {
	completionDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
}

func recordFailure(span trace.Span, provider, model string, err error) {
	completionFailures.WithLabelValues(provider, model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
