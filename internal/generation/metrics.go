package generation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/macroplan/macroplan/internal/generation"

// Metrics holds the OpenTelemetry instruments for generation attempts.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	attemptTotal     metric.Int64Counter
	attemptDuration  metric.Float64Histogram
	attemptsInFlight metric.Int64UpDownCounter
	pollTotal        metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with initialized instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	attemptTotal, err := meter.Int64Counter(
		"generation.attempt.total",
		metric.WithDescription("Total number of plan generation attempts, by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	attemptDuration, err := meter.Float64Histogram(
		"generation.attempt.duration",
		metric.WithDescription("Duration of finished plan generation attempts in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	attemptsInFlight, err := meter.Int64UpDownCounter(
		"generation.attempts_in_flight",
		metric.WithDescription("Number of generation attempts currently running"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	pollTotal, err := meter.Int64Counter(
		"generation.poll.total",
		metric.WithDescription("Total number of job status polls"),
		metric.WithUnit("{poll}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		attemptTotal:     attemptTotal,
		attemptDuration:  attemptDuration,
		attemptsInFlight: attemptsInFlight,
		pollTotal:        pollTotal,
	}, nil
}

// AttemptRefused records an attempt refused before it ran.
func (m *Metrics) AttemptRefused(kind FailureKind) {
	if m == nil {
		return
	}
	m.attemptTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("generation.state", string(StateError)),
		attribute.String("generation.failure", string(kind)),
	))
}

// AttemptStarted records a newly launched attempt.
func (m *Metrics) AttemptStarted() {
	if m == nil {
		return
	}
	m.attemptsInFlight.Add(context.Background(), 1)
}

// AttemptFinished records the outcome of a finished attempt.
func (m *Metrics) AttemptFinished(state State, failure *Failure, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("generation.state", string(state)),
	}
	if failure != nil {
		attrs = append(attrs, attribute.String("generation.failure", string(failure.Kind)))
	}

	// Metrics use a detached context so a canceled attempt still records.
	ctx := context.Background()
	m.attemptsInFlight.Add(ctx, -1)
	m.attemptTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.attemptDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// PollObserved counts one status poll.
func (m *Metrics) PollObserved(err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	m.pollTotal.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
