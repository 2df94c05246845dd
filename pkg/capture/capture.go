package capture

import (
	"context"
	"time"

	"github.com/cuemby/failwatch/pkg/log"
	"github.com/cuemby/failwatch/pkg/metrics"
	"github.com/cuemby/failwatch/pkg/types"
	"github.com/rs/zerolog"
)

// Normalizer canonicalizes request URLs
type Normalizer interface {
	Normalize(rawURL string) (string, bool)
}

// Gate rate-limits identical signals
type Gate interface {
	Admit(host, errCode string, now time.Time) bool
}

// Recorder stores admitted failures
type Recorder interface {
	Record(ctx context.Context, host, errCode string, now time.Time) types.FailureRecord
}

// Outcome describes what happened to one event
type Outcome string

const (
	OutcomeCaptured   Outcome = "captured"
	OutcomeNotFailure Outcome = "not_failure"
	OutcomeMalformed  Outcome = "malformed"
	OutcomeDebounced  Outcome = "debounced"
)

// Pipeline filters the inbound event feed into the ledger
type Pipeline struct {
	normalizer Normalizer
	gate       Gate
	recorder   Recorder
	now        func() time.Time
	logger     zerolog.Logger
}

// NewPipeline wires a capture pipeline
func NewPipeline(normalizer Normalizer, gate Gate, recorder Recorder) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		gate:       gate,
		recorder:   recorder,
		now:        time.Now,
		logger:     log.WithComponent("capture"),
	}
}

// WithClock replaces the time source
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Handle processes one event. Filtered events are normal outcomes, not errors.
func (p *Pipeline) Handle(ctx context.Context, ev types.RequestEvent) Outcome {
	metrics.EventsReceived.Inc()

	errCode := ev.ErrorCode()
	if errCode == "" {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonNotFailure).Inc()
		return OutcomeNotFailure
	}

	host, ok := p.normalizer.Normalize(ev.URL)
	if !ok {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonMalformed).Inc()
		p.logger.Debug().Str("url", ev.URL).Str("error", errCode).Msg("ignored, invalid or excluded host")
		return OutcomeMalformed
	}

	now := p.now()
	if !p.gate.Admit(host, errCode, now) {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonDebounced).Inc()
		p.logger.Debug().Str("host", host).Str("error", errCode).Msg("ignored, debounced")
		return OutcomeDebounced
	}

	p.recorder.Record(ctx, host, errCode, now)
	metrics.FailuresCaptured.Inc()
	return OutcomeCaptured
}

// HandleBatch processes events in order and returns how many were captured
func (p *Pipeline) HandleBatch(ctx context.Context, events []types.RequestEvent) int {
	captured := 0
	for _, ev := range events {
		if p.Handle(ctx, ev) == OutcomeCaptured {
			captured++
		}
	}
	return captured
}
