// Package pipeline implements the orchestrator (C10): the single-writer
// state machine that drives one incoming message through classification,
// context inference, the location gate, optional LLM verification,
// deduplication, formatting, and broadcast.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tg-alert-filter/internal/broadcast"
	contextwindow "tg-alert-filter/internal/context"
	"tg-alert-filter/internal/dedup"
	"tg-alert-filter/internal/detect"
	"tg-alert-filter/internal/domain"
	"tg-alert-filter/internal/format"
	"tg-alert-filter/internal/idempotency"
	"tg-alert-filter/internal/infra/metrics"
)

// Config carries the tunable thresholds consumed by Pipeline, sourced from
// config.AppConfig by the caller.
type Config struct {
	ForwardAllThreats bool
}

// Pipeline owns every piece of mutable state the orchestrator serializes
// access to: the context windows, the dedup table and cooldowns, and the
// idempotency LRU. It is driven exclusively by a single goroutine.
type Pipeline struct {
	cfg      Config
	windows  *contextwindow.Store
	detector *detect.Detector
	verifier domain.Verifier
	dedup    *dedup.Cache
	seen     *idempotency.Cache
	bcast    *broadcast.Broadcaster
	log      zerolog.Logger
}

// New wires the pipeline's collaborators.
func New(
	cfg Config,
	windows *contextwindow.Store,
	detector *detect.Detector,
	verifier domain.Verifier,
	dedupCache *dedup.Cache,
	seen *idempotency.Cache,
	bcast *broadcast.Broadcaster,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		windows:  windows,
		detector: detector,
		verifier: verifier,
		dedup:    dedupCache,
		seen:     seen,
		bcast:    bcast,
		log:      log.With().Str("component", "pipeline").Logger(),
	}
}

// Process runs one IncomingMessage through the full C5 -> C9 chain. now is
// passed explicitly so replay can drive a synthetic clock (§5, §8 P7).
func (p *Pipeline) Process(ctx context.Context, msg domain.IncomingMessage, now time.Time) {
	if p.seen.Seen(msg.Channel, msg.MessageID) {
		return
	}

	metrics.IncMessageProcessed(msg.Channel)
	metrics.SetContextWindowSize(msg.Channel, p.windows.Len(msg.Channel))

	det := p.detector.Detect(msg.Channel, msg.Text, now)

	if det.IsAllClear {
		p.dedup.Reset()
		p.windows.Clear()
		p.forward(ctx, det, msg, now)
		return
	}

	if !det.HasKind {
		metrics.IncAlertSkipped("no_threat")
		return
	}

	if det.Proximity == domain.ProximityNone && !det.Nationwide && !p.cfg.ForwardAllThreats {
		metrics.IncAlertSkipped("location")
		return
	}

	if p.verifier != nil {
		start := time.Now()
		verified := p.verifier.Verify(ctx, msg.Text, det.Kinds, det.Proximity, det.Nationwide)
		metrics.LLMVerifyDuration.Observe(time.Since(start).Seconds())
		if len(verified) == 0 {
			metrics.IncAlertSkipped("llm_suppressed")
			return
		}
		det.Kinds = verified
		det.Primary = detect.PrimaryOf(verified)
		det.HasKind = true
	}

	outcome := p.dedup.Admit(msg.Channel, det, now)
	metrics.SetDedupTableSize(p.dedup.Size())
	if !outcome.Forward {
		metrics.IncAlertSkipped(outcome.Reason)
		return
	}

	p.forward(ctx, det, msg, now)
}

func (p *Pipeline) forward(ctx context.Context, det detect.Detection, msg domain.IncomingMessage, now time.Time) {
	text := format.Alert(det.Kinds, det.Proximity, det.Nationwide, msg.Channel, msg.Text, det.Urgent)
	metrics.IncAlertForwarded(string(det.Primary))
	p.log.Info().Str("channel", msg.Channel).Str("kind", string(det.Primary)).Msg("forwarding alert")
	p.bcast.Send(ctx, text)
}
