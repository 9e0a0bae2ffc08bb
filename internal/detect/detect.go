// Package detect implements the context-aware detector (C5): the five-step
// inference pipeline that combines the classifier, the proximity resolver,
// and the per-channel context window into one detection per message.
package detect

import (
	"strings"
	"time"

	"tg-alert-filter/internal/catalogue"
	"tg-alert-filter/internal/classify"
	"tg-alert-filter/internal/context"
	"tg-alert-filter/internal/domain"
	"tg-alert-filter/internal/geo"
)

// Detection is the resolved outcome of one message after context inference.
type Detection struct {
	Kinds          []domain.ThreatKind
	Primary        domain.ThreatKind
	HasKind        bool
	Proximity      domain.Proximity
	Nationwide     bool
	Urgent         bool
	NegativeStatus bool
	IsAllClear     bool
}

// Detector wires C2 (classify) + C3 (geo) + C4 (context.Store).
type Detector struct {
	geography domain.UserGeography
	windows   *context.Store
}

// New builds a Detector over the given geography and context store.
func New(geography domain.UserGeography, windows *context.Store) *Detector {
	return &Detector{geography: geography, windows: windows}
}

// Detect runs the five-step algorithm from SPEC_FULL.md §4.5 and always
// seeds the channel's context window as a side effect, regardless of the
// final decision — context stores observed facts, never inferred ones.
func (d *Detector) Detect(channel, text string, now time.Time) Detection {
	textLower := strings.ToLower(text)

	cls := classify.Classify(textLower)
	proximity0, nationwide0 := geo.Resolve(textLower, d.geography)
	urgent := catalogue.IsUrgent(textLower)
	negativeStatus := catalogue.IsNegativeStatus(textLower)

	// Step 2: AllClear short-circuit.
	if cls.HasKind && cls.Primary == domain.ThreatAllClear {
		d.windows.Record(channel, observedContextMessage(textLower, cls, domain.ProximityNone, false, now), now)
		return Detection{
			Kinds:      []domain.ThreatKind{domain.ThreatAllClear},
			Primary:    domain.ThreatAllClear,
			HasKind:    true,
			Proximity:  domain.ProximityNone,
			IsAllClear: true,
		}
	}

	kinds := cls.Kinds
	hasKind := cls.HasKind

	// Step 3: threat inference from context, in order, stop at first success.
	if !hasKind {
		if k, ok := d.windows.InferThreatFromTriggers(channel, textLower); ok {
			kinds, hasKind = []domain.ThreatKind{k}, true
		} else if proximity0 != domain.ProximityNone {
			if k, ok := d.windows.InferRecentThreat(channel); ok {
				kinds, hasKind = []domain.ThreatKind{k}, true
			}
		} else if urgent {
			if k, ok := d.windows.InferRecentThreat(channel); ok {
				kinds, hasKind = []domain.ThreatKind{k}, true
			}
		}
	}

	// Step 4: location inference.
	proximity := proximity0
	nationwide := nationwide0
	if proximity0 == domain.ProximityNone && !nationwide0 && (hasKind || urgent) {
		if p, nw, ok := d.windows.InferLocation(channel); ok {
			proximity, nationwide = p, nw
		}
	}

	// Step 5: always seed context with the observed (not inferred) facts.
	d.windows.Record(channel, observedContextMessage(textLower, cls, proximity0, nationwide0, now), now)

	finalPrimary := PrimaryOf(kinds)

	return Detection{
		Kinds:          kinds,
		Primary:        finalPrimary,
		HasKind:        hasKind,
		Proximity:      proximity,
		Nationwide:     nationwide,
		Urgent:         urgent,
		NegativeStatus: negativeStatus,
	}
}

func observedContextMessage(textLower string, cls classify.Result, proximity domain.Proximity, nationwide bool, now time.Time) domain.ContextMessage {
	return domain.ContextMessage{
		Timestamp:  now,
		TextLower:  textLower,
		Kinds:      cls.Kinds,
		Primary:    cls.Primary,
		HasKind:    cls.HasKind,
		Proximity:  proximity,
		Nationwide: nationwide,
	}
}

// PrimaryOf picks the catalogue-order tie-break winner among kinds. Used
// both internally and by the pipeline after LLM verification narrows a
// detection's kind set.
func PrimaryOf(kinds []domain.ThreatKind) domain.ThreatKind {
	if len(kinds) == 0 {
		return ""
	}
	if len(kinds) == 1 {
		return kinds[0]
	}
	present := make(map[domain.ThreatKind]struct{}, len(kinds))
	for _, k := range kinds {
		present[k] = struct{}{}
	}
	for _, e := range catalogue.Threats {
		if _, ok := present[e.Kind]; ok {
			return e.Kind
		}
	}
	return kinds[0]
}
