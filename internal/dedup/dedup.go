// Package dedup implements the deduplicator (C6): a global keyed store of
// the last-forwarded proximity/timestamp per ThreatKind, plus per-channel
// urgency and negative-status cooldowns, deciding whether a detection is
// worth forwarding or is a repeat of something already sent.
package dedup

import (
	"time"

	"tg-alert-filter/internal/detect"
	"tg-alert-filter/internal/domain"
)

// Outcome is the decision the deduplicator makes for one detection.
type Outcome struct {
	Forward bool
	Reason  string // set when Forward is false, for alerts_skipped_total{reason}
}

const (
	reasonNoThreat         = "no_threat"
	reasonDedup            = "dedup"
	reasonUrgentCooldown   = "urgent_cooldown"
	reasonNegativeCooldown = "negative_cooldown"
)

// Cache owns the global dedup table and the per-channel cooldowns. Like
// context.Store, it is mutated exclusively by the orchestrator's
// single-writer loop — no internal locking.
type Cache struct {
	urgentCooldown   time.Duration
	negativeCooldown time.Duration
	dedupWindow      time.Duration

	table     map[domain.ThreatKind]domain.DedupEntry
	cooldowns map[string]domain.ChannelCooldown
}

// NewCache builds a Cache with the given cooldown and dedup-window durations.
func NewCache(urgentCooldown, negativeCooldown, dedupWindow time.Duration) *Cache {
	return &Cache{
		urgentCooldown:   urgentCooldown,
		negativeCooldown: negativeCooldown,
		dedupWindow:      dedupWindow,
		table:            make(map[domain.ThreatKind]domain.DedupEntry),
		cooldowns:        make(map[string]domain.ChannelCooldown),
	}
}

// Admit runs steps 4-6 of the deduplicator: callers are expected to have
// already handled AllClear (step 1, via Reset) and the location gate
// (step 3) before calling this for a has-threat detection.
func (c *Cache) Admit(channel string, det detect.Detection, now time.Time) Outcome {
	if !det.HasKind {
		return Outcome{Forward: false, Reason: reasonNoThreat}
	}

	if det.NegativeStatus {
		cd := c.cooldowns[channel]
		if !cd.LastNegativeStatus.IsZero() && now.Sub(cd.LastNegativeStatus) < c.negativeCooldown {
			return Outcome{Forward: false, Reason: reasonNegativeCooldown}
		}
		cd.LastNegativeStatus = now
		c.cooldowns[channel] = cd
		return Outcome{Forward: true}
	}

	if det.Urgent {
		cd := c.cooldowns[channel]
		if !cd.LastUrgent.IsZero() && now.Sub(cd.LastUrgent) < c.urgentCooldown {
			return Outcome{Forward: false, Reason: reasonUrgentCooldown}
		}
		if prev, seen := c.table[det.Primary]; seen && now.Sub(prev.Timestamp) < c.dedupWindow && det.Proximity <= prev.Proximity {
			return Outcome{Forward: false, Reason: reasonDedup}
		}
		cd.LastUrgent = now
		c.cooldowns[channel] = cd
		c.upsert(det, now)
		return Outcome{Forward: true}
	}

	prev, seen := c.table[det.Primary]
	fresh := seen && now.Sub(prev.Timestamp) <= c.dedupWindow
	if !fresh {
		c.upsert(det, now)
		return Outcome{Forward: true}
	}

	upgrade := det.Proximity > prev.Proximity ||
		(det.Nationwide && !prev.Nationwide) ||
		isNewCombination(det.Kinds, prev.Kinds)

	if !upgrade {
		return Outcome{Forward: false, Reason: reasonDedup}
	}
	c.upsert(det, now)
	return Outcome{Forward: true}
}

// Reset clears the entire dedup table on an AllClear (step 1).
func (c *Cache) Reset() {
	c.table = make(map[domain.ThreatKind]domain.DedupEntry)
}

func (c *Cache) upsert(det detect.Detection, now time.Time) {
	kinds := make(map[domain.ThreatKind]struct{}, len(det.Kinds))
	for _, k := range det.Kinds {
		kinds[k] = struct{}{}
	}
	c.table[det.Primary] = domain.DedupEntry{
		Proximity:  det.Proximity,
		Timestamp:  now,
		Nationwide: det.Nationwide,
		Kinds:      kinds,
	}
}

// isNewCombination reports whether kinds is a strict superset of prev.
func isNewCombination(kinds []domain.ThreatKind, prev map[domain.ThreatKind]struct{}) bool {
	current := make(map[domain.ThreatKind]struct{}, len(kinds))
	for _, k := range kinds {
		current[k] = struct{}{}
	}
	for k := range prev {
		if _, ok := current[k]; !ok {
			return false
		}
	}
	return len(current) > len(prev)
}

// Size reports the number of distinct threat kinds currently cached, for
// the dedup_table_size metric.
func (c *Cache) Size() int {
	return len(c.table)
}

// EntrySnapshot is a read-only view of one dedup table row, for the
// operator-facing /debug/dedup route. It never exposes the mutable maps
// themselves.
type EntrySnapshot struct {
	ThreatKind domain.ThreatKind `json:"threat_kind"`
	Proximity  string            `json:"proximity"`
	Nationwide bool              `json:"nationwide"`
	Timestamp  time.Time         `json:"timestamp"`
}

// CooldownSnapshot is a read-only view of one channel's cooldown state.
type CooldownSnapshot struct {
	Channel            string    `json:"channel"`
	LastUrgent         time.Time `json:"last_urgent,omitzero"`
	LastNegativeStatus time.Time `json:"last_negative_status,omitzero"`
}

// Snapshot is the JSON shape cmd/engine pushes to Redis and cmd/api reads
// back for the /debug/dedup route, since the two run as separate processes.
type Snapshot struct {
	Entries   []EntrySnapshot    `json:"entries"`
	Cooldowns []CooldownSnapshot `json:"cooldowns"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Snapshot copies out the current dedup table and cooldowns for read-only
// inspection. It never mutates Cache state.
func (c *Cache) Snapshot() ([]EntrySnapshot, []CooldownSnapshot) {
	entries := make([]EntrySnapshot, 0, len(c.table))
	for kind, e := range c.table {
		entries = append(entries, EntrySnapshot{ThreatKind: kind, Proximity: e.Proximity.String(), Nationwide: e.Nationwide, Timestamp: e.Timestamp})
	}
	cooldowns := make([]CooldownSnapshot, 0, len(c.cooldowns))
	for channel, cd := range c.cooldowns {
		cooldowns = append(cooldowns, CooldownSnapshot{Channel: channel, LastUrgent: cd.LastUrgent, LastNegativeStatus: cd.LastNegativeStatus})
	}
	return entries, cooldowns
}
