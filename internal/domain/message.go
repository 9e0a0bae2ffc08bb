package domain

import "time"

// IncomingMessage is the wire shape produced by the upstream chat-client
// collaborator (or replayed from a dump) and consumed by the orchestrator.
type IncomingMessage struct {
	Channel   string `json:"channel"`
	MessageID uint64 `json:"id"`
	Timestamp int64  `json:"ts"`
	Text      string `json:"text"`
}

// ContextMessage records what was independently observed about one message,
// kept in a per-channel sliding window so later messages can borrow its
// threat/location when they are themselves fragments.
type ContextMessage struct {
	Timestamp time.Time
	TextLower string
	Kinds     []ThreatKind
	Primary   ThreatKind
	HasKind   bool
	Proximity Proximity
	Nationwide bool
}

// DedupEntry is the last-forwarded state for one ThreatKind.
type DedupEntry struct {
	Proximity  Proximity
	Timestamp  time.Time
	Nationwide bool
	Kinds      map[ThreatKind]struct{}
}

// ChannelCooldown gates rapid re-alerts from a single source channel.
type ChannelCooldown struct {
	LastUrgent         time.Time
	LastNegativeStatus time.Time
}

// UserGeography is three immutable sets of lowercased name stems.
type UserGeography struct {
	Oblast   []string
	City     []string
	District []string
}
