package domain

import "context"

// SubscriberStore is the bot collaborator's persisted subscriber table.
// Core requires only these two read/write operations; writes are owned by
// the bot command surface, reads are a cheap snapshot for the broadcaster.
type SubscriberStore interface {
	Subscribers(ctx context.Context) ([]int64, error)
	Add(ctx context.Context, recipientID int64) error
	Remove(ctx context.Context, recipientID int64) error
}

// Sender delivers one formatted alert to one recipient. ErrRecipientGone
// signals a terminal failure (blocked/deleted) that should prune the
// recipient from the subscriber store; any other error is transient.
type Sender interface {
	Send(ctx context.Context, recipientID int64, text string) error
}

// Verifier is the exchangeable LLM capability of C7: it may only remove
// candidate kinds, never add to them, and must fail open on any error.
type Verifier interface {
	Verify(ctx context.Context, text string, kinds []ThreatKind, proximity Proximity, nationwide bool) []ThreatKind
}

// MessageQueue decouples the upstream collector from the orchestrator's
// single-writer consumer loop (§5).
type MessageQueue interface {
	Enqueue(ctx context.Context, msg IncomingMessage) error
	Pop(ctx context.Context) (IncomingMessage, error)
}

// Collector is the upstream chat-client collaborator, out of scope per §1
// beyond this thin publishing contract.
type Collector interface {
	Run(ctx context.Context, publish func(IncomingMessage) error) error
}
