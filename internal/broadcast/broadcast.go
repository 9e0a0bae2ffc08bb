// Package broadcast implements the subscriber fan-out (C9): submitting one
// formatted alert to every subscriber concurrently, tolerating individual
// delivery failures and removing recipients reported as permanently gone.
package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"tg-alert-filter/internal/adapters/telegram"
	"tg-alert-filter/internal/domain"
	"tg-alert-filter/internal/infra/metrics"
)

// ErrRecipientGone is wrapped by a Sender to signal that a recipient has
// permanently blocked delivery (blocked the bot, left the chat) and should
// be removed from the subscriber store.
var ErrRecipientGone = errors.New("broadcast: recipient unreachable")

// Broadcaster fans a formatted alert out to the current subscriber set.
type Broadcaster struct {
	store  domain.SubscriberStore
	sender domain.Sender
	log    zerolog.Logger
}

// New builds a Broadcaster over a subscriber store and a send capability.
func New(store domain.SubscriberStore, sender domain.Sender, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{store: store, sender: sender, log: log.With().Str("component", "broadcast").Logger()}
}

// Send delivers text to every current subscriber concurrently. Per-recipient
// failures are logged and never abort the broadcast; a recipient reported
// via ErrRecipientGone is removed from the store.
func (b *Broadcaster) Send(ctx context.Context, text string) {
	recipients, err := b.store.Subscribers(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to list subscribers")
		return
	}
	if len(recipients) == 0 {
		b.log.Info().Msg("broadcast skipped, no subscribers")
		return
	}

	chunks := telegram.SplitMessage(text)
	if len(chunks) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, recipientID := range recipients {
		wg.Add(1)
		go func(recipientID int64) {
			defer wg.Done()
			b.deliver(ctx, recipientID, chunks)
		}(recipientID)
	}
	wg.Wait()
}

func (b *Broadcaster) deliver(ctx context.Context, recipientID int64, chunks []string) {
	for _, chunk := range chunks {
		if err := b.sender.Send(ctx, recipientID, chunk); err != nil {
			outcome := "error"
			if errors.Is(err, ErrRecipientGone) {
				outcome = "gone"
				if rmErr := b.store.Remove(ctx, recipientID); rmErr != nil {
					b.log.Warn().Err(rmErr).Int64("recipient", recipientID).Msg("failed to remove unreachable subscriber")
				} else {
					b.log.Info().Int64("recipient", recipientID).Msg("removed unreachable subscriber")
				}
			}
			metrics.IncBroadcastSend(outcome)
			b.log.Warn().Err(err).Int64("recipient", recipientID).Msg("delivery failed")
			return
		}
		metrics.IncBroadcastSend("ok")
	}
}
