// Package botgateway implements the bot gateway (A6): a long-poll command
// surface (/start, /subscribe, /unsubscribe) against telegram-bot-api/v5,
// backed by the subscriber store, plus C9's Sender capability. Grounded on
// original_source/src/bot.rs's polling loop shape and the teacher's
// internal/adapters/bot/handler.go command-dispatch style.
package botgateway

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-alert-filter/internal/broadcast"
	"tg-alert-filter/internal/domain"
)

const welcomeText = "👋 Вітаю!\n" +
	"/subscribe — підписатися на сповіщення про загрози\n" +
	"/unsubscribe — відписатися від сповіщень"

// Gateway owns the bot API handle and dispatches incoming commands against
// a subscriber store.
type Gateway struct {
	api   *tgbotapi.BotAPI
	store domain.SubscriberStore
	log   zerolog.Logger
}

// New builds a Gateway around an already-authenticated bot API client.
func New(api *tgbotapi.BotAPI, store domain.SubscriberStore, log zerolog.Logger) *Gateway {
	return &Gateway{api: api, store: store, log: log.With().Str("component", "botgateway").Logger()}
}

// Send implements domain.Sender / C9's delivery capability. Telegram's
// "forbidden" and "chat not found" errors are classified as terminal
// (ErrRecipientGone), anything else as transient.
func (g *Gateway) Send(ctx context.Context, recipientID int64, text string) error {
	msg := tgbotapi.NewMessage(recipientID, text)
	msg.DisableWebPagePreview = true
	_, err := g.api.Send(msg)
	if err == nil {
		return nil
	}
	if isTerminalSendError(err) {
		return broadcast.ErrRecipientGone
	}
	return err
}

func isTerminalSendError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "forbidden") || strings.Contains(msg, "chat not found") || strings.Contains(msg, "bot was blocked")
}

// Run drives the Bot API's long-poll getUpdates loop until ctx is
// cancelled, mirroring original_source/src/bot.rs's run_bot_polling shape.
func (g *Gateway) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30

	updates := g.api.GetUpdatesChan(updateConfig)
	defer g.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errors.New("botgateway: updates channel closed")
			}
			g.handleUpdate(ctx, update)
		}
	}
}

func (g *Gateway) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	cmd := strings.TrimSpace(strings.SplitN(update.Message.Text, "@", 2)[0])

	switch cmd {
	case "/start":
		g.reply(chatID, welcomeText)
	case "/subscribe":
		if err := g.store.Add(ctx, chatID); err != nil {
			g.log.Warn().Err(err).Int64("chat_id", chatID).Msg("subscribe failed")
			g.reply(chatID, "⚠️ Не вдалося оформити підписку, спробуйте пізніше.")
			return
		}
		g.reply(chatID, "✅ Підписано! Ви отримуватимете сповіщення про загрози.")
	case "/unsubscribe":
		if err := g.store.Remove(ctx, chatID); err != nil {
			g.log.Warn().Err(err).Int64("chat_id", chatID).Msg("unsubscribe failed")
			g.reply(chatID, "⚠️ Не вдалося скасувати підписку, спробуйте пізніше.")
			return
		}
		g.reply(chatID, "🛑 Відписано. Сповіщення більше не надходитимуть.")
	}
}

func (g *Gateway) reply(chatID int64, text string) {
	if _, err := g.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		g.log.Warn().Err(err).Int64("chat_id", chatID).Msg("reply failed")
	}
}
