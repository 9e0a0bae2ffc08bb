package mtproto

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tg-alert-filter/internal/domain"
)

// Collector wraps a gotd client for the configured alert channels, with a
// global token-bucket limiter (MTPROTO_GLOBAL_RPS). It reads no messages
// and publishes no domain.IncomingMessage (see Run).
type Collector struct {
	client   *telegram.Client
	channels []string
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// NewCollector создаёт MTProto клиент на базе токенов.
func NewCollector(apiID int, apiHash string, session auth.SessionStorage, channels []string, globalRPS int, log zerolog.Logger) (*Collector, error) {
	if globalRPS <= 0 {
		globalRPS = 5
	}
	client := telegram.NewClient(apiID, apiHash, telegram.Options{SessionStorage: session})
	return &Collector{
		client:   client,
		channels: channels,
		limiter:  rate.NewLimiter(rate.Limit(globalRPS), globalRPS),
		log:      log,
	}, nil
}

// Run starts the gotd client, waits on the limiter and logs each configured
// channel, then blocks until ctx is cancelled. It resolves no channels,
// reads no updates and never calls publish; session setup is out of scope
// (see §1).
func (c *Collector) Run(ctx context.Context, publish func(domain.IncomingMessage) error) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		for _, channel := range c.channels {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			c.log.Debug().Str("channel", channel).Msg("mtproto: resolving channel (stub)")
			// TODO: channels.GetHistory / updates.GetState wiring.
		}
		<-ctx.Done()
		return ctx.Err()
	})
}

// Resolver — заглушка: к MTProto не обращается.
type Resolver struct {
	log zerolog.Logger
}

// NewResolver создаёт резолвер публичных каналов.
func NewResolver(log zerolog.Logger) *Resolver {
	return &Resolver{log: log}
}

// ResolvedChannel описывает публичный канал, найденный по имени пользователя.
type ResolvedChannel struct {
	Username string
	Title    string
}

// ResolvePublic возвращает имя без «@» и заголовок вида t.me/<имя>, не
// проверяя канал через MTProto.
func (r *Resolver) ResolvePublic(ctx context.Context, username string) (ResolvedChannel, error) {
	username = strings.TrimPrefix(username, "@")
	r.log.Debug().Str("username", username).Msg("mtproto: resolve public channel (stub)")
	return ResolvedChannel{Username: username, Title: fmt.Sprintf("t.me/%s", username)}, nil
}

// SessionInMemory хранит сессию в памяти; реальная персистентность сессии
// выходит за рамки спецификации (см. §1).
type SessionInMemory struct {
	data []byte
}

// LoadSession загружает сессию.
func (s *SessionInMemory) LoadSession(ctx context.Context) ([]byte, error) {
	return s.data, nil
}

// StoreSession сохраняет сессию.
func (s *SessionInMemory) StoreSession(ctx context.Context, data []byte) error {
	s.data = data
	return nil
}

var _ auth.SessionStorage = (*SessionInMemory)(nil)

// DummyAuth реализует авторизацию бота без интерактивного 2FA (out of scope).
type DummyAuth struct{}

// SignIn реализация заглушки.
func (DummyAuth) SignIn(ctx context.Context, client *telegram.Client) error {
	return nil
}

// SignUp не используется.
func (DummyAuth) SignUp(ctx context.Context, client *telegram.Client) error {
	return nil
}

// Password не используется.
func (DummyAuth) Password(ctx context.Context, client *telegram.Client) (*tg.AuthPasswordResult, error) {
	return nil, nil
}
