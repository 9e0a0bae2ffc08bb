package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-alert-filter/internal/domain"
)

// RedisQueue implements the inbound message queue (A4) on Redis lists.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue bound to the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Enqueue публикует сообщение в очередь.
func (q *RedisQueue) Enqueue(ctx context.Context, msg domain.IncomingMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	return nil
}

// Pop блокирующе читает сообщение из очереди.
func (q *RedisQueue) Pop(ctx context.Context) (domain.IncomingMessage, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.IncomingMessage{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.IncomingMessage{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.IncomingMessage{}, err
		}
		if len(res) != 2 {
			return domain.IncomingMessage{}, errors.New("redis queue: unexpected response")
		}
		var msg domain.IncomingMessage
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return domain.IncomingMessage{}, fmt.Errorf("decode message: %w", err)
		}
		return msg, nil
	}
}
