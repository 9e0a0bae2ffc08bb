// Package subscriberstore implements the subscriber store (A3): a single
// Postgres table (recipient_id PRIMARY KEY, subscribed_at) backing the
// domain.SubscriberStore collaborator. It substitutes the original source's
// embedded SQLite store — no SQLite driver appears anywhere in the example
// corpus, and pgx/pgxpool is the teacher's idiom for all relational access
// (see DESIGN.md).
package subscriberstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists subscriber chat IDs via a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool. Callers run EnsureSchema once at
// startup.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the subscribers table if it does not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS subscribers (
			recipient_id BIGINT PRIMARY KEY,
			subscribed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

// Subscribers returns a snapshot of every currently subscribed recipient.
func (s *Store) Subscribers(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT recipient_id FROM subscribers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Add inserts recipientID, ignoring the row if it is already subscribed.
func (s *Store) Add(ctx context.Context, recipientID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscribers (recipient_id) VALUES ($1)
		ON CONFLICT (recipient_id) DO NOTHING
	`, recipientID)
	return err
}

// Remove deletes recipientID from the subscriber table.
func (s *Store) Remove(ctx context.Context, recipientID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM subscribers WHERE recipient_id = $1`, recipientID)
	return err
}
