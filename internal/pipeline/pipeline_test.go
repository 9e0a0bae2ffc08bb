package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-alert-filter/internal/broadcast"
	contextwindow "tg-alert-filter/internal/context"
	"tg-alert-filter/internal/dedup"
	"tg-alert-filter/internal/detect"
	"tg-alert-filter/internal/domain"
	"tg-alert-filter/internal/idempotency"
)

type fakeStore struct {
	mu   sync.Mutex
	ids  []int64
}

func (f *fakeStore) Subscribers(ctx context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.ids))
	copy(out, f.ids)
	return out, nil
}

func (f *fakeStore) Add(ctx context.Context, recipientID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, recipientID)
	return nil
}

func (f *fakeStore) Remove(ctx context.Context, recipientID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range f.ids {
		if id == recipientID {
			f.ids = append(f.ids[:i], f.ids[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Send(ctx context.Context, recipientID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestPipeline(cfg Config) (*Pipeline, *fakeSender) {
	geography := domain.UserGeography{City: []string{"київ"}}
	windows := contextwindow.NewStore(300)
	detector := detect.New(geography, windows)
	dedupCache := dedup.NewCache(20*time.Second, 120*time.Second, 180*time.Second)
	seen := idempotency.New(1024)

	store := &fakeStore{ids: []int64{1}}
	sender := &fakeSender{}
	bcast := broadcast.New(store, sender, zerolog.Nop())

	pl := New(cfg, windows, detector, nil, dedupCache, seen, bcast, zerolog.Nop())
	return pl, sender
}

func TestProcessForwardsThreatWithLocation(t *testing.T) {
	pl, sender := newTestPipeline(Config{})
	now := time.Unix(1700000000, 0).UTC()

	pl.Process(context.Background(), domain.IncomingMessage{Channel: "ch", MessageID: 1, Text: "Шахед курсом на Київ"}, now)

	if sender.count() != 1 {
		t.Fatalf("expected one broadcast send, got %d", sender.count())
	}
}

func TestProcessSkipsDuplicateMessageID(t *testing.T) {
	pl, sender := newTestPipeline(Config{})
	now := time.Unix(1700000000, 0).UTC()
	msg := domain.IncomingMessage{Channel: "ch", MessageID: 1, Text: "Шахед курсом на Київ"}

	pl.Process(context.Background(), msg, now)
	pl.Process(context.Background(), msg, now)

	if sender.count() != 1 {
		t.Fatalf("expected idempotency to suppress the repeated message id, got %d sends", sender.count())
	}
}

func TestProcessSkipsThreatWithoutLocationByDefault(t *testing.T) {
	pl, sender := newTestPipeline(Config{})
	now := time.Unix(1700000000, 0).UTC()

	pl.Process(context.Background(), domain.IncomingMessage{Channel: "ch", MessageID: 1, Text: "Шахед в польоті"}, now)

	if sender.count() != 0 {
		t.Fatalf("expected no send without a resolvable location, got %d", sender.count())
	}
}

func TestProcessForwardAllThreatsBypassesLocationGate(t *testing.T) {
	pl, sender := newTestPipeline(Config{ForwardAllThreats: true})
	now := time.Unix(1700000000, 0).UTC()

	pl.Process(context.Background(), domain.IncomingMessage{Channel: "ch", MessageID: 1, Text: "Шахед в польоті"}, now)

	if sender.count() != 1 {
		t.Fatalf("expected ForwardAllThreats to bypass the location gate, got %d sends", sender.count())
	}
}

func TestProcessAllClearResetsDedupAndForwards(t *testing.T) {
	pl, sender := newTestPipeline(Config{})
	now := time.Unix(1700000000, 0).UTC()

	pl.Process(context.Background(), domain.IncomingMessage{Channel: "ch", MessageID: 1, Text: "Шахед курсом на Київ"}, now)
	pl.Process(context.Background(), domain.IncomingMessage{Channel: "ch", MessageID: 2, Text: "Відбій тривоги"}, now.Add(5*time.Second))

	if sender.count() != 2 {
		t.Fatalf("expected both the threat and the all-clear to forward, got %d sends", sender.count())
	}
	if pl.dedup.Size() != 0 {
		t.Fatalf("expected AllClear to reset the dedup table")
	}
}

func TestProcessSkipsRepeatAtSameProximity(t *testing.T) {
	pl, sender := newTestPipeline(Config{})
	now := time.Unix(1700000000, 0).UTC()

	pl.Process(context.Background(), domain.IncomingMessage{Channel: "ch", MessageID: 1, Text: "Шахед курсом на Київ"}, now)
	pl.Process(context.Background(), domain.IncomingMessage{Channel: "ch", MessageID: 2, Text: "Шахед курсом на Київ знову"}, now.Add(5*time.Second))

	if sender.count() != 1 {
		t.Fatalf("expected the dedup table to skip the repeat at the same proximity, got %d sends", sender.count())
	}
}

func TestProcessNoThreatNeverReachesBroadcast(t *testing.T) {
	pl, sender := newTestPipeline(Config{})
	now := time.Unix(1700000000, 0).UTC()

	pl.Process(context.Background(), domain.IncomingMessage{Channel: "ch", MessageID: 1, Text: "Гарного дня всім"}, now)

	if sender.count() != 0 {
		t.Fatalf("expected no send for a message with no threat, got %d", sender.count())
	}
}
