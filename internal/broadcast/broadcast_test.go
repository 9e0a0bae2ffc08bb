package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeStore struct {
	mu  sync.Mutex
	ids []int64
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

func (f *fakeStore) has(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.ids {
		if x == id {
			return true
		}
	}
	return false
}

type fakeSender struct {
	mu       sync.Mutex
	delivered map[int64][]string
	fail      map[int64]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{delivered: make(map[int64][]string), fail: make(map[int64]error)}
}

func (f *fakeSender) Send(ctx context.Context, recipientID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[recipientID]; ok {
		return err
	}
	f.delivered[recipientID] = append(f.delivered[recipientID], text)
	return nil
}

func (f *fakeSender) countFor(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered[id])
}

func TestSendDeliversToEverySubscriber(t *testing.T) {
	store := &fakeStore{ids: []int64{1, 2, 3}}
	sender := newFakeSender()
	b := New(store, sender, zerolog.Nop())

	b.Send(context.Background(), "alert text")

	for _, id := range []int64{1, 2, 3} {
		if sender.countFor(id) != 1 {
			t.Fatalf("expected recipient %d to receive one message, got %d", id, sender.countFor(id))
		}
	}
}

func TestSendSkipsWhenNoSubscribers(t *testing.T) {
	store := &fakeStore{}
	sender := newFakeSender()
	b := New(store, sender, zerolog.Nop())

	b.Send(context.Background(), "alert text")

	if len(sender.delivered) != 0 {
		t.Fatalf("expected no delivery attempts with zero subscribers")
	}
}

func TestSendRemovesRecipientOnErrRecipientGone(t *testing.T) {
	store := &fakeStore{ids: []int64{1, 2}}
	sender := newFakeSender()
	sender.fail[1] = ErrRecipientGone
	b := New(store, sender, zerolog.Nop())

	b.Send(context.Background(), "alert text")

	if store.has(1) {
		t.Fatalf("expected recipient 1 to be removed after ErrRecipientGone")
	}
	if !store.has(2) {
		t.Fatalf("recipient 2 must remain subscribed")
	}
	if sender.countFor(2) != 1 {
		t.Fatalf("expected recipient 2 to still receive the message")
	}
}

func TestSendTransientErrorDoesNotRemoveRecipient(t *testing.T) {
	store := &fakeStore{ids: []int64{1}}
	sender := newFakeSender()
	sender.fail[1] = errors.New("temporary network hiccup")
	b := New(store, sender, zerolog.Nop())

	b.Send(context.Background(), "alert text")

	if !store.has(1) {
		t.Fatalf("expected recipient to remain subscribed after a transient error")
	}
}
