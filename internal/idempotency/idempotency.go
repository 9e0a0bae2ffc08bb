// Package idempotency implements the per-channel message-ID LRU used by the
// orchestrator to absorb upstream retries before any C2-C9 step runs. It is
// deliberately built on the standard library only: no LRU library appears
// anywhere in the example corpus (see DESIGN.md).
package idempotency

import "container/list"

const defaultCapacity = 256

// Cache is a bounded LRU of recently-seen messageIDs, kept separately per
// channel so a busy channel can never evict another channel's entries.
type Cache struct {
	capacity int
	channels map[string]*channelLRU
}

type channelLRU struct {
	byID  map[uint64]*list.Element
	order *list.List // front = most recently seen
}

// New builds a Cache where each channel gets its own bounded LRU of the
// given capacity. A capacity of 0 uses the default of 256.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Cache{
		capacity: capacity,
		channels: make(map[string]*channelLRU),
	}
}

// Seen reports whether (channel, id) was already recorded, and records it
// if not. A true result means the caller should no-op: this is not a Skip
// decision, it never touches metrics or dedup state.
func (c *Cache) Seen(channel string, id uint64) bool {
	lru, ok := c.channels[channel]
	if !ok {
		lru = &channelLRU{byID: make(map[uint64]*list.Element), order: list.New()}
		c.channels[channel] = lru
	}

	if elem, ok := lru.byID[id]; ok {
		lru.order.MoveToFront(elem)
		return true
	}

	elem := lru.order.PushFront(id)
	lru.byID[id] = elem

	if lru.order.Len() > c.capacity {
		oldest := lru.order.Back()
		if oldest != nil {
			lru.order.Remove(oldest)
			delete(lru.byID, oldest.Value.(uint64))
		}
	}
	return false
}
