// dedupe.go implements the bounded signature cache that suppresses
// duplicate event bursts.

package flare

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultDedupeWindow is how long repeats of an accepted signature are
	// suppressed.
	DefaultDedupeWindow = 5 * time.Second

	// DefaultCacheCapacity bounds the number of tracked signatures.
	DefaultCacheCapacity = 500

	// pruneFactor scales the dedupe window into the age horizon beyond
	// which entries are discarded regardless of capacity.
	pruneFactor = 6
)

// dedupeEntry pairs a signature with the wall-clock time it was last
// accepted, in milliseconds.
type dedupeEntry struct {
	signature  string
	lastSentMs int64
}

// dedupeCache is an insertion-ordered map from event signature to last
// acceptance time, bounded by both entry age and entry count. Every
// accepted signature is deleted and reinserted at the back, so insertion
// order doubles as acceptance-recency order and capacity eviction at the
// front removes the least recently accepted signatures.
//
// All methods are safe for concurrent use.
type dedupeCache struct {
	mu       sync.Mutex
	window   time.Duration
	capacity int
	order    *list.List // of *dedupeEntry, oldest acceptance at the front
	index    map[string]*list.Element
}

func newDedupeCache(window time.Duration, capacity int) *dedupeCache {
	return &dedupeCache{
		window:   window,
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// shouldReport decides, in one atomic step, whether an event with the given
// signature may be sent at time now, and records the acceptance when it may.
// Suppressed repeats keep their original timestamp and position, so a hot
// duplicate cannot pin its entry open indefinitely.
func (c *dedupeCache) shouldReport(signature string, now time.Time) bool {
	nowMs := now.UnixMilli()
	windowMs := c.window.Milliseconds()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Age pruning runs unconditionally so the cache stays bounded even
	// under a steady trickle of unique signatures. Entries are ordered by
	// acceptance time, so pruning stops at the first fresh entry.
	horizon := nowMs - pruneFactor*windowMs
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		entry := front.Value.(*dedupeEntry)
		if entry.lastSentMs > horizon {
			break
		}
		c.order.Remove(front)
		delete(c.index, entry.signature)
	}

	if elem, ok := c.index[signature]; ok {
		entry := elem.Value.(*dedupeEntry)
		if nowMs-entry.lastSentMs < windowMs {
			return false
		}
		// Stale entry: delete and re-accept as if new.
		c.order.Remove(elem)
		delete(c.index, signature)
	}

	c.index[signature] = c.order.PushBack(&dedupeEntry{
		signature:  signature,
		lastSentMs: nowMs,
	})

	for c.order.Len() > c.capacity {
		front := c.order.Front()
		delete(c.index, front.Value.(*dedupeEntry).signature)
		c.order.Remove(front)
	}

	return true
}

// size reports the current entry count.
func (c *dedupeCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
