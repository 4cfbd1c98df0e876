package helpers

import (
	"sync"
	"time"
)

// Limited exponential backoff for retry delays.
// First Failure() returns Min, each next is multiplied by K up to Max.
// Success() resets.
type Backoff struct {
	mu   sync.Mutex
	next time.Duration

	Min time.Duration
	Max time.Duration
	K   float32
}

// Use scenario:
//
//	for !send() {
//	  time.Sleep(backoff.Failure())
//	}
//
// backoff.Success()
func (b *Backoff) Failure() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.next == 0 {
		b.next = b.Min
	}
	delay := b.limit(b.next)
	b.next = b.limit(time.Duration(float32(b.next) * b.k()))
	return delay
}

func (b *Backoff) Success() {
	b.mu.Lock()
	b.next = 0
	b.mu.Unlock()
}

func (b *Backoff) k() float32 {
	if b.K < 1 {
		return 1
	}
	return b.K
}

func (b *Backoff) limit(d time.Duration) time.Duration {
	if d < b.Min {
		d = b.Min
	}
	if b.Max != 0 && d > b.Max {
		d = b.Max
	}
	return d
}
