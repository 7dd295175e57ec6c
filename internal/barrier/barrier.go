// Package barrier runs a completion callback exactly once, after a known
// number of jobs have each reported a terminal state.
package barrier

import (
	"sync"
	"sync/atomic"
)

// Barrier counts outstanding jobs. Arrival order does not matter.
type Barrier struct {
	outstanding atomic.Int64
	once        sync.Once
	onComplete  func()
	done        chan struct{}
}

// New returns a Barrier waiting for n arrivals. onComplete may be nil.
// With n <= 0 the callback runs immediately.
func New(n int, onComplete func()) *Barrier {
	b := &Barrier{
		onComplete: onComplete,
		done:       make(chan struct{}),
	}
	b.outstanding.Store(int64(n))
	if n <= 0 {
		b.fire()
	}
	return b
}

// Done records one arrival. The arrival that brings the count to zero runs
// the callback; arrivals past zero are ignored.
func (b *Barrier) Done() {
	if b.outstanding.Add(-1) == 0 {
		b.fire()
	}
}

// Wait returns a channel closed after the callback has returned.
func (b *Barrier) Wait() <-chan struct{} {
	return b.done
}

func (b *Barrier) fire() {
	b.once.Do(func() {
		defer close(b.done)
		if b.onComplete != nil {
			b.onComplete()
		}
	})
}
