package barrier

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBarrierFiresOnceAfterAllArrivals(t *testing.T) {
	for _, n := range []int{1, 2, 7, 64} {
		var fired atomic.Int32
		var arrived atomic.Int32
		var arrivedAtFire int32

		b := New(n, func() {
			fired.Add(1)
			arrivedAtFire = arrived.Load()
		})

		order := rand.Perm(n)
		var wg sync.WaitGroup
		for _, i := range order {
			wg.Add(1)
			go func(delay int) {
				defer wg.Done()
				time.Sleep(time.Duration(delay) * 100 * time.Microsecond)
				arrived.Add(1)
				b.Done()
			}(i)
		}
		wg.Wait()

		select {
		case <-b.Wait():
		case <-time.After(time.Second):
			t.Fatalf("n=%d: barrier never completed", n)
		}

		if got := fired.Load(); got != 1 {
			t.Errorf("n=%d: fired %d times, want 1", n, got)
		}
		if arrivedAtFire != int32(n) {
			t.Errorf("n=%d: fired after %d arrivals, want %d", n, arrivedAtFire, n)
		}
	}
}

func TestBarrierNotFiredEarly(t *testing.T) {
	var fired atomic.Int32
	b := New(3, func() { fired.Add(1) })

	b.Done()
	b.Done()
	select {
	case <-b.Wait():
		t.Fatal("barrier completed before the last arrival")
	default:
	}
	if fired.Load() != 0 {
		t.Fatal("callback ran early")
	}

	b.Done()
	<-b.Wait()
	b.Done()
	if fired.Load() != 1 {
		t.Errorf("fired %d times, want 1", fired.Load())
	}
}

func TestBarrierZero(t *testing.T) {
	var fired atomic.Int32
	b := New(0, func() { fired.Add(1) })
	<-b.Wait()
	if fired.Load() != 1 {
		t.Errorf("fired %d times, want 1", fired.Load())
	}
}

func TestBarrierNilCallback(t *testing.T) {
	b := New(1, nil)
	b.Done()
	<-b.Wait()
}
