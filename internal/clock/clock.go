// Package clock wraps periodic ticking so that timers can be faked in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is a source of the current time and of periodic tick subscriptions.
type Clock interface {
	Now() time.Time
	Subscribe(interval time.Duration) *Subscription
}

// Subscription is a cancelable tick handle. Ticks are best-effort: a slow
// consumer misses ticks rather than queueing them.
type Subscription struct {
	c    chan time.Time
	done chan struct{}
	once sync.Once
	stop func()
}

func newSubscription(stop func()) *Subscription {
	return &Subscription{
		c:    make(chan time.Time, 1),
		done: make(chan struct{}),
		stop: stop,
	}
}

// C returns the channel ticks are delivered on.
func (s *Subscription) C() <-chan time.Time { return s.c }

// Done is closed once Stop has been called.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Stop cancels the subscription. It is safe to call more than once.
// After Stop returns, Done is closed and no further ticks are delivered.
func (s *Subscription) Stop() {
	s.once.Do(func() {
		close(s.done)
		if s.stop != nil {
			s.stop()
		}
	})
}

// Stopped reports whether Stop has been called.
func (s *Subscription) Stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// deliver performs a non-blocking send, dropping the tick if the consumer
// has not drained the previous one.
func (s *Subscription) deliver(t time.Time) {
	if s.Stopped() {
		return
	}
	select {
	case s.c <- t:
	default:
	}
}

// Wait blocks until the next tick or until the subscription is stopped.
// ok is false when the subscription was stopped.
func (s *Subscription) Wait() (t time.Time, ok bool) {
	select {
	case <-s.done:
		return time.Time{}, false
	case t := <-s.c:
		if s.Stopped() {
			return time.Time{}, false
		}
		return t, true
	}
}

type realClock struct{}

// Real returns a Clock backed by time.Ticker.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Subscribe(interval time.Duration) *Subscription {
	ticker := time.NewTicker(interval)
	quit := make(chan struct{})
	sub := newSubscription(func() {
		ticker.Stop()
		close(quit)
	})
	go func() {
		for {
			select {
			case <-quit:
				return
			case t := <-ticker.C:
				sub.deliver(t)
			}
		}
	}()
	return sub
}
