package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Clock.
type Fake struct {
	mu   sync.Mutex
	now  time.Time
	subs []*fakeSub
}

type fakeSub struct {
	sub      *Subscription
	interval time.Duration
	next     time.Time
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Subscribe(interval time.Duration) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs := &fakeSub{interval: interval, next: f.now.Add(interval)}
	fs.sub = newSubscription(nil)
	f.subs = append(f.subs, fs)
	return fs.sub
}

// Advance moves the clock forward by d and delivers due ticks. Ticks that
// the consumer has not drained are dropped.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	live := f.subs[:0]
	var due []*Subscription
	for _, fs := range f.subs {
		if fs.sub.Stopped() {
			continue
		}
		live = append(live, fs)
		for !fs.next.After(now) {
			due = append(due, fs.sub)
			fs.next = fs.next.Add(fs.interval)
		}
	}
	f.subs = live
	f.mu.Unlock()

	for _, s := range due {
		s.deliver(now)
	}
}

// Subscribers returns the number of subscriptions that have not been stopped.
func (f *Fake) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, fs := range f.subs {
		if !fs.sub.Stopped() {
			n++
		}
	}
	return n
}
