// Package connectivity tracks whether the interview service is reachable.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intervai-dev/intervai/internal/clock"
)

// Event is a connectivity transition.
type Event int

const (
	BecameOffline Event = iota
	BecameOnline
)

func (e Event) String() string {
	if e == BecameOnline {
		return "became-online"
	}
	return "became-offline"
}

// Monitor reports current connectivity and emits transitions.
type Monitor interface {
	Online() bool
	Events() <-chan Event
}

// Static is a Monitor whose state is switched by hand.
type Static struct {
	online atomic.Bool
	events chan Event
}

// NewStatic returns a Static monitor in the given state.
func NewStatic(online bool) *Static {
	s := &Static{events: make(chan Event, 16)}
	s.online.Store(online)
	return s
}

func (s *Static) Online() bool         { return s.online.Load() }
func (s *Static) Events() <-chan Event { return s.events }

// Set changes the state and emits an event if it changed.
func (s *Static) Set(online bool) {
	if s.online.Swap(online) == online {
		return
	}
	emit(s.events, online)
}

func emit(ch chan Event, online bool) {
	ev := BecameOffline
	if online {
		ev = BecameOnline
	}
	select {
	case ch <- ev:
	default:
	}
}

// Prober polls a URL and treats any HTTP response as online. A failed
// request before a response arrives counts as offline.
type Prober struct {
	url      string
	http     *http.Client
	clk      clock.Clock
	interval time.Duration

	online atomic.Bool
	events chan Event

	mu  sync.Mutex
	sub *clock.Subscription
}

// NewProber creates a Prober. It starts optimistic (online) until the first
// probe says otherwise.
func NewProber(url string, clk clock.Clock, interval, timeout time.Duration) *Prober {
	p := &Prober{
		url:      url,
		http:     &http.Client{Timeout: timeout},
		clk:      clk,
		interval: interval,
		events:   make(chan Event, 16),
	}
	p.online.Store(true)
	return p
}

func (p *Prober) Online() bool         { return p.online.Load() }
func (p *Prober) Events() <-chan Event { return p.events }

// Probe checks the service once and records the result.
func (p *Prober) Probe(ctx context.Context) bool {
	online := p.check(ctx)
	if p.online.Swap(online) != online {
		emit(p.events, online)
	}
	return online
}

func (p *Prober) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// Start probes immediately and then on every interval until ctx is done or
// Stop is called.
func (p *Prober) Start(ctx context.Context) {
	p.mu.Lock()
	if p.sub != nil {
		p.mu.Unlock()
		return
	}
	sub := p.clk.Subscribe(p.interval)
	p.sub = sub
	p.mu.Unlock()

	go func() {
		p.Probe(ctx)
		for {
			select {
			case <-ctx.Done():
				sub.Stop()
				return
			case <-sub.Done():
				return
			case <-sub.C():
				p.Probe(ctx)
			}
		}
	}()
}

// Stop ends polling.
func (p *Prober) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sub != nil {
		p.sub.Stop()
		p.sub = nil
	}
}
