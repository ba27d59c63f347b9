// Package countdown owns the per-question timer and its stress-mode cues.
package countdown

import (
	"time"

	"github.com/intervai-dev/intervai/internal/clock"
)

// Stress mode cues every second once this many seconds remain.
const stressWindow = 10

// Listener receives timer events. Both methods run on the caller of Tick.
type Listener interface {
	Tick(remaining int)
	Expired()
}

// CuePlayer plays stress-mode audio cues.
type CuePlayer interface {
	Cue(remaining int)
	FinalCue()
}

// State is a read-only view of the live timer.
type State struct {
	Armed     bool
	Limit     int
	Remaining int
	Expired   bool
	Stress    bool
}

// Ticker delivers the ticks of one armed timer. It is handed to whoever
// drives the event loop; the controller itself never blocks.
type Ticker struct {
	Gen uint64
	sub *clock.Subscription
}

// Wait blocks until the next tick. It returns false once the timer has been
// disarmed or has expired.
func (t *Ticker) Wait() bool {
	_, ok := t.sub.Wait()
	return ok
}

// Controller runs at most one timer at a time. Each Arm starts a new
// generation; ticks tagged with an older generation are ignored.
type Controller struct {
	clk      clock.Clock
	listener Listener
	cues     CuePlayer

	sub       *clock.Subscription
	gen       uint64
	state     State
	lastCue   int
	finalDone bool
}

// New creates a Controller. listener and cues may be nil.
func New(clk clock.Clock, listener Listener, cues CuePlayer) *Controller {
	return &Controller{clk: clk, listener: listener, cues: cues}
}

// Arm replaces any live timer with a fresh one of limit seconds. A limit of
// zero or less is a no-op that leaves the controller disarmed and returns nil.
func (c *Controller) Arm(limit int, stress bool) *Ticker {
	c.Disarm()
	if limit <= 0 {
		return nil
	}
	c.gen++
	c.state = State{Armed: true, Limit: limit, Remaining: limit, Stress: stress}
	c.lastCue = 0
	c.finalDone = false
	c.sub = c.clk.Subscribe(time.Second)
	c.maybeCue()
	return &Ticker{Gen: c.gen, sub: c.sub}
}

// Disarm stops the live timer. No tick or cue of that timer fires afterwards.
func (c *Controller) Disarm() {
	if c.sub != nil {
		c.sub.Stop()
		c.sub = nil
	}
	if c.state.Armed {
		c.gen++
	}
	c.state.Armed = false
}

// Tick advances the timer armed as gen by one second. Stale generations and
// ticks after expiry are ignored; remaining never drops below zero.
func (c *Controller) Tick(gen uint64) {
	if !c.state.Armed || gen != c.gen || c.state.Expired {
		return
	}
	if c.state.Remaining > 0 {
		c.state.Remaining--
	}
	if c.listener != nil {
		c.listener.Tick(c.state.Remaining)
	}
	c.maybeCue()
	if c.state.Remaining == 0 && !c.state.Expired {
		c.state.Expired = true
		if c.sub != nil {
			c.sub.Stop()
		}
		if c.listener != nil {
			c.listener.Expired()
		}
	}
}

// Ticker returns the ticker of the live timer, or nil when none is running.
func (c *Controller) Ticker() *Ticker {
	if c.sub == nil || !c.state.Armed || c.state.Expired {
		return nil
	}
	return &Ticker{Gen: c.gen, sub: c.sub}
}

// Generation returns the generation of the most recent timer.
func (c *Controller) Generation() uint64 { return c.gen }

// State returns the current timer state.
func (c *Controller) State() State { return c.state }

// Expired reports whether the live timer has run out.
func (c *Controller) Expired() bool { return c.state.Armed && c.state.Expired }

func (c *Controller) maybeCue() {
	if !c.state.Stress || c.cues == nil {
		return
	}
	r := c.state.Remaining
	switch {
	case r == 0:
		if !c.finalDone {
			c.finalDone = true
			c.cues.FinalCue()
		}
	case r <= stressWindow && r != c.lastCue:
		c.lastCue = r
		c.cues.Cue(r)
	}
}
