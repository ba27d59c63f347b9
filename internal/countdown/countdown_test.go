package countdown

import (
	"testing"
	"time"

	"github.com/intervai-dev/intervai/internal/clock"
)

type recorder struct {
	ticks   []int
	expired int
	cues    []int
	finals  int
}

func (r *recorder) Tick(remaining int) { r.ticks = append(r.ticks, remaining) }
func (r *recorder) Expired()           { r.expired++ }
func (r *recorder) Cue(remaining int)  { r.cues = append(r.cues, remaining) }
func (r *recorder) FinalCue()          { r.finals++ }

func newController() (*Controller, *recorder, *clock.Fake) {
	rec := &recorder{}
	fc := clock.NewFake(time.Unix(0, 0))
	return New(fc, rec, rec), rec, fc
}

func TestArmNonPositiveIsNoop(t *testing.T) {
	c, _, fc := newController()
	for _, limit := range []int{0, -5} {
		if tk := c.Arm(limit, true); tk != nil {
			t.Errorf("Arm(%d) returned a ticker, want nil", limit)
		}
		if c.State().Armed {
			t.Errorf("Arm(%d) left controller armed", limit)
		}
	}
	if fc.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", fc.Subscribers())
	}
}

func TestTickClampsAndExpiresOnce(t *testing.T) {
	c, rec, _ := newController()
	tk := c.Arm(30, false)

	for i := 0; i < 35; i++ {
		c.Tick(tk.Gen)
	}

	if got := c.State().Remaining; got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
	if rec.expired != 1 {
		t.Errorf("Expired fired %d times, want 1", rec.expired)
	}
	if !c.Expired() {
		t.Error("Expired() = false, want true")
	}
	for _, r := range rec.ticks {
		if r < 0 {
			t.Fatalf("negative remaining %d reported", r)
		}
	}
	if len(rec.ticks) != 30 {
		t.Errorf("listener got %d ticks, want 30 (none after expiry)", len(rec.ticks))
	}
}

func TestStressCues(t *testing.T) {
	c, rec, _ := newController()
	tk := c.Arm(10, true)

	for i := 0; i < 12; i++ {
		c.Tick(tk.Gen)
	}

	if len(rec.cues) != 10 {
		t.Fatalf("cues = %v, want 10 cues", rec.cues)
	}
	for i, r := range rec.cues {
		if r != 10-i {
			t.Errorf("cue %d = %d, want %d", i, r, 10-i)
		}
	}
	if rec.finals != 1 {
		t.Errorf("final cues = %d, want 1", rec.finals)
	}
}

func TestStressCuesOnlyInFinalWindow(t *testing.T) {
	c, rec, _ := newController()
	tk := c.Arm(30, true)

	for i := 0; i < 19; i++ {
		c.Tick(tk.Gen)
	}
	if len(rec.cues) != 0 {
		t.Errorf("cues before final window = %v, want none", rec.cues)
	}
	c.Tick(tk.Gen)
	if len(rec.cues) != 1 || rec.cues[0] != 10 {
		t.Errorf("cues = %v, want [10]", rec.cues)
	}
}

func TestDisarmSilencesTimer(t *testing.T) {
	c, rec, fc := newController()
	tk := c.Arm(10, true)
	c.Tick(tk.Gen)
	c.Disarm()

	for i := 0; i < 15; i++ {
		c.Tick(tk.Gen)
	}

	if len(rec.cues) != 2 {
		t.Errorf("cues = %v, want [10 9]", rec.cues)
	}
	if rec.finals != 0 || rec.expired != 0 {
		t.Errorf("finals = %d, expired = %d after disarm, want 0, 0", rec.finals, rec.expired)
	}
	if tk.Wait() {
		t.Error("Wait() = true after disarm, want false")
	}
	if fc.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", fc.Subscribers())
	}
}

func TestRearmIgnoresStaleGeneration(t *testing.T) {
	c, _, _ := newController()
	first := c.Arm(20, false)
	second := c.Arm(20, false)

	c.Tick(first.Gen)
	if got := c.State().Remaining; got != 20 {
		t.Errorf("Remaining after stale tick = %d, want 20", got)
	}
	c.Tick(second.Gen)
	if got := c.State().Remaining; got != 19 {
		t.Errorf("Remaining = %d, want 19", got)
	}
}

func TestTickerWaitFollowsClock(t *testing.T) {
	c, _, fc := newController()
	tk := c.Arm(5, false)

	fc.Advance(time.Second)
	if !tk.Wait() {
		t.Fatal("Wait() = false, want a tick")
	}
}
