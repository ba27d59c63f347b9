package tui

import (
	"io"
	"sync"
)

// BellCues plays countdown cues as terminal bells.
type BellCues struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBellCues creates a BellCues writing to w.
func NewBellCues(w io.Writer) *BellCues {
	return &BellCues{w: w}
}

// Cue rings once per second in the final stretch.
func (b *BellCues) Cue(int) { b.ring("\a") }

// FinalCue rings twice when time runs out.
func (b *BellCues) FinalCue() { b.ring("\a\a") }

func (b *BellCues) ring(s string) {
	if b == nil || b.w == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.w, s)
}
