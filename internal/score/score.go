// Package score maintains the running question count and average score of
// an interview session.
package score

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Stats is a snapshot of session scoring.
type Stats struct {
	QuestionsAsked int           `json:"questions_asked"`
	Scored         int           `json:"scored"`
	AverageScore   float64       `json:"average_score"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Normalize maps a raw score onto the 0-10 scale. Values up to 10 are taken
// as already normalized; larger values are divided by 10 and rounded half up.
// A raw 10 meant on the 0-100 scale is indistinguishable and stays 10.
func Normalize(raw float64) float64 {
	if math.IsNaN(raw) || raw < 0 {
		return 0
	}
	if raw <= 10 {
		return raw
	}
	return math.Floor(raw/10 + 0.5)
}

// Aggregator accumulates scores. It is not safe for concurrent use; the
// session loop is its only owner.
type Aggregator struct {
	asked   int
	scored  int
	average float64
	started time.Time
}

// NewAggregator returns an Aggregator whose elapsed time counts from started.
func NewAggregator(started time.Time) *Aggregator {
	return &Aggregator{started: started}
}

// RecordQuestion counts one more asked question.
func (a *Aggregator) RecordQuestion() {
	a.asked++
}

// RecordScore normalizes raw, folds it into the running average and returns
// the normalized value.
func (a *Aggregator) RecordScore(raw float64) float64 {
	s := Normalize(raw)
	a.scored++
	n := float64(a.scored)
	a.average = (a.average*(n-1) + s) / n
	return s
}

// Restore seeds the aggregator from a previous snapshot.
func (a *Aggregator) Restore(st Stats) {
	a.asked = st.QuestionsAsked
	a.scored = st.Scored
	a.average = st.AverageScore
}

// Stats returns the current snapshot with elapsed time measured at now.
func (a *Aggregator) Stats(now time.Time) Stats {
	var elapsed time.Duration
	if !a.started.IsZero() && now.After(a.started) {
		elapsed = now.Sub(a.started)
	}
	return Stats{
		QuestionsAsked: a.asked,
		Scored:         a.scored,
		AverageScore:   a.average,
		Elapsed:        elapsed,
	}
}

// Grade returns a label for a 0-10 average.
func Grade(avg float64) string {
	switch {
	case avg >= 9:
		return "Excellent"
	case avg >= 8:
		return "Very Good"
	case avg >= 7:
		return "Good"
	case avg >= 6:
		return "Fair"
	case avg >= 5:
		return "Below Average"
	default:
		return "Needs Improvement"
	}
}

// FormatElapsed renders d as m:ss, or h:mm:ss past the hour.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatScore renders a 0-10 score with at most one decimal place.
func FormatScore(s float64) string {
	return strconv.FormatFloat(math.Round(s*10)/10, 'f', -1, 64)
}
