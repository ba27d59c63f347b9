// Package session holds the interview session records and their durable
// storage.
package session

import (
	"time"

	"github.com/intervai-dev/intervai/internal/score"
	"github.com/intervai-dev/intervai/internal/transport"
)

// Session identifies one interview run.
type Session struct {
	ID         string     `json:"session_id"`
	Provider   string     `json:"provider"`
	Domain     string     `json:"domain"`
	Model      string     `json:"model"`
	Difficulty string     `json:"difficulty"`
	TimeLimit  int        `json:"time_limit_sec"` // seconds per question, 0 = untimed
	StressMode bool       `json:"stress_mode"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// Resumable reports whether the session may be offered for resumption.
func (s *Session) Resumable() bool {
	return s != nil && s.ID != "" && s.EndedAt == nil
}

// EntryKind is the kind of a transcript entry.
type EntryKind string

const (
	KindQuestion EntryKind = "question"
	KindAnswer   EntryKind = "answer"
	KindFeedback EntryKind = "feedback"
)

// Entry is one transcript line.
type Entry struct {
	ID        string    `json:"id"`
	Kind      EntryKind `json:"kind"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Feedback only.
	Score      *float64 `json:"score,omitempty"`
	Normalized *float64 `json:"normalized,omitempty"`
	Verdict    string   `json:"verdict,omitempty"`
	Partial    bool     `json:"partial,omitempty"`
	FollowUp   bool     `json:"follow_up,omitempty"` // question only
}

// Snapshot is the active-session record: the session plus its progress so
// far, written on every transition.
type Snapshot struct {
	Session    Session     `json:"session"`
	Transcript []Entry     `json:"transcript"`
	Stats      score.Stats `json:"stats"`
}

// HistoryEntry is a finished session as kept in local history.
type HistoryEntry struct {
	ID         string             `json:"id"`
	Session    Session            `json:"session"`
	Stats      score.Stats        `json:"stats"`
	Transcript []Entry            `json:"transcript"`
	Remote     *transport.Summary `json:"remote_summary,omitempty"`
}
