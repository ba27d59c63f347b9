package interview

import (
	"github.com/intervai-dev/intervai/internal/connectivity"
	"github.com/intervai-dev/intervai/internal/transport"
)

// ============================================================================
// Transport results
// ============================================================================

// QuestionMsg carries the result of a question or follow-up request.
type QuestionMsg struct {
	seq      uint64
	FollowUp bool
	Auto     bool // follow-up triggered by a low score
	Question transport.Question
	Err      error
}

// FeedbackMsg carries the result of an answer submission.
type FeedbackMsg struct {
	seq      uint64
	Feedback transport.Feedback
	Err      error
}

// EndAckMsg carries the result of the end-of-session notification.
type EndAckMsg struct {
	Ack transport.Ack
	Err error
}

// ============================================================================
// Event sources
// ============================================================================

// TickMsg is one countdown tick for the timer armed as Gen.
type TickMsg struct {
	Gen uint64
}

// ConnectivityMsg reports a connectivity transition.
type ConnectivityMsg struct {
	Event connectivity.Event
}
