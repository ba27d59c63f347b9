// Package interview drives one interview session: it requests questions,
// runs the per-question countdown, submits answers, applies feedback and
// auto follow-ups, and finalizes the session.
//
// The Orchestrator is shaped for a Bubble Tea loop. Operations never block;
// they return a tea.Cmd that performs the remote call and yields a message,
// and every message is fed back through Update. All state is mutated on the
// loop goroutine only.
package interview

import "errors"

// State is the orchestrator's position in the session lifecycle.
type State int

const (
	// Idle: no question is active and no request is in flight.
	Idle State = iota
	// AwaitingQuestion: a question or follow-up request is in flight.
	AwaitingQuestion
	// QuestionActive: a question awaits an answer.
	QuestionActive
	// Submitting: an answer is being evaluated.
	Submitting
	// Ended is terminal.
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingQuestion:
		return "awaiting_question"
	case QuestionActive:
		return "question_active"
	case Submitting:
		return "submitting"
	case Ended:
		return "ended"
	}
	return "unknown"
}

var (
	ErrSessionEnded       = errors.New("session has ended")
	ErrNoActiveQuestion   = errors.New("no active question")
	ErrEmptyAnswer        = errors.New("answer is empty")
	ErrTimeExpired        = errors.New("time is up for this question")
	ErrSubmissionInFlight = errors.New("an answer is already being evaluated")
)
