package tui

import (
	"github.com/intervai-dev/intervai/internal/interview"
	"github.com/intervai-dev/intervai/internal/session"
)

// ============================================================================
// Navigation Messages
// ============================================================================

// SessionEndedMsg moves from the interview to the summary screen.
type SessionEndedMsg struct {
	Summary interview.Summary
}

// ShowHistoryMsg opens the history screen.
type ShowHistoryMsg struct{}

// QuitMsg exits the program.
type QuitMsg struct{}

// ============================================================================
// History Messages
// ============================================================================

// HistoryLoadedMsg carries finished sessions, newest first.
type HistoryLoadedMsg struct {
	Entries []session.HistoryEntry
	Err     error
}

// HistoryDeletedMsg reports a deleted history entry.
type HistoryDeletedMsg struct {
	ID  string
	Err error
}

// ============================================================================
// Utility Messages
// ============================================================================

// ClockMsg refreshes time-based display such as elapsed time.
type ClockMsg struct{}

// EscResetMsg resets the pending Esc state after a timeout.
type EscResetMsg struct{}

// CtrlCResetMsg resets the pending Ctrl+C state after a timeout.
type CtrlCResetMsg struct{}
