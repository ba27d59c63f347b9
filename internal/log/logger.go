// Package log records interview events as append-only JSON lines.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event type constants.
const (
	EventSessionStarted      = "session_started"
	EventSessionResumed      = "session_resumed"
	EventQuestionRequested   = "question_requested"
	EventQuestionReceived    = "question_received"
	EventAnswerSubmitted     = "answer_submitted"
	EventFeedbackReceived    = "feedback_received"
	EventFollowupRequested   = "followup_requested"
	EventFollowupFailed      = "followup_failed"
	EventTransportError      = "transport_error"
	EventTimerExpired        = "timer_expired"
	EventConnectivityChanged = "connectivity_changed"
	EventSessionEnded        = "session_ended"
	EventEndNotifyFailed     = "end_notify_failed"
)

// LogEvent is a single line of the event log.
type LogEvent struct {
	Time       time.Time      `json:"time"`
	Event      string         `json:"event"`
	SessionID  string         `json:"session,omitempty"`
	Op         string         `json:"op,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	Status     int            `json:"status,omitempty"`
	Error      string         `json:"error,omitempty"`
	Score      *float64       `json:"score,omitempty"`
	Average    float64        `json:"average,omitempty"`
	Questions  int            `json:"questions,omitempty"`
	Remaining  int            `json:"remaining,omitempty"`
	Online     *bool          `json:"online,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Logger appends events to a JSONL file.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger creates a Logger writing to path, creating parent directories.
// An existing file is appended to, never truncated.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &Logger{path: path}, nil
}

// Append writes one event. A zero Time is set to now (UTC). Calling Append
// on a nil Logger is a no-op.
func (l *Logger) Append(event LogEvent) error {
	if l == nil {
		return nil
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log event: %w", err)
	}
	return nil
}

// ReadAll parses every event in the log. A missing file yields an empty slice.
func (l *Logger) ReadAll() ([]LogEvent, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []LogEvent{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var events []LogEvent
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event LogEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse log line %d: %w", lineNum, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return events, nil
}
