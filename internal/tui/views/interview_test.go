package views

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intervai-dev/intervai/internal/interview"
	"github.com/intervai-dev/intervai/internal/testutil"
	"github.com/intervai-dev/intervai/internal/tui"
)

// collect runs cmd and returns the messages it produces within a short
// window. Long timers such as clock ticks are dropped.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		if batch, ok := msg.(tea.BatchMsg); ok {
			var out []tea.Msg
			for _, c := range batch {
				out = append(out, collect(c)...)
			}
			return out
		}
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	case <-time.After(300 * time.Millisecond):
		return nil
	}
}

// settle feeds session results back into m until none remain and returns
// any navigation messages produced on the way.
func settle(m InterviewModel, cmd tea.Cmd) (InterviewModel, []tea.Msg) {
	var nav []tea.Msg
	queue := collect(cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		switch msg.(type) {
		case interview.QuestionMsg, interview.FeedbackMsg, interview.EndAckMsg:
			var next tea.Cmd
			m, next = m.Update(msg)
			queue = append(queue, collect(next)...)
		case tui.SessionEndedMsg:
			nav = append(nav, msg)
		}
	}
	return m, nav
}

func press(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+e":
		return tea.KeyMsg{Type: tea.KeyCtrlE}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newInterview(t *testing.T) InterviewModel {
	t.Helper()
	_, client := testutil.DemoService(t)
	sess := testutil.StartSession(t, client, "Compilers")
	orch := interview.New(interview.Config{Session: sess, Transport: client})
	m := NewInterviewModel(orch, 120, 40)
	return m
}

func TestInterviewViewFlow(t *testing.T) {
	m := newInterview(t)
	assert.Contains(t, m.View(), "Press Enter or Ctrl+G")

	m, cmd := m.Update(press("enter"))
	assert.Contains(t, m.View(), "Generating question")
	m, _ = settle(m, cmd)

	require.Equal(t, interview.QuestionActive, m.Orchestrator().State())
	q := m.Orchestrator().ActiveQuestion()
	require.NotNil(t, q)
	assert.Contains(t, m.View(), "Interviewer")
	assert.Contains(t, m.View(), "Questions: 1")

	m, _ = m.Update(press(strings.Repeat("word ", 30)))
	m, cmd = m.Update(press("ctrl+s"))
	assert.Equal(t, interview.Submitting, m.Orchestrator().State())
	assert.Contains(t, m.View(), "Evaluating your answer")
	m, _ = settle(m, cmd)

	assert.Equal(t, interview.Idle, m.Orchestrator().State())
	assert.Contains(t, m.View(), "Feedback · 8/10 · Correct")
	assert.Contains(t, m.View(), "Average: 8")

	m, cmd = m.Update(press("ctrl+e"))
	m, nav := settle(m, cmd)
	require.Len(t, nav, 1)
	ended := nav[0].(tui.SessionEndedMsg)
	assert.Equal(t, 1, ended.Summary.Stats.QuestionsAsked)
	assert.NotNil(t, ended.Summary.Remote)
}

func TestInterviewViewEmptyAnswerShowsError(t *testing.T) {
	m := newInterview(t)
	m, cmd := m.Update(press("enter"))
	m, _ = settle(m, cmd)

	m, cmd = m.Update(press("ctrl+s"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), interview.ErrEmptyAnswer.Error())
	assert.Equal(t, interview.QuestionActive, m.Orchestrator().State())
}

func TestInterviewViewDoubleEscEnds(t *testing.T) {
	m := newInterview(t)

	m, _ = m.Update(press("esc"))
	assert.Contains(t, m.View(), "Press Esc again")
	assert.NotEqual(t, interview.Ended, m.Orchestrator().State())

	m, cmd := m.Update(press("esc"))
	assert.Equal(t, interview.Ended, m.Orchestrator().State())
	_, nav := settle(m, cmd)
	assert.Len(t, nav, 1)
}

func TestInterviewViewIgnoresTypingWithoutQuestion(t *testing.T) {
	m := newInterview(t)
	m, _ = m.Update(press("hello"))
	assert.NotContains(t, m.View(), "hello")
}
