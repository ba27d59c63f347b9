package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/intervai-dev/intervai/internal/interview"
	"github.com/intervai-dev/intervai/internal/score"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/transport"
	"github.com/intervai-dev/intervai/internal/tui"
)

// ============================================================================
// InterviewModel
// ============================================================================

// maxInterviewWidth is the maximum width for the interview box.
const maxInterviewWidth = 110

// endAckTimeout bounds how long the view waits for the service to
// acknowledge the end of a session before showing the summary anyway.
const endAckTimeout = 5 * time.Second

// endAckTimeoutMsg fires when the end acknowledgement took too long.
type endAckTimeoutMsg struct{}

// InterviewModel is the view model for a running session. All session
// state lives in the orchestrator; this model only renders it and routes
// keys and results.
type InterviewModel struct {
	orch     *interview.Orchestrator
	keys     tui.KeyMap
	answer   textarea.Model
	log      viewport.Model
	spinner  spinner.Model
	help     help.Model
	err      string
	rendered int

	escPending   bool
	ctrlCPending bool
	ending       bool
	width        int
	height       int
}

// NewInterviewModel creates an InterviewModel for orch.
func NewInterviewModel(orch *interview.Orchestrator, width, height int) InterviewModel {
	ta := textarea.New()
	ta.Placeholder = "Type your answer..."
	ta.CharLimit = 10000
	ta.ShowLineNumbers = false
	ta.SetHeight(5)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = tui.SelectedStyle

	m := InterviewModel{
		orch:     orch,
		keys:     tui.DefaultKeyMap,
		answer:   ta,
		log:      viewport.New(0, 0),
		spinner:  sp,
		help:     help.New(),
		rendered: -1,
		width:    width,
		height:   height,
	}
	m.resize()
	m.syncFocus()
	m.refreshTranscript()
	return m
}

// Init starts the orchestrator's event sources, the spinner and the clock.
func (m InterviewModel) Init() tea.Cmd {
	return tea.Batch(m.orch.Init(), m.spinner.Tick, clockTick(), textarea.Blink)
}

func clockTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tui.ClockMsg{} })
}

// Update handles messages for the interview view.
func (m InterviewModel) Update(msg tea.Msg) (InterviewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.rendered = -1
		m.refreshTranscript()
		return m, nil

	case tui.EscResetMsg:
		m.escPending = false
		return m, nil

	case tui.ClockMsg:
		if m.orch.State() == interview.Ended {
			return m, nil
		}
		return m, clockTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case interview.EndAckMsg:
		m.orch.Update(msg)
		return m, m.finished()

	case endAckTimeoutMsg:
		if !m.ending {
			return m, nil
		}
		return m, m.finished()

	case interview.QuestionMsg, interview.FeedbackMsg, interview.TickMsg, interview.ConnectivityMsg:
		cmd := m.orch.Update(msg)
		m.afterTransition()
		return m, cmd
	}

	var cmd tea.Cmd
	m.answer, cmd = m.answer.Update(msg)
	return m, cmd
}

func (m InterviewModel) handleKey(msg tea.KeyMsg) (InterviewModel, tea.Cmd) {
	if m.ending {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.run(m.orch.SubmitAnswer(m.answer.Value()))

	case key.Matches(msg, m.keys.Generate):
		return m.run(m.orch.GenerateQuestion())

	case key.Matches(msg, m.keys.Followup):
		return m.run(m.orch.RequestFollowup())

	case key.Matches(msg, m.keys.End):
		return m.end()

	case key.Matches(msg, m.keys.Escape):
		if m.escPending {
			return m.end()
		}
		m.escPending = true
		return m, tea.Tick(time.Second, func(time.Time) tea.Msg { return tui.EscResetMsg{} })

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil

	case msg.String() == tui.KeyEnter && m.orch.State() == interview.Idle:
		return m.run(m.orch.GenerateQuestion())
	}

	if m.orch.State() != interview.QuestionActive {
		return m, nil
	}
	var cmd tea.Cmd
	m.answer, cmd = m.answer.Update(msg)
	return m, cmd
}

// run applies the result of an orchestrator operation.
func (m InterviewModel) run(cmd tea.Cmd, err error) (InterviewModel, tea.Cmd) {
	if err != nil {
		m.err = transport.UserMessage(err)
	} else {
		m.err = ""
	}
	m.afterTransition()
	return m, cmd
}

func (m InterviewModel) end() (InterviewModel, tea.Cmd) {
	cmd, err := m.orch.End()
	m.ending = true
	if err != nil && !transport.IsKind(err, transport.KindOffline) {
		m.err = transport.UserMessage(err)
	}
	if cmd == nil {
		return m, m.finished()
	}
	return m, tea.Batch(cmd, tea.Tick(endAckTimeout, func(time.Time) tea.Msg { return endAckTimeoutMsg{} }))
}

// finished hands the summary to the app exactly once.
func (m *InterviewModel) finished() tea.Cmd {
	if !m.ending {
		return nil
	}
	m.ending = false
	sum := m.orch.Summary()
	return func() tea.Msg { return tui.SessionEndedMsg{Summary: sum} }
}

// afterTransition syncs widgets with the orchestrator state.
func (m *InterviewModel) afterTransition() {
	if m.orch.State() == interview.Idle || m.orch.State() == interview.AwaitingQuestion {
		m.answer.Reset()
	}
	m.syncFocus()
	m.refreshTranscript()
}

func (m *InterviewModel) syncFocus() {
	if m.orch.State() == interview.QuestionActive && !m.orch.Timer().Expired {
		m.answer.Focus()
	} else {
		m.answer.Blur()
	}
}

func (m *InterviewModel) boxWidth() int {
	w := min(m.width-4, maxInterviewWidth)
	if w < 40 {
		w = 40
	}
	return w
}

func (m *InterviewModel) resize() {
	inner := m.boxWidth() - 6
	m.answer.SetWidth(inner)
	m.help.Width = inner
	m.log.Width = inner

	// header, stats, status, answer box, help and padding
	reserved := 16
	if m.help.ShowAll {
		reserved += 2
	}
	h := m.height - reserved
	if h < 5 {
		h = 5
	}
	m.log.Height = h
}

// refreshTranscript re-renders the transcript when it changed.
func (m *InterviewModel) refreshTranscript() {
	entries := m.orch.Transcript()
	if len(entries) == m.rendered {
		return
	}
	m.rendered = len(entries)
	m.log.SetContent(renderTranscript(entries, m.log.Width))
	m.log.GotoBottom()
}

func renderTranscript(entries []session.Entry, width int) string {
	if len(entries) == 0 {
		return tui.DimStyle.Render("Press Enter or Ctrl+G to get your first question.")
	}
	wrap := lipgloss.NewStyle().Width(max(width, 20))
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		switch e.Kind {
		case session.KindQuestion:
			label := "Interviewer"
			if e.FollowUp {
				label = "Interviewer (follow-up)"
			}
			b.WriteString(tui.QuestionStyle.Render(label))
			b.WriteString("\n")
			b.WriteString(wrap.Render(e.Content))
		case session.KindAnswer:
			b.WriteString(tui.DimStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(tui.AnswerStyle.Width(max(width, 20)).Render(e.Content))
		case session.KindFeedback:
			b.WriteString(feedbackHeader(e))
			b.WriteString("\n")
			b.WriteString(tui.FeedbackStyle.Width(max(width-2, 18)).Render(e.Content))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func feedbackHeader(e session.Entry) string {
	if e.Normalized == nil {
		return tui.DimStyle.Render("Feedback")
	}
	head := fmt.Sprintf("Feedback · %s/10", score.FormatScore(*e.Normalized))
	if e.Verdict != "" {
		head += " · " + e.Verdict
	}
	if e.Partial {
		head += " (partial)"
	}
	return tui.ScoreStyle(*e.Normalized).Bold(true).Render(head)
}

// SetCtrlCPending sets the Ctrl+C pending state for display.
func (m *InterviewModel) SetCtrlCPending(pending bool) {
	m.ctrlCPending = pending
}

// View renders the interview view.
func (m InterviewModel) View() string {
	var b strings.Builder

	s := m.orch.Session()
	b.WriteString(tui.TitleStyle.Render("Interview · " + s.Domain))
	b.WriteString(tui.DimStyle.Render(fmt.Sprintf("  %s · %s", s.Difficulty, s.Provider)))
	b.WriteString("\n")
	b.WriteString(m.renderStats())
	b.WriteString("\n\n")

	b.WriteString(m.log.View())
	b.WriteString("\n\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.answer.View())
	b.WriteString("\n\n")

	if m.ctrlCPending {
		b.WriteString(tui.WarningStyle.Render("Press Ctrl+C again to exit"))
	} else if m.escPending {
		b.WriteString(tui.WarningStyle.Render("Press Esc again to end the interview"))
	} else {
		b.WriteString(m.help.View(m.keys))
	}

	return tui.BoxStyle.Width(m.boxWidth()).Render(b.String())
}

func (m InterviewModel) renderStats() string {
	st := m.orch.Stats()
	parts := []string{
		fmt.Sprintf("Questions: %d", st.QuestionsAsked),
		fmt.Sprintf("Average: %s", score.FormatScore(st.AverageScore)),
		fmt.Sprintf("Elapsed: %s", score.FormatElapsed(st.Elapsed)),
	}
	line := tui.StatusBarStyle.Render(strings.Join(parts, " · "))

	if t := m.orch.Timer(); t.Armed {
		label := fmt.Sprintf(" ⏱ %s", score.FormatElapsed(time.Duration(t.Remaining)*time.Second))
		if t.Stress {
			label += " stress"
		}
		line += " " + tui.TimerStyle(t.Remaining).Render(label)
	}
	if !m.orch.Online() {
		line += " " + tui.ErrorStyle.Render("● offline")
	}
	return line
}

func (m InterviewModel) renderStatus() string {
	switch {
	case m.ending:
		return m.spinner.View() + " Ending interview..."
	case m.err != "":
		return tui.ErrorStyle.Render(m.err)
	case m.orch.LastError() != nil:
		return tui.ErrorStyle.Render(transport.UserMessage(m.orch.LastError()))
	case m.orch.State() == interview.AwaitingQuestion && m.orch.PendingFollowUp():
		return m.spinner.View() + " Preparing a follow-up question..."
	case m.orch.State() == interview.AwaitingQuestion:
		return m.spinner.View() + " Generating question..."
	case m.orch.State() == interview.Submitting:
		return m.spinner.View() + " Evaluating your answer..."
	case m.orch.Timer().Expired:
		return tui.ErrorStyle.Render("Time's up. Ask for a follow-up (ctrl+f) or end the interview.")
	case m.orch.Notice() != "":
		return tui.WarningStyle.Render(m.orch.Notice())
	case m.orch.State() == interview.Idle:
		return tui.DimStyle.Render("Press Enter for the next question.")
	}
	return tui.DimStyle.Render("Your answer")
}

// Orchestrator returns the session orchestrator.
func (m InterviewModel) Orchestrator() *interview.Orchestrator {
	return m.orch
}
