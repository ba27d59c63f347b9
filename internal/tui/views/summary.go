package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/intervai-dev/intervai/internal/interview"
	"github.com/intervai-dev/intervai/internal/tui"
)

// NewInterviewMsg is sent when the user wants another interview.
type NewInterviewMsg struct{}

const maxSummaryWidth = 110

// SummaryModel shows the report of a session that just ended.
type SummaryModel struct {
	summary      interview.Summary
	viewport     viewport.Model
	width        int
	height       int
	ctrlCPending bool
}

// NewSummaryModel creates a SummaryModel for sum.
func NewSummaryModel(sum interview.Summary, width, height int) SummaryModel {
	m := SummaryModel{summary: sum, viewport: viewport.New(0, 0), width: width, height: height}
	m.resize()
	return m
}

// Init returns the initial command for the summary view.
func (m SummaryModel) Init() tea.Cmd { return nil }

// Update handles messages for the summary view.
func (m SummaryModel) Update(msg tea.Msg) (SummaryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "n", tui.KeyEnter:
			return m, func() tea.Msg { return NewInterviewMsg{} }
		case "h":
			return m, func() tea.Msg { return tui.ShowHistoryMsg{} }
		case "q":
			return m, func() tea.Msg { return tui.QuitMsg{} }
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *SummaryModel) resize() {
	w := max(min(m.width-4, maxSummaryWidth), 40)
	m.viewport.Width = w - 6
	m.viewport.Height = max(m.height-10, 5)
	s := m.summary
	m.viewport.SetContent(renderReport(s.Session, s.Stats, s.Transcript, s.Remote, m.viewport.Width))
}

// SetCtrlCPending sets the Ctrl+C pending state for display.
func (m *SummaryModel) SetCtrlCPending(pending bool) {
	m.ctrlCPending = pending
}

// View renders the summary view.
func (m SummaryModel) View() string {
	var b strings.Builder
	b.WriteString(tui.TitleStyle.Render("Interview Complete"))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n\n")

	hints := "Enter/n: New interview · h: History · j/k: Scroll · q: Quit"
	if m.ctrlCPending {
		b.WriteString(tui.WarningStyle.Render("Press Ctrl+C again to exit"))
	} else {
		b.WriteString(tui.DimStyle.Render(hints))
	}
	return tui.BoxStyle.Width(max(min(m.width-4, maxSummaryWidth), 40)).Render(b.String())
}
