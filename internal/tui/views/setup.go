// Package views provides TUI view components for the interview application.
package views

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/intervai-dev/intervai/internal/config"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// StartInterviewMsg is sent when the user submits a valid setup form.
type StartInterviewMsg struct {
	Setup Setup
}

// ResumeSessionMsg is sent when the user chooses to resume a previous session.
type ResumeSessionMsg struct {
	SessionID string
}

// ============================================================================
// SetupModel
// ============================================================================

// Setup is the content of the setup form.
type Setup struct {
	APIKey     string
	Provider   string
	Domain     string
	Difficulty string
	Model      string
	TimeLimit  int
	StressMode bool
}

type setupField int

const (
	fieldDomain setupField = iota
	fieldProvider
	fieldAPIKey
	fieldDifficulty
	fieldTimeLimit
	fieldStress
	fieldCount
)

const maxSetupWidth = 80

// SetupModel is the view model for the setup screen.
type SetupModel struct {
	domain     textinput.Model
	apiKey     textinput.Model
	provider   string
	difficulty string
	model      string
	timeLimit  int
	stress     bool

	focus         setupField
	err           string
	resumeSession *session.Session
	width         int
	height        int
	ctrlCPending  bool
}

// NewSetupModel creates a SetupModel prefilled from defaults, with an
// optional session to offer for resumption.
func NewSetupModel(defaults Setup, resume *session.Session, width, height int) SetupModel {
	domain := textinput.New()
	domain.Placeholder = "e.g. Distributed Systems"
	domain.CharLimit = 200
	domain.SetValue(defaults.Domain)
	domain.Focus()

	key := textinput.New()
	key.Placeholder = "provider API key"
	key.CharLimit = 500
	key.EchoMode = textinput.EchoPassword
	key.EchoCharacter = '•'
	key.SetValue(defaults.APIKey)

	provider := defaults.Provider
	if !slices.Contains(config.Providers, provider) {
		provider = config.Providers[0]
	}
	difficulty := defaults.Difficulty
	if !slices.Contains(config.Difficulties, difficulty) {
		difficulty = config.Difficulties[0]
	}

	m := SetupModel{
		domain:     domain,
		apiKey:     key,
		provider:   provider,
		difficulty: difficulty,
		model:      defaults.Model,
		timeLimit:  config.ClampTimeLimit(defaults.TimeLimit),
		stress:     defaults.StressMode,
		width:      width,
		height:     height,
	}
	if resume.Resumable() {
		m.resumeSession = resume
	}
	m.setInputWidth()
	return m
}

// Init returns the initial command for the setup view.
func (m SetupModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the setup view.
func (m SetupModel) Update(msg tea.Msg) (SetupModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case tui.KeyEnter:
			if m.focus == fieldStress {
				m.stress = !m.stress
				return m, nil
			}
			return m.submit()
		case tui.KeyTab, tui.KeyDown:
			m.setFocus((m.focus + 1) % fieldCount)
			return m, nil
		case "shift+tab", tui.KeyUp:
			m.setFocus((m.focus + fieldCount - 1) % fieldCount)
			return m, nil
		case "left", "right", " ":
			if m.cycle(msg.String()) {
				return m, nil
			}
		case "ctrl+r":
			if m.resumeSession != nil {
				id := m.resumeSession.ID
				return m, func() tea.Msg { return ResumeSessionMsg{SessionID: id} }
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.setInputWidth()
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case fieldDomain:
		m.domain, cmd = m.domain.Update(msg)
	case fieldAPIKey:
		m.apiKey, cmd = m.apiKey.Update(msg)
	}
	return m, cmd
}

// cycle changes a choice field and reports whether the key was consumed.
func (m *SetupModel) cycle(k string) bool {
	step := 1
	if k == "left" {
		step = -1
	}
	switch m.focus {
	case fieldProvider:
		m.provider = cycleChoice(config.Providers, m.provider, step)
	case fieldDifficulty:
		m.difficulty = cycleChoice(config.Difficulties, m.difficulty, step)
	case fieldTimeLimit:
		next := m.timeLimit + step*config.TimeLimitStep
		switch {
		case next < config.MinTimeLimit && step < 0:
			next = 0
		case next < config.MinTimeLimit:
			next = config.MinTimeLimit
		case next > config.MaxTimeLimit:
			next = config.MaxTimeLimit
		}
		m.timeLimit = next
	case fieldStress:
		m.stress = !m.stress
	default:
		return false
	}
	return true
}

func cycleChoice(choices []string, current string, step int) string {
	i := slices.Index(choices, current)
	n := len(choices)
	return choices[((i+step)%n+n)%n]
}

func (m *SetupModel) setFocus(f setupField) {
	m.focus = f
	m.domain.Blur()
	m.apiKey.Blur()
	switch f {
	case fieldDomain:
		m.domain.Focus()
	case fieldAPIKey:
		m.apiKey.Focus()
	}
}

func (m *SetupModel) setInputWidth() {
	w := min(m.width, maxSetupWidth) - 24
	if w < 20 {
		w = 20
	}
	m.domain.Width = w
	m.apiKey.Width = w
}

func (m SetupModel) submit() (SetupModel, tea.Cmd) {
	s := m.Value()
	if err := config.ValidateSetup(s.APIKey, s.Provider, s.Domain, s.Difficulty); err != nil {
		m.err = strings.ReplaceAll(err.Error(), "\n", "; ")
		return m, nil
	}
	m.err = ""
	return m, func() tea.Msg { return StartInterviewMsg{Setup: s} }
}

// Value returns the form content.
func (m SetupModel) Value() Setup {
	return Setup{
		APIKey:     strings.TrimSpace(m.apiKey.Value()),
		Provider:   m.provider,
		Domain:     strings.TrimSpace(m.domain.Value()),
		Difficulty: m.difficulty,
		Model:      m.model,
		TimeLimit:  m.timeLimit,
		StressMode: m.stress,
	}
}

// SetError shows err under the form, e.g. a failed start request.
func (m *SetupModel) SetError(err string) {
	m.err = err
}

// SetCtrlCPending sets the Ctrl+C pending state for display.
func (m *SetupModel) SetCtrlCPending(pending bool) {
	m.ctrlCPending = pending
}

// View renders the setup view.
func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString(tui.TitleStyle.Render("Interview Setup"))
	b.WriteString("\n\n")

	if m.resumeSession != nil {
		resume := tui.WarningStyle.Render(fmt.Sprintf("Resume: %s (%s)", m.resumeSession.Domain, m.resumeSession.Difficulty))
		b.WriteString(resume)
		b.WriteString(tui.DimStyle.Render(" (press ctrl+r to resume)"))
		b.WriteString("\n\n")
	}

	timeLimit := "off"
	if m.timeLimit > 0 {
		timeLimit = fmt.Sprintf("%ds per question", m.timeLimit)
	}
	stress := "off"
	if m.stress {
		stress = "on"
	}

	rows := []struct {
		field setupField
		label string
		value string
	}{
		{fieldDomain, "Domain", m.domain.View()},
		{fieldProvider, "Provider", "‹ " + m.provider + " ›"},
		{fieldAPIKey, "API key", m.apiKey.View()},
		{fieldDifficulty, "Difficulty", "‹ " + m.difficulty + " ›"},
		{fieldTimeLimit, "Time limit", "‹ " + timeLimit + " ›"},
		{fieldStress, "Stress mode", "‹ " + stress + " ›"},
	}
	labelStyle := lipgloss.NewStyle().Width(14)
	for _, r := range rows {
		label := labelStyle.Render(r.label)
		if r.field == m.focus {
			label = tui.SelectedStyle.Width(14).Render("› " + r.label)
		}
		b.WriteString(label + r.value + "\n")
	}

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(tui.ErrorStyle.Render(m.err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	footer := "Tab/↑↓: Move · ←/→: Change · Enter: Start · "
	if m.ctrlCPending {
		b.WriteString(tui.DimStyle.Render(footer) + tui.WarningStyle.Render("Press Ctrl+C again to exit"))
	} else {
		b.WriteString(tui.DimStyle.Render(footer + "Ctrl+C: Exit"))
	}

	return tui.BoxStyle.Width(min(m.width-4, maxSetupWidth)).Render(b.String())
}
