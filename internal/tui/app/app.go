// Package app provides the main TUI application that wires all views together.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/intervai-dev/intervai/internal/interview"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/transport"
	"github.com/intervai-dev/intervai/internal/tui"
	"github.com/intervai-dev/intervai/internal/tui/views"
)

// startTimeout bounds opening or restoring a session.
const startTimeout = 60 * time.Second

// historyLimit is how many past sessions the history screen loads.
const historyLimit = 100

// ViewState is the screen currently shown.
type ViewState int

const (
	StateSetup ViewState = iota
	StateStarting
	StateInterview
	StateSummary
	StateHistory
)

// HistoryStore lists and deletes finished sessions.
type HistoryStore interface {
	ListHistory(limit int) ([]session.HistoryEntry, error)
	DeleteHistory(id string) error
}

// Deps connects the app to the service and to storage.
type Deps struct {
	// Start opens a session for a submitted setup form.
	Start func(ctx context.Context, s views.Setup) (*interview.Orchestrator, error)
	// Resume rebuilds the orchestrator of a saved session.
	Resume func(ctx context.Context, snap session.Snapshot) (*interview.Orchestrator, error)

	History  HistoryStore
	Defaults views.Setup
	// Active is a saved session that may be resumed, or nil.
	Active *session.Snapshot
}

// Option configures the initial screen.
type Option func(*App)

// WithInterview opens directly on a running session.
func WithInterview(orch *interview.Orchestrator) Option {
	return func(a *App) {
		a.state = StateInterview
		a.interviewView = views.NewInterviewModel(orch, a.width, a.height)
	}
}

// WithHistory opens on the history screen; leaving it quits.
func WithHistory() Option {
	return func(a *App) {
		a.state = StateHistory
		a.historyOnly = true
	}
}

// startedMsg carries the orchestrator of a newly opened session.
type startedMsg struct {
	orch *interview.Orchestrator
	err  error
}

// App is the main TUI application.
type App struct {
	deps  Deps
	state ViewState

	setupView     views.SetupModel
	interviewView views.InterviewModel
	summaryView   views.SummaryModel
	historyView   views.HistoryModel
	spinner       spinner.Model

	last         *interview.Summary
	historyOnly  bool
	ctrlCPending bool
	width        int
	height       int
}

// New creates an App. Without options it opens on the setup screen.
func New(deps Deps, opts ...Option) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = tui.SelectedStyle

	a := &App{deps: deps, spinner: sp, width: 80, height: 24}
	var active *session.Session
	if deps.Active != nil {
		active = &deps.Active.Session
	}
	a.setupView = views.NewSetupModel(deps.Defaults, active, a.width, a.height)
	a.historyView = views.NewHistoryModel(a.width, a.height)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init returns the initial command for the current screen.
func (a *App) Init() tea.Cmd {
	switch a.state {
	case StateInterview:
		return a.interviewView.Init()
	case StateHistory:
		return a.loadHistory()
	}
	return a.setupView.Init()
}

// LastSummary returns the summary of the most recently finished session.
func (a *App) LastSummary() *interview.Summary {
	return a.last
}

// Update handles messages and updates the application state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		var cmd tea.Cmd
		a.setupView, _ = a.setupView.Update(msg)
		a.historyView, _ = a.historyView.Update(msg)
		switch a.state {
		case StateInterview:
			a.interviewView, cmd = a.interviewView.Update(msg)
		case StateSummary:
			a.summaryView, cmd = a.summaryView.Update(msg)
		}
		return a, cmd

	case tea.KeyMsg:
		if msg.String() == tui.KeyCtrlC {
			if a.ctrlCPending {
				return a, tea.Quit
			}
			a.ctrlCPending = true
			return a, tea.Tick(time.Second, func(time.Time) tea.Msg { return tui.CtrlCResetMsg{} })
		}

	case tui.CtrlCResetMsg:
		a.ctrlCPending = false
		return a, nil

	case tui.QuitMsg:
		return a, tea.Quit

	case tui.SessionEndedMsg:
		sum := msg.Summary
		a.last = &sum
		a.state = StateSummary
		a.summaryView = views.NewSummaryModel(sum, a.width, a.height)
		return a, nil

	case tui.ShowHistoryMsg:
		a.state = StateHistory
		a.historyView = views.NewHistoryModel(a.width, a.height)
		return a, a.loadHistory()
	}

	switch a.state {
	case StateSetup:
		return a.updateSetup(msg)
	case StateStarting:
		return a.updateStarting(msg)
	case StateInterview:
		var cmd tea.Cmd
		a.interviewView, cmd = a.interviewView.Update(msg)
		return a, cmd
	case StateSummary:
		return a.updateSummary(msg)
	case StateHistory:
		return a.updateHistory(msg)
	}
	return a, nil
}

// ============================================================================
// State Update Handlers
// ============================================================================

func (a *App) updateSetup(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.setupView, cmd = a.setupView.Update(msg)

	switch msg := msg.(type) {
	case views.StartInterviewMsg:
		if a.deps.Start == nil {
			return a, nil
		}
		a.state = StateStarting
		start, setup := a.deps.Start, msg.Setup
		return a, tea.Batch(a.spinner.Tick, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
			defer cancel()
			orch, err := start(ctx, setup)
			return startedMsg{orch: orch, err: err}
		})

	case views.ResumeSessionMsg:
		if a.deps.Resume == nil || a.deps.Active == nil || a.deps.Active.Session.ID != msg.SessionID {
			return a, nil
		}
		a.state = StateStarting
		resume, snap := a.deps.Resume, *a.deps.Active
		return a, tea.Batch(a.spinner.Tick, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
			defer cancel()
			orch, err := resume(ctx, snap)
			return startedMsg{orch: orch, err: err}
		})
	}
	return a, cmd
}

func (a *App) updateStarting(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case startedMsg:
		if msg.err != nil {
			a.state = StateSetup
			a.setupView.SetError(transport.UserMessage(msg.err))
			return a, nil
		}
		a.deps.Active = nil
		a.state = StateInterview
		a.interviewView = views.NewInterviewModel(msg.orch, a.width, a.height)
		return a, a.interviewView.Init()
	}
	return a, nil
}

func (a *App) updateSummary(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.summaryView, cmd = a.summaryView.Update(msg)

	if _, ok := msg.(views.NewInterviewMsg); ok {
		a.state = StateSetup
		a.setupView = views.NewSetupModel(a.setupView.Value(), nil, a.width, a.height)
		return a, a.setupView.Init()
	}
	return a, cmd
}

func (a *App) updateHistory(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.historyView, cmd = a.historyView.Update(msg)

	switch msg := msg.(type) {
	case views.DeleteHistoryMsg:
		store, id := a.deps.History, msg.ID
		if store == nil {
			return a, nil
		}
		return a, func() tea.Msg {
			return tui.HistoryDeletedMsg{ID: id, Err: store.DeleteHistory(id)}
		}

	case views.CloseHistoryMsg:
		if a.historyOnly {
			return a, tea.Quit
		}
		if a.last != nil {
			a.state = StateSummary
			return a, nil
		}
		a.state = StateSetup
		return a, a.setupView.Init()
	}
	return a, cmd
}

func (a *App) loadHistory() tea.Cmd {
	store := a.deps.History
	if store == nil {
		return func() tea.Msg { return tui.HistoryLoadedMsg{} }
	}
	return func() tea.Msg {
		entries, err := store.ListHistory(historyLimit)
		return tui.HistoryLoadedMsg{Entries: entries, Err: err}
	}
}

// ============================================================================
// View
// ============================================================================

// View renders the current application state.
func (a *App) View() string {
	var content string

	switch a.state {
	case StateSetup:
		a.setupView.SetCtrlCPending(a.ctrlCPending)
		content = a.setupView.View()
	case StateStarting:
		content = tui.BoxStyle.Render(a.spinner.View() + " Starting interview...")
	case StateInterview:
		a.interviewView.SetCtrlCPending(a.ctrlCPending)
		content = a.interviewView.View()
	case StateSummary:
		a.summaryView.SetCtrlCPending(a.ctrlCPending)
		content = a.summaryView.View()
	case StateHistory:
		a.historyView.SetCtrlCPending(a.ctrlCPending)
		content = a.historyView.View()
	default:
		content = "Unknown state"
	}

	return a.centerContent(content)
}

// centerContent centers the given content both horizontally and vertically.
func (a *App) centerContent(content string) string {
	if lipgloss.Height(content) >= a.height {
		return strings.TrimRight(content, "\n")
	}
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, content)
}
