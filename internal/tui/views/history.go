package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/intervai-dev/intervai/internal/score"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// DeleteHistoryMsg is sent when the user requests to delete an entry.
type DeleteHistoryMsg struct {
	ID string
}

// CloseHistoryMsg is sent when the user leaves the history screen.
type CloseHistoryMsg struct{}

// ============================================================================
// HistoryItem
// ============================================================================

// HistoryItem implements list.Item for the history list.
type HistoryItem struct {
	entry session.HistoryEntry
}

// Title returns the domain and difficulty for list display.
func (i HistoryItem) Title() string {
	return fmt.Sprintf("%s (%s)", i.entry.Session.Domain, i.entry.Session.Difficulty)
}

// Description returns the date, score and question count for list display.
func (i HistoryItem) Description() string {
	st := i.entry.Stats
	return fmt.Sprintf("%s - %s/10 %s (%d questions)",
		i.entry.Session.StartedAt.Local().Format("Jan 02, 2006 15:04"),
		score.FormatScore(st.AverageScore),
		score.Grade(st.AverageScore),
		st.QuestionsAsked,
	)
}

// FilterValue returns the value used for filtering in the list.
func (i HistoryItem) FilterValue() string {
	return i.entry.Session.Domain
}

// ============================================================================
// HistoryModel
// ============================================================================

const (
	maxHistoryWidth  = 110
	maxContentHeight = 18
)

// HistoryModel lists finished sessions and shows the report of one.
type HistoryModel struct {
	entries      []session.HistoryEntry
	err          string
	list         list.Model
	detail       viewport.Model
	showing      bool
	loading      bool
	width        int
	height       int
	ctrlCPending bool
}

// NewHistoryModel creates an empty HistoryModel waiting for entries.
func NewHistoryModel(width, height int) HistoryModel {
	contentWidth := maxHistoryWidth - 8

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("#7C3AED")).
		BorderForeground(lipgloss.Color("#7C3AED"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("#9CA3AF"))

	l := list.New(nil, delegate, contentWidth, maxContentHeight)
	l.Title = "Past interviews"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	return HistoryModel{
		list:    l,
		detail:  viewport.New(contentWidth, maxContentHeight),
		loading: true,
		width:   width,
		height:  height,
	}
}

// Update handles messages for the history view.
func (m HistoryModel) Update(msg tea.Msg) (HistoryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tui.HistoryLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = "Failed to load history: " + msg.Err.Error()
			return m, nil
		}
		m.err = ""
		m.setEntries(msg.Entries)
		return m, nil

	case tui.HistoryDeletedMsg:
		if msg.Err != nil {
			m.err = "Failed to delete: " + msg.Err.Error()
			return m, nil
		}
		kept := m.entries[:0:0]
		for _, e := range m.entries {
			if e.ID != msg.ID {
				kept = append(kept, e)
			}
		}
		m.setEntries(kept)
		m.showing = false
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case tui.KeyEnter:
			if item, ok := m.list.SelectedItem().(HistoryItem); ok && !m.showing {
				e := item.entry
				m.detail.SetContent(renderReport(e.Session, e.Stats, e.Transcript, e.Remote, m.detail.Width))
				m.detail.GotoTop()
				m.showing = true
			}
			return m, nil
		case tui.KeyEsc, "q":
			if m.showing {
				m.showing = false
				return m, nil
			}
			return m, func() tea.Msg { return CloseHistoryMsg{} }
		case "d":
			if item, ok := m.list.SelectedItem().(HistoryItem); ok {
				id := item.entry.ID
				return m, func() tea.Msg { return DeleteHistoryMsg{ID: id} }
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	var cmd tea.Cmd
	if m.showing {
		m.detail, cmd = m.detail.Update(msg)
	} else {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m *HistoryModel) setEntries(entries []session.HistoryEntry) {
	m.entries = entries
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = HistoryItem{entry: e}
	}
	m.list.SetItems(items)
}

// SetCtrlCPending sets the Ctrl+C pending state for display.
func (m *HistoryModel) SetCtrlCPending(pending bool) {
	m.ctrlCPending = pending
}

// View renders the history view.
func (m HistoryModel) View() string {
	var b strings.Builder

	b.WriteString(tui.TitleStyle.Render("History"))
	b.WriteString("\n\n")

	switch {
	case m.err != "":
		b.WriteString(tui.ErrorStyle.Render(m.err))
	case m.loading:
		b.WriteString(tui.DimStyle.Render("Loading..."))
	case len(m.entries) == 0:
		b.WriteString(tui.DimStyle.Render("No interviews yet"))
	case m.showing:
		b.WriteString(m.detail.View())
	default:
		b.WriteString(m.list.View())
	}
	b.WriteString("\n\n")

	var hints []string
	if m.showing {
		hints = []string{"j/k: Scroll", "d: Delete", "Esc: Back"}
	} else {
		hints = []string{"Enter: View", "d: Delete", "/: Filter", "Esc: Back"}
	}
	hintsStr := tui.DimStyle.Render(strings.Join(hints, " · "))

	ctrlCHint := tui.DimStyle.Render("Ctrl+C: Exit")
	if m.ctrlCPending {
		ctrlCHint = tui.WarningStyle.Render("Press Ctrl+C again to exit")
	}
	b.WriteString(hintsStr + " · " + ctrlCHint)

	boxWidth := maxHistoryWidth
	if m.width-4 < boxWidth {
		boxWidth = m.width - 4
	}
	return tui.BoxStyle.Width(boxWidth).Render(b.String())
}
