package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intervai-dev/intervai/internal/interview"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/testutil"
	"github.com/intervai-dev/intervai/internal/transport"
	"github.com/intervai-dev/intervai/internal/tui"
	"github.com/intervai-dev/intervai/internal/tui/views"
)

type memHistory struct {
	entries []session.HistoryEntry
	deleted []string
}

func (h *memHistory) ListHistory(int) ([]session.HistoryEntry, error) {
	return h.entries, nil
}

func (h *memHistory) DeleteHistory(id string) error {
	h.deleted = append(h.deleted, id)
	return nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// exec runs cmd synchronously; batches are not expanded.
func exec(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	return cmd()
}

func TestHistoryScreen(t *testing.T) {
	entry := testutil.HistoryEntry("Operating Systems", 6, time.Now())
	entry.ID = "h1"
	store := &memHistory{entries: []session.HistoryEntry{entry}}

	a := New(Deps{History: store}, WithHistory())
	a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	a.Update(exec(t, a.Init()))
	assert.Contains(t, a.View(), "Operating Systems")

	_, cmd := a.Update(runes("d"))
	_, cmd = a.Update(exec(t, cmd))
	a.Update(exec(t, cmd))
	assert.Equal(t, []string{"h1"}, store.deleted)
	assert.Contains(t, a.View(), "No interviews yet")

	_, cmd = a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	_, cmd = a.Update(exec(t, cmd))
	assert.Equal(t, tea.Quit(), exec(t, cmd))
}

func TestSetupStartFailureReturnsToSetup(t *testing.T) {
	start := func(context.Context, views.Setup) (*interview.Orchestrator, error) {
		return nil, &transport.Error{Op: transport.OpStart, Kind: transport.KindAuthFailure, Status: 401}
	}
	a := New(Deps{
		Start:    start,
		Defaults: views.Setup{APIKey: "demo", Provider: "openai", Domain: "Go", Difficulty: "basic"},
	})

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd = a.Update(exec(t, cmd))
	require.Equal(t, StateStarting, a.state)

	batch, ok := exec(t, cmd).(tea.BatchMsg)
	require.True(t, ok)
	a.Update(batch[1]())

	assert.Equal(t, StateSetup, a.state)
	assert.Contains(t, a.View(), "Authentication error")
}

func TestSetupValidation(t *testing.T) {
	a := New(Deps{Defaults: views.Setup{Provider: "openai", Difficulty: "basic"}})
	a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, StateSetup, a.state)
	assert.Contains(t, a.View(), "API key is required")
}

func TestStartAndEndInterview(t *testing.T) {
	_, client := testutil.DemoService(t)
	start := func(ctx context.Context, s views.Setup) (*interview.Orchestrator, error) {
		res, err := client.Start(ctx, transport.StartRequest{
			Provider: s.Provider, APIKey: s.APIKey, Domain: s.Domain, Difficulty: s.Difficulty,
		})
		if err != nil {
			return nil, err
		}
		return interview.New(interview.Config{
			Session:   session.Session{ID: res.SessionID, Domain: res.Domain, Provider: res.Provider, Difficulty: s.Difficulty},
			Transport: client,
		}), nil
	}
	a := New(Deps{
		Start:    start,
		Defaults: views.Setup{APIKey: "demo", Provider: "openai", Domain: "Go", Difficulty: "basic"},
	})

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd = a.Update(exec(t, cmd))
	batch := exec(t, cmd).(tea.BatchMsg)
	a.Update(batch[1]())
	require.Equal(t, StateInterview, a.state)

	a.Update(tui.SessionEndedMsg{Summary: interview.Summary{Session: session.Session{Domain: "Go"}}})
	require.Equal(t, StateSummary, a.state)
	assert.Contains(t, a.View(), "Interview Complete")
	require.NotNil(t, a.LastSummary())

	_, cmd = a.Update(runes("n"))
	a.Update(exec(t, cmd))
	assert.Equal(t, StateSetup, a.state)
}

func TestDoubleCtrlCQuits(t *testing.T) {
	a := New(Deps{})
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.NotNil(t, cmd)
	assert.True(t, a.ctrlCPending)

	_, cmd = a.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Equal(t, tea.Quit(), exec(t, cmd))

	a.Update(tui.CtrlCResetMsg{})
	assert.False(t, a.ctrlCPending)
}
