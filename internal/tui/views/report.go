package views

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/intervai-dev/intervai/internal/score"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/transport"
	"github.com/intervai-dev/intervai/internal/tui"
)

// renderReport renders the end-of-session report shared by the summary and
// history screens.
func renderReport(s session.Session, st score.Stats, transcript []session.Entry, remote *transport.Summary, width int) string {
	var b strings.Builder

	label := lipgloss.NewStyle().Width(16).Foreground(lipgloss.Color("#9CA3AF"))
	row := func(k, v string) {
		b.WriteString(label.Render(k) + v + "\n")
	}

	row("Domain", s.Domain)
	row("Difficulty", s.Difficulty)
	row("Provider", strings.TrimSpace(s.Provider+" "+s.Model))
	row("Started", s.StartedAt.Local().Format("Jan 02, 2006 15:04"))
	row("Duration", score.FormatElapsed(st.Elapsed))
	row("Questions", fmt.Sprintf("%d", st.QuestionsAsked))
	row("Average score", tui.ScoreStyle(st.AverageScore).Render(
		fmt.Sprintf("%s/10 · %s", score.FormatScore(st.AverageScore), score.Grade(st.AverageScore))))

	if remote != nil && len(remote.WeakAreas) > 0 {
		b.WriteString("\n")
		b.WriteString(tui.WarningStyle.Bold(true).Render("Areas to improve"))
		b.WriteString("\n")
		topics := make([]string, 0, len(remote.WeakAreas))
		for t := range remote.WeakAreas {
			topics = append(topics, t)
		}
		sort.Strings(topics)
		for _, t := range topics {
			b.WriteString("  " + t + "\n")
			for _, a := range remote.WeakAreas[t] {
				b.WriteString("    • " + a.Question + "\n")
				if a.ImprovementTips != "" {
					b.WriteString("      " + tui.DimStyle.Render(a.ImprovementTips) + "\n")
				}
			}
		}
	}

	if len(transcript) > 0 {
		b.WriteString("\n")
		b.WriteString(tui.TitleStyle.Render("Transcript"))
		b.WriteString("\n\n")
		b.WriteString(renderTranscript(transcript, width))
	}
	return b.String()
}
