package tui

import "github.com/charmbracelet/lipgloss"

// Palette. Each color has a light and a dark terminal variant.
var (
	accent   = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"} // interviewer, focus
	good     = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	fair     = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	poor     = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	muted    = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	text     = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#E5E7EB"}
	barFront = lipgloss.AdaptiveColor{Light: "#374151", Dark: "#D1D5DB"}
	barBack  = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#1F2937"}
)

var (
	// BoxStyle frames a whole screen.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)

	TitleStyle    = lipgloss.NewStyle().Foreground(accent).Bold(true)
	SelectedStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	DimStyle      = lipgloss.NewStyle().Foreground(muted)

	SuccessStyle = lipgloss.NewStyle().Foreground(good)
	WarningStyle = lipgloss.NewStyle().Foreground(fair)
	ErrorStyle   = lipgloss.NewStyle().Foreground(poor)

	// StatusBarStyle holds the questions/average/elapsed line.
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(barFront).
			Background(barBack).
			Padding(0, 1)

	// Transcript turns.
	QuestionStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	AnswerStyle   = lipgloss.NewStyle().Foreground(text)
	FeedbackStyle = lipgloss.NewStyle().Foreground(muted).PaddingLeft(2)
)

// ScoreStyle picks a color for a normalized 0-10 score.
func ScoreStyle(s float64) lipgloss.Style {
	switch {
	case s >= 8:
		return SuccessStyle
	case s >= 6:
		return WarningStyle
	default:
		return ErrorStyle
	}
}

// TimerStyle renders the countdown red in its last ten seconds.
func TimerStyle(remaining int) lipgloss.Style {
	if remaining <= 10 {
		return ErrorStyle.Bold(true)
	}
	return SuccessStyle
}
