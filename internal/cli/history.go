package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/intervai-dev/intervai/internal/score"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/tui/app"
)

var (
	historyDelete string
	historyClear  bool
	historyLimit  int
	historyYes    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse finished interviews",
	Long: `Show past interviews, newest first. On a terminal the history browser
opens; otherwise a table is printed.`,
	RunE: runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyDelete, "delete", "", "Delete the history entry with this ID")
	f.BoolVar(&historyClear, "clear", false, "Delete all history")
	f.IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to print")
	f.BoolVarP(&historyYes, "yes", "y", false, "Do not ask before clearing")
	historyCmd.MarkFlagsMutuallyExclusive("delete", "clear")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	switch {
	case historyDelete != "":
		if err := env.store.DeleteHistory(historyDelete); err != nil {
			return fmt.Errorf("deleting %s: %w", historyDelete, err)
		}
		fmt.Fprintf(out, "Deleted %s\n", historyDelete)
		return nil

	case historyClear:
		if !historyYes && !confirm(bufio.NewReader(os.Stdin), out, "Delete all interview history? [y/N] ") {
			return errors.New("aborted")
		}
		if err := env.store.ClearHistory(); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		fmt.Fprintln(out, "History cleared")
		return nil
	}

	if useTUI() && !cmd.Flags().Changed("limit") {
		return env.runApp(cmd.Context(), env.defaults(), nil, app.WithHistory())
	}

	entries, err := env.store.ListHistory(historyLimit)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}
	printHistory(out, entries)
	return nil
}

// printHistory writes entries as a table.
func printHistory(w io.Writer, entries []session.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No interviews yet. Run 'intervai start' to begin.")
		return
	}

	bold := color.New(color.Bold)
	bold.Fprintf(w, "%-26s  %-16s  %-28s  %-6s  %5s  %7s\n", "ID", "Date", "Domain", "Level", "Qs", "Score")
	for _, h := range entries {
		avg := score.FormatScore(h.Stats.AverageScore) + "/10"
		fmt.Fprintf(w, "%-26s  %-16s  %-28s  %-6s  %5d  %s\n",
			h.ID,
			h.Session.StartedAt.Local().Format("2006-01-02 15:04"),
			truncate(h.Session.Domain, 28),
			h.Session.Difficulty,
			h.Stats.QuestionsAsked,
			gradeColor(h.Stats.AverageScore).Sprintf("%7s %s", avg, score.Grade(h.Stats.AverageScore)),
		)
	}
}

func gradeColor(avg float64) *color.Color {
	switch {
	case avg >= 8:
		return color.New(color.FgGreen)
	case avg >= 6:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
