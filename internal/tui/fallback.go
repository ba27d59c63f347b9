package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"

	"github.com/intervai-dev/intervai/internal/interview"
	"github.com/intervai-dev/intervai/internal/score"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/transport"
)

// Line-mode commands.
const (
	cmdNext     = "/next"
	cmdFollowup = "/followup"
	cmdEnd      = "/end"
	cmdStats    = "/stats"
	cmdHelp     = "/help"
)

// FallbackRunner drives a session over plain line-oriented I/O when no
// terminal is attached. Each input line is either a command or an answer.
// Lines typed while a request is in flight are queued until it completes.
type FallbackRunner struct {
	orch *interview.Orchestrator
	in   io.Reader
	out  io.Writer

	msgs    chan tea.Msg
	done    chan struct{}
	printed int
	lastErr error
	notice  string
	cued    int
}

// NewFallbackRunner creates a FallbackRunner for orch.
func NewFallbackRunner(orch *interview.Orchestrator, in io.Reader, out io.Writer) *FallbackRunner {
	return &FallbackRunner{
		orch:   orch,
		in:     in,
		out:    out,
		msgs:   make(chan tea.Msg, 16),
		done:   make(chan struct{}),
		cued:   -1,
		notice: orch.Notice(),
	}
}

// Run processes input until the session ends or input is exhausted, which
// ends the session. It returns the final summary.
func (f *FallbackRunner) Run(ctx context.Context) (interview.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(f.done)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(f.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	s := f.orch.Session()
	fmt.Fprintf(f.out, "%s %s (%s, %s)\n", color.MagentaString("Interview:"), s.Domain, s.Difficulty, s.Provider)
	f.printHelp()
	f.exec(f.orch.Init())
	f.render()

	var (
		queue      []string
		inputDone  bool
		endPending bool
	)
	for {
		if f.orch.State() == interview.Ended && !endPending {
			return f.orch.Summary(), nil
		}

		for len(queue) > 0 && !f.busy() && f.orch.State() != interview.Ended {
			line := queue[0]
			queue = queue[1:]
			if f.handleLine(line) {
				endPending = true
			}
			f.render()
		}
		if inputDone && len(queue) == 0 && !f.busy() && f.orch.State() != interview.Ended {
			endPending = f.end()
			f.render()
			continue
		}

		var in <-chan string
		if !inputDone {
			in = lines
		}
		select {
		case <-ctx.Done():
			if f.orch.State() != interview.Ended {
				f.end()
			}
			return f.orch.Summary(), ctx.Err()
		case line, ok := <-in:
			if !ok {
				inputDone = true
				continue
			}
			queue = append(queue, line)
		case msg := <-f.msgs:
			if _, ok := msg.(interview.EndAckMsg); ok {
				endPending = false
			}
			f.exec(f.orch.Update(msg))
			f.render()
		}
	}
}

// busy reports whether a request is in flight.
func (f *FallbackRunner) busy() bool {
	st := f.orch.State()
	return st == interview.AwaitingQuestion || st == interview.Submitting
}

// handleLine applies one input line and reports whether an end
// notification is now pending.
func (f *FallbackRunner) handleLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	var (
		cmd tea.Cmd
		err error
	)
	switch strings.ToLower(trimmed) {
	case "":
		if f.orch.State() != interview.Idle {
			return false
		}
		cmd, err = f.orch.GenerateQuestion()
	case cmdNext:
		cmd, err = f.orch.GenerateQuestion()
	case cmdFollowup:
		cmd, err = f.orch.RequestFollowup()
	case cmdEnd:
		return f.end()
	case cmdStats:
		f.printStats()
		return false
	case cmdHelp:
		f.printHelp()
		return false
	default:
		cmd, err = f.orch.SubmitAnswer(trimmed)
	}
	if err != nil {
		f.printError(err)
		return false
	}
	f.exec(cmd)
	return false
}

func (f *FallbackRunner) end() bool {
	cmd, err := f.orch.End()
	if err != nil && !transport.IsKind(err, transport.KindOffline) {
		f.printError(err)
	}
	if cmd == nil {
		return false
	}
	f.exec(cmd)
	return true
}

// exec runs cmd off the loop and feeds its result back through msgs.
func (f *FallbackRunner) exec(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		f.deliver(cmd())
	}()
}

func (f *FallbackRunner) deliver(msg tea.Msg) {
	switch msg := msg.(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range msg {
			f.exec(c)
		}
	default:
		select {
		case f.msgs <- msg:
		case <-f.done:
		}
	}
}

// render prints transcript entries and messages not yet shown.
func (f *FallbackRunner) render() {
	transcript := f.orch.Transcript()
	for _, e := range transcript[f.printed:] {
		f.printEntry(e)
	}
	f.printed = len(transcript)

	if err := f.orch.LastError(); err != nil && err != f.lastErr {
		f.printError(err)
	}
	f.lastErr = f.orch.LastError()

	if n := f.orch.Notice(); n != "" && n != f.notice {
		fmt.Fprintln(f.out, color.YellowString(n))
	}
	f.notice = f.orch.Notice()

	t := f.orch.Timer()
	if t.Armed && t.Remaining != f.cued && (t.Remaining == 30 || t.Remaining <= 10) {
		f.cued = t.Remaining
		if t.Expired {
			fmt.Fprintln(f.out, color.RedString("Time's up. Request a follow-up (/followup) or end the interview (/end)."))
		} else {
			fmt.Fprintln(f.out, color.RedString("%ds left", t.Remaining))
		}
	}
}

func (f *FallbackRunner) printEntry(e session.Entry) {
	switch e.Kind {
	case session.KindQuestion:
		label := "Q:"
		if e.FollowUp {
			label = "Follow-up:"
		}
		fmt.Fprintf(f.out, "\n%s %s\n", color.New(color.FgMagenta, color.Bold).Sprint(label), e.Content)
		f.cued = -1
	case session.KindAnswer:
		fmt.Fprintf(f.out, "%s %s\n", color.CyanString("A:"), e.Content)
	case session.KindFeedback:
		head := "Feedback"
		if e.Normalized != nil {
			head = fmt.Sprintf("Feedback (%s/10", score.FormatScore(*e.Normalized))
			if e.Verdict != "" {
				head += ", " + e.Verdict
			}
			head += ")"
		}
		fmt.Fprintf(f.out, "%s\n%s\n", scoreColor(e.Normalized).Sprint(head+":"), indent(e.Content, "  "))
		f.printStats()
	}
}

func (f *FallbackRunner) printStats() {
	st := f.orch.Stats()
	fmt.Fprintln(f.out, color.HiBlackString("Questions: %d · Average: %s · Elapsed: %s",
		st.QuestionsAsked, score.FormatScore(st.AverageScore), score.FormatElapsed(st.Elapsed)))
}

func (f *FallbackRunner) printError(err error) {
	fmt.Fprintln(f.out, color.RedString("Error: %s", transport.UserMessage(err)))
}

func (f *FallbackRunner) printHelp() {
	fmt.Fprintln(f.out, color.HiBlackString("Press enter for a question, type an answer, or use %s, %s, %s, %s.",
		cmdNext, cmdFollowup, cmdStats, cmdEnd))
}

func scoreColor(normalized *float64) *color.Color {
	switch {
	case normalized == nil:
		return color.New(color.FgWhite)
	case *normalized >= 8:
		return color.New(color.FgGreen)
	case *normalized >= 6:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

// PrintSummary writes an end-of-session report.
func PrintSummary(w io.Writer, sum interview.Summary) {
	st := sum.Stats
	fmt.Fprintf(w, "\n%s\n", color.New(color.FgMagenta, color.Bold).Sprint("Interview complete"))
	fmt.Fprintf(w, "Domain: %s\n", sum.Session.Domain)
	fmt.Fprintf(w, "Questions: %d\n", st.QuestionsAsked)
	fmt.Fprintf(w, "Average score: %s/10 (%s)\n", score.FormatScore(st.AverageScore), score.Grade(st.AverageScore))
	fmt.Fprintf(w, "Duration: %s\n", score.FormatElapsed(st.Elapsed))

	if sum.Remote == nil {
		return
	}
	if len(sum.Remote.WeakAreas) > 0 {
		fmt.Fprintln(w, color.YellowString("\nAreas to improve:"))
		for topic, areas := range sum.Remote.WeakAreas {
			fmt.Fprintf(w, "  %s\n", topic)
			for _, a := range areas {
				fmt.Fprintf(w, "    - %s\n", a.Question)
				if a.ImprovementTips != "" {
					fmt.Fprintf(w, "      %s\n", color.HiBlackString(a.ImprovementTips))
				}
			}
		}
	}
}
