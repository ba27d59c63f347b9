package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/intervai-dev/intervai/internal/interview"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/transport"
	"github.com/intervai-dev/intervai/internal/tui"
	"github.com/intervai-dev/intervai/internal/tui/app"
	"github.com/intervai-dev/intervai/internal/tui/views"
)

var (
	domainFlag     string
	providerFlag   string
	difficultyFlag string
	modelFlag      string
	timeLimitFlag  int
	stressFlag     bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new interview",
	Long: `Start a new interview session. On a terminal the setup screen opens
unless --domain is given; otherwise the session runs in line mode, reading
answers from stdin.`,
	RunE: runStart,
}

func init() {
	f := startCmd.Flags()
	f.StringVarP(&domainFlag, "domain", "d", "", "Subject of the interview")
	f.StringVarP(&providerFlag, "provider", "p", "", "Model provider")
	f.StringVar(&difficultyFlag, "difficulty", "", "Difficulty tier (basic, medium, hard)")
	f.StringVar(&modelFlag, "model", "", "Model name (provider default when empty)")
	f.IntVar(&timeLimitFlag, "time-limit", -1, "Seconds per question, 0 for untimed")
	f.BoolVar(&stressFlag, "stress", false, "Audible cues as the timer runs out")
}

// setupFromFlags overlays explicitly set flags on the configured defaults.
func setupFromFlags(cmd *cobra.Command, s views.Setup) views.Setup {
	if domainFlag != "" {
		s.Domain = domainFlag
	}
	if providerFlag != "" {
		s.Provider = providerFlag
	}
	if difficultyFlag != "" {
		s.Difficulty = difficultyFlag
	}
	if modelFlag != "" {
		s.Model = modelFlag
	}
	if timeLimitFlag >= 0 {
		s.TimeLimit = timeLimitFlag
	}
	if f := cmd.Flags().Lookup("stress"); f != nil && f.Changed {
		s.StressMode = stressFlag
	}
	return s
}

func runStart(cmd *cobra.Command, _ []string) error {
	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	setup := setupFromFlags(cmd, env.defaults())
	active := env.resumable()

	if useTUI() {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		var opts []app.Option
		if domainFlag != "" {
			orch, err := env.start(ctx, setup)
			if err != nil {
				return fmt.Errorf("%s", transport.UserMessage(err))
			}
			opts = append(opts, app.WithInterview(orch))
		}
		return env.runApp(ctx, setup, active, opts...)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	in := bufio.NewReader(os.Stdin)

	if active != nil {
		q := fmt.Sprintf("Resume unfinished %s interview started %s? [y/N] ",
			active.Session.Domain, active.Session.StartedAt.Local().Format("Jan 2 15:04"))
		if confirm(in, os.Stdout, q) {
			orch, err := env.resume(ctx, *active)
			if err != nil {
				return fmt.Errorf("%s", transport.UserMessage(err))
			}
			return runPlain(ctx, orch, in, os.Stdout)
		}
	}

	orch, err := env.start(ctx, setup)
	if err != nil {
		return fmt.Errorf("%s", transport.UserMessage(err))
	}
	return runPlain(ctx, orch, in, os.Stdout)
}

// start opens a new session and builds its orchestrator.
func (e *environment) start(ctx context.Context, s views.Setup) (*interview.Orchestrator, error) {
	sess, err := e.startSession(ctx, s)
	if err != nil {
		return nil, err
	}
	return e.orchestratorFor(ctx, sess, nil, tui.NewBellCues(os.Stdout)), nil
}

// resumable returns the saved active session if it can be resumed.
func (e *environment) resumable() *session.Snapshot {
	snap, err := e.store.LoadActive()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read saved session: %v\n", err)
		return nil
	}
	if snap == nil || !snap.Session.Resumable() {
		return nil
	}
	return snap
}

// runApp runs the full-screen application. The prober of every session
// opened from it lives as long as ctx.
func (e *environment) runApp(ctx context.Context, defaults views.Setup, active *session.Snapshot, opts ...app.Option) error {
	deps := app.Deps{
		Start: func(startCtx context.Context, s views.Setup) (*interview.Orchestrator, error) {
			sess, err := e.startSession(startCtx, s)
			if err != nil {
				return nil, err
			}
			return e.orchestratorFor(ctx, sess, nil, tui.NewBellCues(os.Stdout)), nil
		},
		Resume: func(startCtx context.Context, snap session.Snapshot) (*interview.Orchestrator, error) {
			if err := e.restore(startCtx, snap); err != nil {
				return nil, err
			}
			return e.orchestratorFor(ctx, snap.Session, &snap, tui.NewBellCues(os.Stdout)), nil
		},
		History:  e.store,
		Defaults: defaults,
		Active:   active,
	}

	a := app.New(deps, opts...)
	if _, err := tui.Run(a); err != nil {
		return fmt.Errorf("running interface: %w", err)
	}
	if sum := a.LastSummary(); sum != nil {
		tui.PrintSummary(os.Stdout, *sum)
	}
	return nil
}

// runPlain runs a session in line mode and prints its summary.
func runPlain(ctx context.Context, orch *interview.Orchestrator, in io.Reader, out io.Writer) error {
	sum, err := tui.NewFallbackRunner(orch, in, out).Run(ctx)
	tui.PrintSummary(out, sum)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// confirm asks a yes/no question; anything but y or yes is no.
func confirm(in *bufio.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, color.YellowString(question))
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
