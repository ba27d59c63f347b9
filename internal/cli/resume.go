package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/intervai-dev/intervai/internal/interview"
	"github.com/intervai-dev/intervai/internal/log"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/transport"
	"github.com/intervai-dev/intervai/internal/tui"
	"github.com/intervai-dev/intervai/internal/tui/app"
)

var errNothingToResume = errors.New("no unfinished interview to resume")

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the last unfinished interview",
	Long: `Resume the interview that was interrupted without being ended.
The service is asked to restore the session first; if it no longer knows
the session, the saved record is closed.`,
	RunE: runResume,
}

func runResume(cmd *cobra.Command, _ []string) error {
	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	snap := env.resumable()
	if snap == nil {
		return errNothingToResume
	}

	if useTUI() {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		orch, err := env.resume(ctx, *snap)
		if err != nil {
			return fmt.Errorf("%s", transport.UserMessage(err))
		}
		return env.runApp(ctx, env.defaults(), nil, app.WithInterview(orch))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	orch, err := env.resume(ctx, *snap)
	if err != nil {
		return fmt.Errorf("%s", transport.UserMessage(err))
	}
	return runPlain(ctx, orch, bufio.NewReader(os.Stdin), os.Stdout)
}

// resume restores snap on the service and rebuilds its orchestrator.
func (e *environment) resume(ctx context.Context, snap session.Snapshot) (*interview.Orchestrator, error) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeoutDuration())
	defer cancel()
	if err := e.restore(rctx, snap); err != nil {
		return nil, err
	}
	return e.orchestratorFor(ctx, snap.Session, &snap, tui.NewBellCues(os.Stdout)), nil
}

// restore asks the service to reattach to snap. A session the service no
// longer knows is closed locally and reported; any other failure is only a
// warning, since the orchestrator copes with being offline.
func (e *environment) restore(ctx context.Context, snap session.Snapshot) error {
	id := snap.Session.ID
	if _, err := e.client.Restore(ctx, id); err != nil {
		if transport.IsKind(err, transport.KindNotFound) || transport.IsKind(err, transport.KindInvalidSession) {
			if endErr := e.store.EndActive(id, time.Now().UTC()); endErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not close saved session: %v\n", endErr)
			}
			return err
		}
		fmt.Fprintf(os.Stderr, "Warning: could not restore session on the service: %s\n", transport.UserMessage(err))
	}

	if e.logger != nil {
		_ = e.logger.Append(log.LogEvent{Event: log.EventSessionResumed, SessionID: id,
			Data: map[string]any{"entries": len(snap.Transcript)}})
	}
	return nil
}
