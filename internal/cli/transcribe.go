package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/intervai-dev/intervai/internal/transport"
)

var transcribeSession string

var transcribeCmd = &cobra.Command{
	Use:   "transcribe FILE",
	Short: "Transcribe a recorded answer",
	Long: `Upload an audio file to the service and print its transcription, ready
to be pasted as an answer. The active session is used unless --session is
given.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().StringVar(&transcribeSession, "session", "", "Session ID (default: the active session)")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	id := transcribeSession
	if id == "" {
		snap := env.resumable()
		if snap == nil {
			return errors.New("no active session; pass --session")
		}
		id = snap.Session.ID
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), env.cfg.RequestTimeoutDuration())
	defer cancel()
	text, err := env.client.Transcribe(ctx, id, args[0])
	if err != nil {
		return fmt.Errorf("%s", transport.UserMessage(err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
