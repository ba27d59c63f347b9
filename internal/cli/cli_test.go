package cli

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/testutil"
	"github.com/intervai-dev/intervai/internal/tui/views"
)

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })
	t.Setenv("INTERVAI_API_KEY", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--plain"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "(not set)", maskKey(""))
	assert.Equal(t, "****", maskKey("abc"))
	assert.Equal(t, "****7890", maskKey("sk-1234567890"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Distr…", truncate("Distributed Systems", 6))
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := confirm(bufio.NewReader(strings.NewReader(tt.input)), &out, "Continue? [y/N] ")
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "Continue?")
	}
}

func TestListenURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8000", listenURL(":8000"))
	assert.Equal(t, "http://127.0.0.1:9000", listenURL("127.0.0.1:9000"))
}

func TestPrintHistory(t *testing.T) {
	color.NoColor = true

	var empty bytes.Buffer
	printHistory(&empty, nil)
	assert.Contains(t, empty.String(), "No interviews yet")

	h := testutil.HistoryEntry("Networking", 8.5, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	h.ID = "01HXAMPLE"
	var out bytes.Buffer
	printHistory(&out, []session.HistoryEntry{h})

	s := out.String()
	assert.Contains(t, s, "01HXAMPLE")
	assert.Contains(t, s, "Networking")
	assert.Contains(t, s, "8.5/10 Very Good")
}

func TestSetupFromFlags(t *testing.T) {
	t.Cleanup(func() { resetFlags(rootCmd) })
	require.NoError(t, startCmd.Flags().Set("domain", "Compilers"))
	require.NoError(t, startCmd.Flags().Set("time-limit", "0"))
	require.NoError(t, startCmd.Flags().Set("stress", "true"))

	s := setupFromFlags(startCmd, views.Setup{Provider: "openai", Domain: "Go", Difficulty: "basic", TimeLimit: 120})
	assert.Equal(t, "Compilers", s.Domain)
	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, 0, s.TimeLimit)
	assert.True(t, s.StressMode)
}

func TestHistoryCommand(t *testing.T) {
	home := testutil.TempHome(t, nil)
	st, err := session.NewStore(filepath.Join(home, "intervai.db"))
	require.NoError(t, err)
	saved, err := st.AppendHistory(testutil.HistoryEntry("Kubernetes", 6, time.Now().Add(-time.Hour)))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "--home", home, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Kubernetes")
	assert.Contains(t, out, saved.ID)

	out, err = execute(t, "--home", home, "history", "--delete", saved.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+saved.ID)

	out, err = execute(t, "--home", home, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "No interviews yet")
}

func TestHistoryClearWithYes(t *testing.T) {
	home := testutil.TempHome(t, nil)
	st, err := session.NewStore(filepath.Join(home, "intervai.db"))
	require.NoError(t, err)
	_, err = st.AppendHistory(testutil.HistoryEntry("Rust", 7, time.Now()))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "--home", home, "history", "--clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared")

	st, err = session.NewStore(filepath.Join(home, "intervai.db"))
	require.NoError(t, err)
	defer st.Close()
	list, err := st.ListHistory(0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTranscribeCommand(t *testing.T) {
	srv, client := testutil.DemoService(t)
	sess := testutil.StartSession(t, client, "Audio")
	home := testutil.TempHome(t, map[string]string{"answer.wav": "RIFF1234"})

	out, err := execute(t, "--home", home, "--base-url", srv.URL,
		"transcribe", filepath.Join(home, "answer.wav"), "--session", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "[Transcribed 8 bytes of audio]\n", out)
}

func TestTranscribeWithoutSession(t *testing.T) {
	home := testutil.TempHome(t, map[string]string{"a.wav": "x"})
	_, err := execute(t, "--home", home, "transcribe", filepath.Join(home, "a.wav"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active session")
}

func TestResumeWithNothingSaved(t *testing.T) {
	home := testutil.TempHome(t, nil)
	_, err := execute(t, "--home", home, "resume")
	assert.ErrorIs(t, err, errNothingToResume)
}

func TestConfigShowMasksKey(t *testing.T) {
	home := testutil.TempHome(t, nil)
	out, err := execute(t, "--home", home, "--api-key", "sk-secret-9876", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "****9876")
	assert.NotContains(t, out, "sk-secret-9876")
	assert.Contains(t, out, "base_url:")
}

func TestConfigInitForce(t *testing.T) {
	home := testutil.TempHome(t, map[string]string{"config.yaml": "version: 1\n"})
	out, err := execute(t, "--home", home, "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote ")

	data, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "followup_threshold: 7")
}

func TestInvalidConfigIsReported(t *testing.T) {
	home := testutil.TempHome(t, map[string]string{"config.yaml": "store:\n  driver: mongo\n"})
	_, err := execute(t, "--home", home, "history", "--limit", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestStartAndRunPlain(t *testing.T) {
	color.NoColor = true
	srv, _ := testutil.DemoService(t)
	home := testutil.TempHome(t, nil)
	t.Cleanup(func() { resetFlags(rootCmd) })
	require.NoError(t, rootCmd.PersistentFlags().Set("home", home))
	require.NoError(t, rootCmd.PersistentFlags().Set("base-url", srv.URL))
	require.NoError(t, rootCmd.PersistentFlags().Set("api-key", "demo"))

	env, err := openEnvironment()
	require.NoError(t, err)
	defer env.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	setup := env.defaults()
	setup.Domain = "Databases"
	setup.TimeLimit = 0
	orch, err := env.start(ctx, setup)
	require.NoError(t, err)

	active := env.resumable()
	require.NotNil(t, active)
	assert.Equal(t, orch.Session().ID, active.Session.ID)

	answer := strings.Repeat("index ", 40)
	var out bytes.Buffer
	require.NoError(t, runPlain(ctx, orch, strings.NewReader("\n"+answer+"\n/end\n"), &out))
	assert.Contains(t, out.String(), "Interview complete")
	assert.Contains(t, out.String(), "Average score: 8/10 (Very Good)")

	assert.Nil(t, env.resumable())
	list, err := env.store.ListHistory(0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Databases", list[0].Session.Domain)
}

func TestStartRejectsBadKey(t *testing.T) {
	srv, _ := testutil.DemoService(t)
	home := testutil.TempHome(t, nil)
	t.Cleanup(func() { resetFlags(rootCmd) })
	require.NoError(t, rootCmd.PersistentFlags().Set("home", home))
	require.NoError(t, rootCmd.PersistentFlags().Set("base-url", srv.URL))

	env, err := openEnvironment()
	require.NoError(t, err)
	defer env.Close()

	setup := env.defaults()
	setup.APIKey = "pplx-abc"
	_, err = env.start(context.Background(), setup)
	require.Error(t, err)
	assert.Nil(t, env.resumable())
}

func TestRunServerStopsOnCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
