package demo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intervai-dev/intervai/internal/transport"
)

func newClient(t *testing.T) *transport.Client {
	t.Helper()
	srv := httptest.NewServer(NewServer().Routes())
	t.Cleanup(srv.Close)
	return transport.New(srv.URL)
}

func startSession(t *testing.T, c *transport.Client) transport.StartResult {
	t.Helper()
	res, err := c.Start(context.Background(), transport.StartRequest{
		Provider: "openai", APIKey: "demo", Domain: "Distributed Systems", Difficulty: "medium",
	})
	require.NoError(t, err)
	return res
}

func TestStartDefaultsModel(t *testing.T) {
	c := newClient(t)
	res := startSession(t, c)

	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, "gpt-3.5-turbo", res.Model)
}

func TestStartRejectsMismatchedKey(t *testing.T) {
	c := newClient(t)
	_, err := c.Start(context.Background(), transport.StartRequest{
		Provider: "anthropic", APIKey: "pplx-abc", Domain: "Go", Difficulty: "basic",
	})
	require.Error(t, err)
	assert.Equal(t, transport.KindBadRequest, transport.KindOf(err))
	assert.Contains(t, transport.UserMessage(err), "perplexity")
}

func TestStartRejectsUnknownProvider(t *testing.T) {
	c := newClient(t)
	_, err := c.Start(context.Background(), transport.StartRequest{
		Provider: "mistral", APIKey: "demo", Domain: "Go", Difficulty: "basic",
	})
	assert.Equal(t, transport.KindBadRequest, transport.KindOf(err))
}

func TestInterviewRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	res := startSession(t, c)

	q, err := c.RequestQuestion(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Contains(t, q.Text, "Distributed Systems")

	fb, err := c.SubmitAnswer(ctx, res.SessionID, "I am not sure")
	require.NoError(t, err)
	require.NotNil(t, fb.Score)
	assert.Equal(t, 50.0, *fb.Score)
	assert.Equal(t, VerdictIncorrect, fb.Verdict)
	assert.Contains(t, fb.Content(), "Correct answer:")

	follow, err := c.RequestFollowup(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Contains(t, follow.Text, q.Text)

	long := strings.Repeat("word ", 40)
	fb, err = c.SubmitAnswer(ctx, res.SessionID, long)
	require.NoError(t, err)
	assert.Equal(t, 75.0, *fb.Score)
	assert.Equal(t, VerdictCorrect, fb.Verdict)

	ack, err := c.EndSession(ctx, res.SessionID)
	require.NoError(t, err)
	require.NotNil(t, ack.Summary)
	assert.Equal(t, 62.5, ack.Summary.OverallScore)
	assert.Len(t, ack.Summary.QAPairs, 2)
	assert.Len(t, ack.Summary.WeakAreas["Distributed Systems"], 1)

	_, err = c.RequestQuestion(ctx, res.SessionID)
	assert.Equal(t, transport.KindNotFound, transport.KindOf(err))
	assert.Contains(t, transport.UserMessage(err), "expired")
}

func TestEndWithoutAnswersSendsEmptyWeakAreas(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	res := startSession(t, c)

	ack, err := c.EndSession(ctx, res.SessionID)
	require.NoError(t, err)
	require.NotNil(t, ack.Summary)
	assert.Zero(t, ack.Summary.OverallScore)
	assert.Empty(t, ack.Summary.WeakAreas)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	res := startSession(t, c)

	got, err := c.Restore(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res, got)

	_, err = c.Restore(ctx, "missing")
	assert.Equal(t, transport.KindNotFound, transport.KindOf(err))
}

func TestTranscribe(t *testing.T) {
	c := newClient(t)
	res := startSession(t, c)

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o600))

	text, err := c.Transcribe(context.Background(), res.SessionID, path)
	require.NoError(t, err)
	assert.Equal(t, "[Transcribed 128 bytes of audio]", text)
}

func TestHealthHead(t *testing.T) {
	srv := httptest.NewServer(NewServer().Routes())
	defer srv.Close()

	resp, err := http.Head(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		words   int
		score   int
		verdict string
	}{
		{"too short", 2, 0, VerdictIncorrect},
		{"minimal", 3, 50, VerdictIncorrect},
		{"ten words", 10, 50, VerdictIncorrect},
		{"fourteen words", 14, 56, VerdictPartial},
		{"long", 30, 75, VerdictCorrect},
		{"capped", 200, 75, VerdictCorrect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := evaluate("Q?", strings.TrimSpace(strings.Repeat("w ", tt.words)), "Go")
			assert.Equal(t, tt.score, ev.Score)
			assert.Equal(t, tt.verdict, ev.Verdict)
			assert.NotEmpty(t, ev.Feedback)
			assert.Contains(t, ev.CorrectAnswer, "Go")
		})
	}
}

func TestInferProvider(t *testing.T) {
	assert.Equal(t, "openai", inferProvider("sk-live-123"))
	assert.Equal(t, "perplexity", inferProvider("pplx-1"))
	assert.Equal(t, "grok", inferProvider("gsk_1"))
	assert.Equal(t, "unknown", inferProvider("sk-test-1"))
	assert.Equal(t, "unknown", inferProvider("demo"))
	assert.Equal(t, "unknown", inferProvider("AIza..."))
}

func TestPickQuestionCycles(t *testing.T) {
	seen := map[string]bool{}
	for n := range len(questionTemplates) {
		seen[pickQuestion("abc", "Go", n)] = true
	}
	assert.Len(t, seen, len(questionTemplates))
}
