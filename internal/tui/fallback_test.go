package tui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intervai-dev/intervai/internal/clock"
	"github.com/intervai-dev/intervai/internal/interview"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/testutil"
)

func runFallback(t *testing.T, input string) (interview.Summary, string, *session.Store) {
	t.Helper()
	color.NoColor = true

	_, client := testutil.DemoService(t)
	sess := testutil.StartSession(t, client, "Databases")
	store := testutil.OpenStore(t)
	orch := interview.New(interview.Config{Session: sess, Transport: client, Store: store})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	sum, err := NewFallbackRunner(orch, strings.NewReader(input), &out).Run(ctx)
	require.NoError(t, err)
	return sum, out.String(), store
}

func TestFallbackAnswersAndEnds(t *testing.T) {
	long := strings.Repeat("detail ", 40)
	sum, out, store := runFallback(t, "\n"+long+"\n/end\n")

	assert.Equal(t, 1, sum.Stats.QuestionsAsked)
	assert.Equal(t, 8.0, sum.Stats.AverageScore)
	require.Len(t, sum.Transcript, 3)
	assert.Equal(t, session.KindFeedback, sum.Transcript[2].Kind)
	assert.NotNil(t, sum.Remote)

	assert.Contains(t, out, "Q: ")
	assert.Contains(t, out, "Feedback (8/10, Correct):")

	hist, err := store.ListHistory(0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, sum.Session.ID, hist[0].Session.ID)
}

func TestFallbackLowScoreAsksFollowup(t *testing.T) {
	sum, out, _ := runFallback(t, "\nnot really sure\n/end\n")

	assert.Equal(t, 2, sum.Stats.QuestionsAsked)
	require.Len(t, sum.Transcript, 4)
	last := sum.Transcript[3]
	assert.Equal(t, session.KindQuestion, last.Kind)
	assert.True(t, last.FollowUp)
	assert.Contains(t, out, "Follow-up:")
}

func TestFallbackEndsOnEOF(t *testing.T) {
	sum, _, store := runFallback(t, "\n")

	assert.Equal(t, 1, sum.Stats.QuestionsAsked)
	require.NotNil(t, sum.Session.EndedAt)

	active, err := store.LoadActive()
	require.NoError(t, err)
	if active != nil {
		assert.False(t, active.Session.Resumable())
	}
}

func TestFallbackStatsCommand(t *testing.T) {
	_, out, _ := runFallback(t, "\n/followup\n/stats\n/end\n")
	assert.Contains(t, out, "Questions: ")
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	entry := testutil.HistoryEntry("Networking", 7.5, time.Now())

	var out bytes.Buffer
	PrintSummary(&out, interview.Summary{Session: entry.Session, Stats: entry.Stats})

	s := out.String()
	assert.Contains(t, s, "Domain: Networking")
	assert.Contains(t, s, "Average score: 7.5/10 (Good)")
	assert.Contains(t, s, "Duration: 5:00")
}

func TestBellCues(t *testing.T) {
	var out bytes.Buffer
	b := NewBellCues(&out)
	b.Cue(3)
	b.FinalCue()
	assert.Equal(t, "\a\a\a", out.String())

	var nilCues *BellCues
	nilCues.Cue(1)
}

// syncBuffer is a bytes.Buffer safe to read while the runner writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, out *syncBuffer, want string, step func()) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("output never contained %q:\n%s", want, out.String())
		}
		if step != nil {
			step()
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFallbackExpiredQuestionOffersFollowup(t *testing.T) {
	color.NoColor = true

	_, client := testutil.DemoService(t)
	sess := testutil.StartSession(t, client, "Databases")
	sess.TimeLimit = 30
	fc := clock.NewFake(sess.StartedAt)
	orch := interview.New(interview.Config{Session: sess, Transport: client, Clock: fc})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in, feed := io.Pipe()
	out := &syncBuffer{}
	done := make(chan interview.Summary, 1)
	go func() {
		sum, _ := NewFallbackRunner(orch, in, out).Run(ctx)
		done <- sum
	}()

	_, _ = io.WriteString(feed, "\n")
	waitFor(t, out, "Q: ", nil)
	waitFor(t, out, "Time's up", func() { fc.Advance(time.Second) })
	assert.Contains(t, out.String(), "Time's up. Request a follow-up (/followup) or end the interview (/end).")

	_, _ = io.WriteString(feed, "/followup\n")
	waitFor(t, out, "Follow-up:", nil)
	require.NoError(t, feed.Close())

	select {
	case sum := <-done:
		assert.Equal(t, 2, sum.Stats.QuestionsAsked)
		require.Len(t, sum.Transcript, 2)
		assert.True(t, sum.Transcript[1].FollowUp)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not finish")
	}
}
