package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/intervai-dev/intervai/internal/score"
)

// backend is the contract shared by Store and RedisStore.
type backend interface {
	SaveActive(Snapshot) error
	LoadActive() (*Snapshot, error)
	EndActive(string, time.Time) error
	AppendHistory(HistoryEntry) (HistoryEntry, error)
	ListHistory(int) ([]HistoryEntry, error)
	DeleteHistory(string) error
	ClearHistory() error
	Close() error
}

func newSQLite(t *testing.T) backend {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "intervai.db"))
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRedis(t *testing.T) backend {
	t.Helper()
	addr := os.Getenv("INTERVAI_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("INTERVAI_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(RedisOptions{Addr: addr, Prefix: "intervai-test-" + t.Name()})
	if err != nil {
		t.Fatalf("NewRedisStore() error: %v", err)
	}
	t.Cleanup(func() {
		_ = s.ClearHistory()
		_ = s.client.Del(context.Background(), s.activeKey()).Err()
		_ = s.Close()
	})
	return s
}

func sampleSnapshot() Snapshot {
	raw := 55.0
	norm := 6.0
	started := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return Snapshot{
		Session: Session{
			ID: "s-1", Provider: "openai", Domain: "Go", Model: "gpt-3.5-turbo",
			Difficulty: "medium", TimeLimit: 120, StressMode: true, StartedAt: started,
		},
		Transcript: []Entry{
			{ID: "01", Kind: KindQuestion, Content: "Q1", Timestamp: started},
			{ID: "02", Kind: KindAnswer, Content: "A1", Timestamp: started.Add(time.Minute)},
			{ID: "03", Kind: KindFeedback, Content: "F1", Timestamp: started.Add(2 * time.Minute), Score: &raw, Normalized: &norm},
		},
		Stats: score.Stats{QuestionsAsked: 1, Scored: 1, AverageScore: 6},
	}
}

func testActiveRoundtrip(t *testing.T, s backend) {
	got, err := s.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive() on empty store error: %v", err)
	}
	if got != nil {
		t.Fatalf("LoadActive() on empty store = %+v, want nil", got)
	}

	snap := sampleSnapshot()
	if err := s.SaveActive(snap); err != nil {
		t.Fatalf("SaveActive() error: %v", err)
	}
	got, err = s.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive() error: %v", err)
	}
	if got.Session.ID != "s-1" || got.Session.TimeLimit != 120 || !got.Session.StressMode {
		t.Errorf("Session = %+v, want s-1/120/stress", got.Session)
	}
	if !got.Session.StartedAt.Equal(snap.Session.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.Session.StartedAt, snap.Session.StartedAt)
	}
	if !got.Session.Resumable() {
		t.Error("Resumable() = false for a session with no end time")
	}
	if len(got.Transcript) != 3 || got.Transcript[2].Normalized == nil || *got.Transcript[2].Normalized != 6 {
		t.Errorf("Transcript = %+v, want 3 entries ending in normalized 6", got.Transcript)
	}
	if got.Stats.AverageScore != 6 {
		t.Errorf("Stats.AverageScore = %v, want 6", got.Stats.AverageScore)
	}

	if err := s.EndActive("other", time.Now()); err != nil {
		t.Fatalf("EndActive(other) error: %v", err)
	}
	got, _ = s.LoadActive()
	if !got.Session.Resumable() {
		t.Error("EndActive for another session ended this one")
	}

	if err := s.EndActive("s-1", snap.Session.StartedAt.Add(time.Hour)); err != nil {
		t.Fatalf("EndActive() error: %v", err)
	}
	got, _ = s.LoadActive()
	if got.Session.Resumable() {
		t.Error("Resumable() = true after EndActive")
	}
}

func testHistory(t *testing.T, s backend) {
	base := sampleSnapshot()
	var ids []string
	for i := 0; i < 3; i++ {
		ended := base.Session.StartedAt.Add(time.Duration(i+1) * time.Hour)
		sess := base.Session
		sess.EndedAt = &ended
		h, err := s.AppendHistory(HistoryEntry{Session: sess, Stats: base.Stats, Transcript: base.Transcript})
		if err != nil {
			t.Fatalf("AppendHistory() error: %v", err)
		}
		if h.ID == "" {
			t.Fatal("AppendHistory() left ID empty")
		}
		ids = append(ids, h.ID)
	}

	list, err := s.ListHistory(0)
	if err != nil {
		t.Fatalf("ListHistory() error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(ListHistory) = %d, want 3", len(list))
	}
	if list[0].ID != ids[2] {
		t.Errorf("first entry = %s, want most recent %s", list[0].ID, ids[2])
	}

	limited, _ := s.ListHistory(2)
	if len(limited) != 2 {
		t.Errorf("len(ListHistory(2)) = %d, want 2", len(limited))
	}

	if err := s.DeleteHistory(ids[1]); err != nil {
		t.Fatalf("DeleteHistory() error: %v", err)
	}
	list, _ = s.ListHistory(0)
	if len(list) != 2 {
		t.Errorf("len after delete = %d, want 2", len(list))
	}

	if err := s.ClearHistory(); err != nil {
		t.Fatalf("ClearHistory() error: %v", err)
	}
	list, _ = s.ListHistory(0)
	if len(list) != 0 {
		t.Errorf("len after clear = %d, want 0", len(list))
	}
}

func TestSQLiteActiveRoundtrip(t *testing.T) { testActiveRoundtrip(t, newSQLite(t)) }
func TestSQLiteHistory(t *testing.T)         { testHistory(t, newSQLite(t)) }
func TestRedisActiveRoundtrip(t *testing.T)  { testActiveRoundtrip(t, newRedis(t)) }
func TestRedisHistory(t *testing.T)          { testHistory(t, newRedis(t)) }

func TestResumableNil(t *testing.T) {
	var s *Session
	if s.Resumable() {
		t.Error("nil Session is resumable")
	}
}
