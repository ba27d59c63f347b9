// Package testutil provides test helper utilities for intervai tests.
package testutil

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/intervai-dev/intervai/internal/demo"
	"github.com/intervai-dev/intervai/internal/score"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/transport"
)

// TempHome creates a temporary data directory with the given files and
// returns its path. Files is a map of relative path -> content.
// The directory is automatically cleaned up when the test finishes.
func TempHome(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// DemoService starts the in-process demo service and returns a client for
// it. The server is closed when the test finishes.
func DemoService(t *testing.T) (*httptest.Server, *transport.Client) {
	t.Helper()
	srv := httptest.NewServer(demo.NewServer().Routes())
	t.Cleanup(srv.Close)
	return srv, transport.New(srv.URL, transport.WithTimeout(5*time.Second))
}

// StartSession opens a demo session and returns its record.
func StartSession(t *testing.T, c *transport.Client, domain string) session.Session {
	t.Helper()
	res, err := c.Start(context.Background(), transport.StartRequest{
		Provider: "openai", APIKey: "demo", Domain: domain, Difficulty: "basic",
	})
	if err != nil {
		t.Fatalf("starting demo session: %v", err)
	}
	return session.Session{
		ID:         res.SessionID,
		Provider:   res.Provider,
		Domain:     res.Domain,
		Model:      res.Model,
		Difficulty: "basic",
		StartedAt:  time.Now().UTC(),
	}
}

// OpenStore opens a SQLite store in a temporary directory.
func OpenStore(t *testing.T) *session.Store {
	t.Helper()
	st, err := session.NewStore(filepath.Join(t.TempDir(), "intervai.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// HistoryEntry returns a finished session with one scored exchange.
func HistoryEntry(domain string, avg float64, at time.Time) session.HistoryEntry {
	ended := at.Add(5 * time.Minute)
	raw := avg * 10
	return session.HistoryEntry{
		Session: session.Session{
			ID: "sess-" + domain, Provider: "openai", Domain: domain, Difficulty: "medium",
			StartedAt: at, EndedAt: &ended,
		},
		Stats: score.Stats{QuestionsAsked: 1, Scored: 1, AverageScore: avg, Elapsed: 5 * time.Minute},
		Transcript: []session.Entry{
			{ID: "1", Kind: session.KindQuestion, Content: "What is a goroutine?", Timestamp: at},
			{ID: "2", Kind: session.KindAnswer, Content: "A lightweight thread.", Timestamp: at},
			{ID: "3", Kind: session.KindFeedback, Content: "Good.", Timestamp: at, Score: &raw, Normalized: &avg},
		},
	}
}
