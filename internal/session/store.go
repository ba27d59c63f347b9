package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store provides SQLite-backed persistence for the active session and the
// history of finished sessions.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database at dbPath and creates tables if they don't exist.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS active_session (
		slot INTEGER PRIMARY KEY CHECK (slot = 1),
		session_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		domain TEXT NOT NULL,
		model TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		time_limit INTEGER NOT NULL DEFAULT 0,
		stress_mode INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		transcript TEXT NOT NULL DEFAULT '[]',
		stats TEXT NOT NULL DEFAULT '{}',
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		ended_at INTEGER NOT NULL,
		average_score REAL NOT NULL DEFAULT 0,
		questions_asked INTEGER NOT NULL DEFAULT 0,
		record TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS history_ended_at ON history (ended_at DESC);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveActive replaces the active-session record.
func (s *Store) SaveActive(snap Snapshot) error {
	transcript, err := json.Marshal(nonNilEntries(snap.Transcript))
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	stats, err := json.Marshal(snap.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	sess := snap.Session
	_, err = s.db.Exec(
		`INSERT INTO active_session (slot, session_id, provider, domain, model, difficulty,
		                             time_limit, stress_mode, started_at, ended_at, transcript, stats, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET
		   session_id = excluded.session_id, provider = excluded.provider, domain = excluded.domain,
		   model = excluded.model, difficulty = excluded.difficulty, time_limit = excluded.time_limit,
		   stress_mode = excluded.stress_mode, started_at = excluded.started_at, ended_at = excluded.ended_at,
		   transcript = excluded.transcript, stats = excluded.stats, updated_at = excluded.updated_at`,
		sess.ID, sess.Provider, sess.Domain, sess.Model, sess.Difficulty,
		sess.TimeLimit, sess.StressMode, toMillis(sess.StartedAt), nullMillis(sess.EndedAt),
		string(transcript), string(stats), toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save active session: %w", err)
	}
	return nil
}

// LoadActive returns the active-session record, or nil if there is none.
func (s *Store) LoadActive() (*Snapshot, error) {
	row := s.db.QueryRow(
		`SELECT session_id, provider, domain, model, difficulty, time_limit, stress_mode,
		        started_at, ended_at, transcript, stats
		 FROM active_session WHERE slot = 1`,
	)

	var (
		snap       Snapshot
		startedAt  int64
		endedAt    sql.NullInt64
		transcript string
		stats      string
	)
	sess := &snap.Session
	err := row.Scan(&sess.ID, &sess.Provider, &sess.Domain, &sess.Model, &sess.Difficulty,
		&sess.TimeLimit, &sess.StressMode, &startedAt, &endedAt, &transcript, &stats)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan active session: %w", err)
	}

	sess.StartedAt = fromMillis(startedAt)
	if endedAt.Valid {
		t := fromMillis(endedAt.Int64)
		sess.EndedAt = &t
	}
	if err := json.Unmarshal([]byte(transcript), &snap.Transcript); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(stats), &snap.Stats); err != nil {
		return nil, fmt.Errorf("parse stats: %w", err)
	}
	return &snap, nil
}

// EndActive stamps the end time on the active record if it belongs to
// sessionID. Once ended it is never offered for resumption.
func (s *Store) EndActive(sessionID string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE active_session SET ended_at = ?, updated_at = ? WHERE slot = 1 AND session_id = ?`,
		toMillis(at), toMillis(time.Now()), sessionID,
	)
	if err != nil {
		return fmt.Errorf("end active session: %w", err)
	}
	return nil
}

// AppendHistory stores a finished session. An empty ID is filled in.
func (s *Store) AppendHistory(h HistoryEntry) (HistoryEntry, error) {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	h.Transcript = nonNilEntries(h.Transcript)
	record, err := json.Marshal(h)
	if err != nil {
		return h, fmt.Errorf("marshal history entry: %w", err)
	}

	ended := h.Session.StartedAt
	if h.Session.EndedAt != nil {
		ended = *h.Session.EndedAt
	}
	_, err = s.db.Exec(
		`INSERT INTO history (id, session_id, domain, ended_at, average_score, questions_asked, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Session.ID, h.Session.Domain, toMillis(ended), h.Stats.AverageScore, h.Stats.QuestionsAsked, string(record),
	)
	if err != nil {
		return h, fmt.Errorf("insert history entry: %w", err)
	}
	return h, nil
}

// ListHistory returns finished sessions, most recent first. limit <= 0
// returns all of them.
func (s *Store) ListHistory(limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT record FROM history ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []HistoryEntry
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		var h HistoryEntry
		if err := json.Unmarshal([]byte(record), &h); err != nil {
			return nil, fmt.Errorf("parse history entry: %w", err)
		}
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// DeleteHistory removes one history entry. Deleting an unknown id is not an error.
func (s *Store) DeleteHistory(id string) error {
	if _, err := s.db.Exec(`DELETE FROM history WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	return nil
}

// ClearHistory removes every history entry.
func (s *Store) ClearHistory() error {
	if _, err := s.db.Exec(`DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func nonNilEntries(e []Entry) []Entry {
	if e == nil {
		return []Entry{}
	}
	return e
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
