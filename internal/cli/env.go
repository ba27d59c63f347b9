package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/intervai-dev/intervai/internal/clock"
	"github.com/intervai-dev/intervai/internal/config"
	"github.com/intervai-dev/intervai/internal/connectivity"
	"github.com/intervai-dev/intervai/internal/interview"
	"github.com/intervai-dev/intervai/internal/log"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/transport"
	"github.com/intervai-dev/intervai/internal/tui"
	"github.com/intervai-dev/intervai/internal/tui/views"
)

// sessionStore is what the commands need from either storage backend.
type sessionStore interface {
	interview.Store
	LoadActive() (*session.Snapshot, error)
	ListHistory(limit int) ([]session.HistoryEntry, error)
	DeleteHistory(id string) error
	ClearHistory() error
	Close() error
}

// environment holds everything a command needs, built from the layered
// configuration.
type environment struct {
	home   string
	cfg    *config.Config
	store  sessionStore
	logger *log.Logger
	client *transport.Client
}

// loadConfig resolves the data directory and the effective configuration,
// including flag overrides.
func loadConfig() (string, *config.Config, error) {
	home := homeFlag
	if home == "" {
		h, err := config.HomeDir()
		if err != nil {
			return "", nil, err
		}
		home = h
	}

	cfg, err := config.Load(home)
	if err != nil {
		return "", nil, fmt.Errorf("loading config: %w", err)
	}
	if baseURLFlag != "" {
		cfg.Service.BaseURL = baseURLFlag
	}
	if apiKeyFlag != "" {
		cfg.APIKey = apiKeyFlag
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid config: %w", err)
	}
	return home, cfg, nil
}

// openEnvironment loads config and opens the store, logger and client.
func openEnvironment() (*environment, error) {
	home, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	logger, err := log.NewLogger(cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: event log disabled: %v\n", err)
		logger = nil
	}

	return &environment{
		home:   home,
		cfg:    cfg,
		store:  store,
		logger: logger,
		client: transport.New(cfg.Service.BaseURL, transport.WithTimeout(cfg.RequestTimeoutDuration())),
	}, nil
}

func openStore(cfg *config.Config) (sessionStore, error) {
	switch cfg.Store.Driver {
	case "redis":
		st, err := session.NewRedisStore(session.RedisOptions{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		return st, nil
	default:
		st, err := session.NewStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		return st, nil
	}
}

// Close releases the store.
func (e *environment) Close() {
	if err := e.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: closing store: %v\n", err)
	}
}

// defaults returns the setup form prefilled from config.
func (e *environment) defaults() views.Setup {
	iv := e.cfg.Interview
	return views.Setup{
		APIKey:     e.cfg.APIKey,
		Provider:   iv.Provider,
		Domain:     iv.Domain,
		Difficulty: iv.Difficulty,
		Model:      iv.Model,
		TimeLimit:  config.ClampTimeLimit(iv.TimeLimit),
		StressMode: iv.StressMode,
	}
}

// startSession opens a session on the service and saves it as the active
// record.
func (e *environment) startSession(ctx context.Context, s views.Setup) (session.Session, error) {
	if err := config.ValidateSetup(s.APIKey, s.Provider, s.Domain, s.Difficulty); err != nil {
		return session.Session{}, err
	}
	res, err := e.client.Start(ctx, transport.StartRequest{
		Provider:   s.Provider,
		APIKey:     s.APIKey,
		Domain:     strings.TrimSpace(s.Domain),
		Difficulty: s.Difficulty,
		Model:      s.Model,
	})
	if err != nil {
		return session.Session{}, err
	}

	provider := res.Provider
	if provider == "" {
		provider = s.Provider
	}
	domain := res.Domain
	if domain == "" {
		domain = strings.TrimSpace(s.Domain)
	}
	sess := session.Session{
		ID:         res.SessionID,
		Provider:   provider,
		Domain:     domain,
		Model:      res.Model,
		Difficulty: s.Difficulty,
		TimeLimit:  config.ClampTimeLimit(s.TimeLimit),
		StressMode: s.StressMode,
	}
	sess.StartedAt = clock.Real().Now().UTC()

	if err := e.store.SaveActive(session.Snapshot{Session: sess}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not save session: %v\n", err)
	}
	if e.logger != nil {
		_ = e.logger.Append(log.LogEvent{Event: log.EventSessionStarted, SessionID: sess.ID,
			Data: map[string]any{"domain": sess.Domain, "provider": sess.Provider, "difficulty": sess.Difficulty}})
	}
	return sess, nil
}

// orchestratorFor builds the orchestrator of sess, resuming from restore
// when given. The connectivity prober is started and stopped with ctx.
func (e *environment) orchestratorFor(ctx context.Context, sess session.Session, restore *session.Snapshot, cues *tui.BellCues) *interview.Orchestrator {
	clk := clock.Real()
	prober := connectivity.NewProber(e.client.BaseURL(), clk, e.cfg.ProbeIntervalDuration(), e.cfg.ProbeTimeoutDuration())
	prober.Start(ctx)

	cfg := interview.Config{
		Session:           sess,
		Transport:         e.client,
		Monitor:           prober,
		Clock:             clk,
		Store:             e.store,
		Logger:            e.logger,
		FollowupThreshold: float64(e.cfg.Interview.FollowupThreshold),
		RequestTimeout:    e.cfg.RequestTimeoutDuration(),
		Restore:           restore,
	}
	if cues != nil {
		cfg.Cues = cues
	}
	return interview.New(cfg)
}

// useTUI reports whether the interactive screen should be used.
func useTUI() bool {
	return !plainFlag && tui.IsTTY()
}
