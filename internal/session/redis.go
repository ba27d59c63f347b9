package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisOpTimeout bounds every Redis round trip.
const redisOpTimeout = 5 * time.Second

// RedisStore keeps the same records as Store in Redis, so a session can be
// resumed from another machine sharing the server.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, default "intervai"
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "intervai"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) activeKey() string       { return s.prefix + ":active" }
func (s *RedisStore) historyKey() string      { return s.prefix + ":history" }
func (s *RedisStore) historyIndexKey() string { return s.prefix + ":history:index" }

// SaveActive replaces the active-session record.
func (s *RedisStore) SaveActive(snap Snapshot) error {
	snap.Transcript = nonNilEntries(snap.Transcript)
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal active session: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := s.client.Set(ctx, s.activeKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("save active session: %w", err)
	}
	return nil
}

// LoadActive returns the active-session record, or nil if there is none.
func (s *RedisStore) LoadActive() (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.activeKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse active session: %w", err)
	}
	return &snap, nil
}

// EndActive stamps the end time on the active record if it belongs to sessionID.
func (s *RedisStore) EndActive(sessionID string, at time.Time) error {
	snap, err := s.LoadActive()
	if err != nil {
		return err
	}
	if snap == nil || snap.Session.ID != sessionID {
		return nil
	}
	at = at.UTC()
	snap.Session.EndedAt = &at
	return s.SaveActive(*snap)
}

// AppendHistory stores a finished session. An empty ID is filled in.
func (s *RedisStore) AppendHistory(h HistoryEntry) (HistoryEntry, error) {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	h.Transcript = nonNilEntries(h.Transcript)
	data, err := json.Marshal(h)
	if err != nil {
		return h, fmt.Errorf("marshal history entry: %w", err)
	}

	ended := h.Session.StartedAt
	if h.Session.EndedAt != nil {
		ended = *h.Session.EndedAt
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.historyKey(), h.ID, data)
		p.ZAdd(ctx, s.historyIndexKey(), redis.Z{Score: float64(ended.UnixMilli()), Member: h.ID})
		return nil
	})
	if err != nil {
		return h, fmt.Errorf("insert history entry: %w", err)
	}
	return h, nil
}

// ListHistory returns finished sessions, most recent first. limit <= 0
// returns all of them.
func (s *RedisStore) ListHistory(limit int) ([]HistoryEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, s.historyIndexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("query history index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	records, err := s.client.HMGet(ctx, s.historyKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		str, ok := rec.(string)
		if !ok {
			continue
		}
		var h HistoryEntry
		if err := json.Unmarshal([]byte(str), &h); err != nil {
			return nil, fmt.Errorf("parse history entry: %w", err)
		}
		entries = append(entries, h)
	}
	return entries, nil
}

// DeleteHistory removes one history entry.
func (s *RedisStore) DeleteHistory(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, s.historyKey(), id)
		p.ZRem(ctx, s.historyIndexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	return nil
}

// ClearHistory removes every history entry.
func (s *RedisStore) ClearHistory() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := s.client.Del(ctx, s.historyKey(), s.historyIndexKey()).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
