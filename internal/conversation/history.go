package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// HistorySource provides the recent cross-channel turns for an identity.
// The voice relay reads them to prime a new realtime session and appends the
// call's transcript on teardown so the text path sees what was said.
type HistorySource interface {
	RecentTurns(ctx context.Context, identity string, limit int) ([]TranscriptTurn, error)
	AppendTurns(ctx context.Context, identity string, turns []TranscriptTurn) error
}

// RedisHistory keeps per-identity turn lists in Redis, newest first.
// Each turn is one JSON-encoded list element; the list is trimmed to maxTurns
// and refreshed with ttl on every append.
type RedisHistory struct {
	rdb      *redis.Client
	maxTurns int
	ttl      time.Duration
}

func NewRedisHistory(rdb *redis.Client, maxTurns int, ttl time.Duration) *RedisHistory {
	if maxTurns <= 0 {
		maxTurns = 200
	}
	return &RedisHistory{rdb: rdb, maxTurns: maxTurns, ttl: ttl}
}

func historyKey(identity string) string {
	return "conversation:history:" + identity
}

func (h *RedisHistory) RecentTurns(ctx context.Context, identity string, limit int) ([]TranscriptTurn, error) {
	if identity == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = h.maxTurns
	}

	raw, err := h.rdb.LRange(ctx, historyKey(identity), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("history read: %w", err)
	}

	// Stored newest first; return oldest first for prompt assembly.
	turns := make([]TranscriptTurn, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var t TranscriptTurn
		if err := json.Unmarshal([]byte(raw[i]), &t); err != nil {
			continue // skip malformed entries rather than fail the read
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (h *RedisHistory) AppendTurns(ctx context.Context, identity string, turns []TranscriptTurn) error {
	if identity == "" {
		return ErrInvalidArgument
	}
	if len(turns) == 0 {
		return nil
	}

	key := historyKey(identity)
	pipe := h.rdb.TxPipeline()
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("history encode: %w", err)
		}
		pipe.LPush(ctx, key, b)
	}
	pipe.LTrim(ctx, key, 0, int64(h.maxTurns-1))
	if h.ttl > 0 {
		pipe.Expire(ctx, key, h.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	return nil
}

// MemoryHistory is an in-memory HistorySource for tests.
type MemoryHistory struct {
	turns map[string][]TranscriptTurn

	// FailAll makes every operation return the given error.
	FailAll error
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{turns: map[string][]TranscriptTurn{}}
}

func (h *MemoryHistory) RecentTurns(ctx context.Context, identity string, limit int) ([]TranscriptTurn, error) {
	if h.FailAll != nil {
		return nil, h.FailAll
	}
	all := h.turns[identity]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]TranscriptTurn, len(all))
	copy(out, all)
	return out, nil
}

func (h *MemoryHistory) AppendTurns(ctx context.Context, identity string, turns []TranscriptTurn) error {
	if h.FailAll != nil {
		return h.FailAll
	}
	h.turns[identity] = append(h.turns[identity], turns...)
	return nil
}
