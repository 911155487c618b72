package conversation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"voicebridge/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// IdentityLocker serializes conversation-record writes for one identity
// across the voice and text paths. Locking is best-effort: a locker failure
// degrades to last-write-wins, it never blocks a call.
type IdentityLocker interface {
	Acquire(ctx context.Context, identity string) (release func(), acquired bool)
}

// Store wraps a Repository with the failure semantics the call path needs:
// persistence problems degrade the session to stateless mode instead of
// failing the call. All operations log with the identity for correlation.
type Store struct {
	repo   Repository
	locker IdentityLocker
	log    *slog.Logger
	clock  func() time.Time
}

func NewStore(repo Repository, locker IdentityLocker, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{repo: repo, locker: locker, log: log, clock: time.Now}
}

// Lookup returns the identity's record and true, or a zero record and false
// when there is no prior conversation or the repository is unavailable.
// A false return means "start fresh, no prior reference to attach".
func (s *Store) Lookup(ctx context.Context, identity string) (Record, bool) {
	rec, err := s.repo.Get(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		return Record{}, false
	}
	if err != nil {
		// PersistenceError: stateless mode, never block call progress.
		s.log.Warn("conversation lookup failed, proceeding stateless", "identity", identity, "err", err)
		return Record{}, false
	}
	return rec, true
}

// Save upserts the identity's record. Errors are logged, not returned: a
// failed save loses continuity for the next call but must not affect this one.
func (s *Store) Save(ctx context.Context, identity, conversationRef, lastAgent string) {
	if identity == "" || conversationRef == "" {
		return
	}

	if s.locker != nil {
		if release, ok := s.locker.Acquire(ctx, identity); ok {
			defer release()
		}
		// Lock miss: proceed last-write-wins rather than block.
	}

	rec := Record{
		Identity:        identity,
		ConversationRef: conversationRef,
		LastAgent:       lastAgent,
		LastActivity:    s.clock().UTC(),
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		s.log.Warn("conversation save failed", "identity", identity, "err", err)
	}
}

// Forget deletes the identity's record.
func (s *Store) Forget(ctx context.Context, identity string) error {
	return s.repo.Delete(ctx, identity)
}

// SweepIdle removes records idle longer than window.
func (s *Store) SweepIdle(ctx context.Context, window time.Duration) (int64, error) {
	return s.repo.Sweep(ctx, s.clock().UTC().Add(-window))
}

// RunRetentionSweep periodically deletes records past the retention window
// until ctx is canceled.
func (s *Store) RunRetentionSweep(ctx context.Context, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("retention sweep started", "interval", interval, "window", window)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepIdle(ctx, window)
			if err != nil {
				s.log.Warn("retention sweep failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("retention sweep removed records", "count", n)
			}
		}
	}
}

// RedisIdentityLocker implements IdentityLocker on the shared Redis used by
// both messaging paths.
type RedisIdentityLocker struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewRedisIdentityLocker(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *RedisIdentityLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisIdentityLocker{rdb: rdb, ttl: ttl, log: log}
}

func (l *RedisIdentityLocker) Acquire(ctx context.Context, identity string) (func(), bool) {
	key := "conversation:lock:" + identity
	owner := uuid.NewString()

	ok, err := utils.AcquireIdentityLock(ctx, l.rdb, key, owner, l.ttl)
	if err != nil {
		l.log.Warn("identity lock acquire failed", "identity", identity, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return func() {
		if err := utils.ReleaseIdentityLock(context.Background(), l.rdb, key, owner); err != nil {
			l.log.Warn("identity lock release failed", "identity", identity, "err", err)
		}
	}, true
}
