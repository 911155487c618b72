package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestStore_LookupMissReturnsFalse(t *testing.T) {
	s := NewStore(NewMemoryRepo(), nil, nil)

	if _, ok := s.Lookup(context.Background(), "+15550001111"); ok {
		t.Fatalf("expected miss for unknown identity")
	}
}

func TestStore_SaveThenLookupRoundTrip(t *testing.T) {
	s := NewStore(NewMemoryRepo(), nil, nil)
	ctx := context.Background()

	s.Save(ctx, "+15550001111", "conv_abc", "billing")

	rec, ok := s.Lookup(ctx, "+15550001111")
	if !ok {
		t.Fatalf("expected record after save")
	}
	if rec.ConversationRef != "conv_abc" || rec.LastAgent != "billing" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestStore_SaveSupersedesPriorRef(t *testing.T) {
	repo := NewMemoryRepo()
	s := NewStore(repo, nil, nil)
	ctx := context.Background()

	s.Save(ctx, "+15550001111", "conv_old", "general")
	s.Save(ctx, "+15550001111", "conv_new", "support")

	rec, ok := s.Lookup(ctx, "+15550001111")
	if !ok {
		t.Fatalf("expected record")
	}
	if rec.ConversationRef != "conv_new" || rec.LastAgent != "support" {
		t.Fatalf("expected latest write to win, got %+v", rec)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected one record per identity, got %d", repo.Len())
	}
}

func TestStore_LookupDegradesStatelessOnRepoError(t *testing.T) {
	repo := NewMemoryRepo()
	repo.FailAll = errors.New("pg down")
	s := NewStore(repo, nil, nil)

	if _, ok := s.Lookup(context.Background(), "+15550001111"); ok {
		t.Fatalf("repo failure must degrade to a miss, not a panic or hang")
	}
}

func TestStore_SaveSwallowsRepoError(t *testing.T) {
	repo := NewMemoryRepo()
	repo.FailAll = errors.New("pg down")
	s := NewStore(repo, nil, nil)

	// Must not panic or block; loss of continuity is logged only.
	s.Save(context.Background(), "+15550001111", "conv_abc", "general")
}

func TestStore_SaveIgnoresEmptyRef(t *testing.T) {
	repo := NewMemoryRepo()
	s := NewStore(repo, nil, nil)

	s.Save(context.Background(), "+15550001111", "", "general")
	if repo.Len() != 0 {
		t.Fatalf("empty conversation ref must not be persisted")
	}
}

type fakeLocker struct {
	mu       sync.Mutex
	acquired int
	released int
	deny     bool
}

func (l *fakeLocker) Acquire(ctx context.Context, identity string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deny {
		return nil, false
	}
	l.acquired++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
	}, true
}

func TestStore_SaveUsesLocker(t *testing.T) {
	lk := &fakeLocker{}
	s := NewStore(NewMemoryRepo(), lk, nil)

	s.Save(context.Background(), "+15550001111", "conv_abc", "general")

	if lk.acquired != 1 || lk.released != 1 {
		t.Fatalf("expected lock acquire/release pair, got %d/%d", lk.acquired, lk.released)
	}
}

func TestStore_SaveProceedsOnLockMiss(t *testing.T) {
	repo := NewMemoryRepo()
	s := NewStore(repo, &fakeLocker{deny: true}, nil)

	s.Save(context.Background(), "+15550001111", "conv_abc", "general")
	if repo.Len() != 1 {
		t.Fatalf("lock miss must not block the save")
	}
}

func TestStore_SweepIdleRemovesOnlyStaleRecords(t *testing.T) {
	repo := NewMemoryRepo()
	s := NewStore(repo, nil, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	repo.Upsert(ctx, Record{Identity: "+1555000_old", ConversationRef: "c1", LastActivity: now.Add(-48 * time.Hour)})
	repo.Upsert(ctx, Record{Identity: "+1555000_new", ConversationRef: "c2", LastActivity: now})

	n, err := s.SweepIdle(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one swept record, got %d", n)
	}
	if _, ok := s.Lookup(ctx, "+1555000_new"); !ok {
		t.Fatalf("fresh record must survive the sweep")
	}
	if _, ok := s.Lookup(ctx, "+1555000_old"); ok {
		t.Fatalf("stale record must be removed")
	}
}

func TestStore_ForgetIsIdempotent(t *testing.T) {
	s := NewStore(NewMemoryRepo(), nil, nil)
	ctx := context.Background()

	s.Save(ctx, "+15550001111", "conv_abc", "general")
	if err := s.Forget(ctx, "+15550001111"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if err := s.Forget(ctx, "+15550001111"); err != nil {
		t.Fatalf("second forget must be a no-op, got %v", err)
	}
	if _, ok := s.Lookup(ctx, "+15550001111"); ok {
		t.Fatalf("record must be gone after forget")
	}
}

func TestMemoryHistory_AppendAndRecent(t *testing.T) {
	h := NewMemoryHistory()
	ctx := context.Background()

	turns := []TranscriptTurn{
		{Speaker: SpeakerUser, Text: "hello", Timestamp: time.Now()},
		{Speaker: SpeakerAssistant, Text: "hi there", Timestamp: time.Now()},
	}
	if err := h.AppendTurns(ctx, "+15550001111", turns); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := h.RecentTurns(ctx, "+15550001111", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Text != "hello" || got[1].Text != "hi there" {
		t.Fatalf("unexpected turns: %+v", got)
	}
}

func TestMemoryHistory_LimitReturnsNewest(t *testing.T) {
	h := NewMemoryHistory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		h.AppendTurns(ctx, "id", []TranscriptTurn{{Speaker: SpeakerUser, Text: string(rune('a' + i))}})
	}

	got, err := h.RecentTurns(ctx, "id", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Text != "d" || got[1].Text != "e" {
		t.Fatalf("expected the two newest turns, got %+v", got)
	}
}
