package conversation

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory repository for tests and early development.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]Record

	// FailAll makes every operation return the given error; used by tests to
	// exercise the store's stateless degradation.
	FailAll error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: map[string]Record{}}
}

func (r *MemoryRepo) Get(ctx context.Context, identity string) (Record, error) {
	if identity == "" {
		return Record{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAll != nil {
		return Record{}, r.FailAll
	}
	rec, ok := r.records[identity]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, rec Record) error {
	if rec.Identity == "" || rec.ConversationRef == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAll != nil {
		return r.FailAll
	}
	r.records[rec.Identity] = rec
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, identity string) error {
	if identity == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAll != nil {
		return r.FailAll
	}
	delete(r.records, identity)
	return nil
}

func (r *MemoryRepo) Sweep(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAll != nil {
		return 0, r.FailAll
	}
	var n int64
	for id, rec := range r.records {
		if rec.LastActivity.Before(olderThan) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored records (test helper).
func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
