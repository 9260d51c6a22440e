// Package prefstore holds the authoritative in-memory map of username to
// preference vector. The durable store is the source of truth only at
// process start; afterwards every mutation goes through StageAndCommit,
// which writes durably before making the new vector visible, so memory
// and the durable row never diverge after a partial failure.
package prefstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/feedworks/prefeed/internal/domain"
)

// Writer persists a single user vector durably.
type Writer interface {
	Write(ctx context.Context, username string, vec domain.Vector) error
}

type entry struct {
	mu  sync.Mutex
	vec atomic.Pointer[domain.Vector]
}

// Store is the process-wide preference-vector table. The user set is
// frozen at construction; per-user entries carry their own mutex, so
// updates for different usernames never contend.
type Store struct {
	writer Writer
	users  map[string]*entry
}

// New creates a store seeded with the vectors loaded from the durable
// store at startup.
func New(writer Writer, vectors map[string]domain.Vector) *Store {
	users := make(map[string]*entry, len(vectors))
	for username, vec := range vectors {
		e := &entry{}
		v := vec
		e.vec.Store(&v)
		users[username] = e
	}
	return &Store{writer: writer, users: users}
}

// Len returns the number of loaded users.
func (s *Store) Len() int { return len(s.users) }

// Get returns the current committed vector for username. The returned
// slice is shared; callers must treat it as read-only. Reads are
// lock-free and observe either the pre-update or the fully committed
// post-update vector, never an intermediate state.
func (s *Store) Get(username string) (domain.Vector, error) {
	e, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUserNotFound, username)
	}
	return *e.vec.Load(), nil
}

// StageAndCommit runs one guarded read-modify-write for username: it
// acquires the per-user mutex, stages a new vector from the current one,
// writes it durably, and only on success swaps the visible pointer. On
// any failure, including context cancellation, the visible vector is
// left exactly as before. The mutex is held across the durable write so
// concurrent updates for the same user serialize in write-issue order.
func (s *Store) StageAndCommit(
	ctx context.Context, username string, stage func(cur domain.Vector) (domain.Vector, error),
) error {
	e, ok := s.users[username]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUserNotFound, username)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update cancelled: %w", err)
	}

	next, err := stage(*e.vec.Load())
	if err != nil {
		return err
	}

	if err := s.writer.Write(ctx, username, next); err != nil {
		return fmt.Errorf("durable write for %q: %w", username, err)
	}

	e.vec.Store(&next)
	return nil
}
