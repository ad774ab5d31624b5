package registry

import (
	"context"
	"sync"
)

// Store is the transaction boundary for all registry mutations: acquire the
// lock, load a fresh snapshot, apply a pure mutation to a deep copy, save,
// release. No two operations interleave their read-modify-write cycles, and
// a failed mutation leaves the stored snapshot untouched.
type Store struct {
	repo     Repository
	lock     Locker
	mu       sync.Mutex // in-process serialization; Locker covers cross-process
	onCommit func()
}

func NewStore(repo Repository, lock Locker) *Store {
	return &Store{repo: repo, lock: lock}
}

// OnCommit installs a hook that runs after every successful Update save,
// while the store still holds its locks. Set it before the store is shared
// between goroutines.
func (s *Store) OnCommit(fn func()) {
	s.onCommit = fn
}

// Update runs fn against a copy of the current snapshot and commits the copy
// if fn succeeds. fn must not retain the snapshot past its return.
func (s *Store) Update(ctx context.Context, fn func(*Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	snap, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	next := snap.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return err
	}
	if s.onCommit != nil {
		s.onCommit()
	}
	return nil
}

// View runs fn against a read-only snapshot. No lock is taken: snapshot
// writes are atomic, so a reader always observes a committed state.
func (s *Store) View(ctx context.Context, fn func(*Snapshot) error) error {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	return fn(snap)
}
