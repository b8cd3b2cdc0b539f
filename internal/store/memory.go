package store

import (
	"sync"
	"time"
)

// Store is the shared latest-value cache.
//
// Only the holder of the [Writer] mutates the store; any number of goroutines
// may call [Store.Read]. Critical sections are limited to a field swap on the
// write side and a copy on the read side.
type Store struct {
	mu       sync.RWMutex
	fields   map[Category]Document
	poisoned bool

	claimMu sync.Mutex
	claimed bool

	now func() time.Time
}

// Option configures a [Store].
type Option func(*Store)

// WithClock overrides the time source used to stamp reads and writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store with every field set to [EmptyDocument].
func New(opts ...Option) *Store {
	s := &Store{
		fields: make(map[Category]Document, len(Categories)),
		now:    time.Now,
	}
	for _, c := range Categories {
		s.fields[c] = EmptyDocument
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Writer hands out the single write handle for the store.
//
// The first call succeeds; every later call returns [ErrWriterClaimed].
func (s *Store) Writer() (*Writer, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	if s.claimed {
		return nil, ErrWriterClaimed
	}
	s.claimed = true
	return &Writer{store: s}, nil
}

// Read returns a consistent copy of every field with Date set to now.
//
// The returned documents are private copies; callers may modify them freely.
func (s *Store) Read() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		Status:     clone(s.fields[CategoryStatus]),
		Capacities: clone(s.fields[CategoryCapacities]),
		Stats:      clone(s.fields[CategoryStats]),
		Jobs:       clone(s.fields[CategoryJobs]),
	}
	s.mu.RUnlock()

	snap.Date = s.now()
	return snap
}

// Writer is the only handle allowed to mutate a [Store].
type Writer struct {
	store *Store
}

// Apply replaces the field targeted by u with u.Document and returns the
// store's clock reading for the write.
//
// The store keeps its own copy of the document. Apply fails with
// [ErrLockFailure] once the store is poisoned.
func (w *Writer) Apply(u Update) (time.Time, error) {
	if !u.Category.Valid() {
		return time.Time{}, &UnknownCategoryError{Category: u.Category}
	}
	doc := clone(u.Document)
	if doc == nil {
		doc = EmptyDocument
	}

	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return time.Time{}, ErrLockFailure
	}
	s.fields[u.Category] = doc
	return s.now(), nil
}

// Poison marks the store as unusable for further writes. Reads keep returning
// the last consistent state.
func (w *Writer) Poison() {
	w.store.mu.Lock()
	w.store.poisoned = true
	w.store.mu.Unlock()
}

func clone(d Document) Document {
	if d == nil {
		return nil
	}
	return append(Document(nil), d...)
}
