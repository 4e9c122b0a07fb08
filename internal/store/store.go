// Package store holds the in-memory cache generation served by the API.
package store

import (
	"sync/atomic"
	"time"

	"github.com/DeafMist/fire-radar/internal/models"
)

// DefaultTTL is how long a generation stays readable after it is written.
const DefaultTTL = 5 * time.Minute

// Generation is one immutable record set written by a refresh cycle.
type Generation struct {
	Version  uint64
	Records  []models.NewsRecord
	StoredAt time.Time

	ids map[string]struct{}
}

// Contains reports whether a record with the given id belongs to the generation.
func (g *Generation) Contains(id string) bool {
	if g == nil {
		return false
	}
	_, ok := g.ids[id]
	return ok
}

// Store is a single TTL slot. Writers replace the whole generation with one atomic swap,
// so readers never observe a partially written set.
type Store struct {
	ttl     time.Duration
	now     func() time.Time
	current atomic.Pointer[Generation]
	version atomic.Uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store with the provided ttl.
func New(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set replaces the slot contents and returns the new generation.
func (s *Store) Set(records []models.NewsRecord) *Generation {
	cp := make([]models.NewsRecord, len(records))
	copy(cp, records)

	ids := make(map[string]struct{}, len(cp))
	for _, r := range cp {
		ids[r.ID] = struct{}{}
	}

	gen := &Generation{
		Version:  s.version.Add(1),
		Records:  cp,
		StoredAt: s.now(),
		ids:      ids,
	}
	s.current.Store(gen)
	return gen
}

// Records returns the live records, or an empty slice when nothing was written yet or the
// ttl has elapsed. The returned slice must not be modified.
func (s *Store) Records() []models.NewsRecord {
	gen, ok := s.Snapshot()
	if !ok {
		return []models.NewsRecord{}
	}
	return gen.Records
}

// Snapshot returns the live generation and whether it is still within its ttl.
func (s *Store) Snapshot() (*Generation, bool) {
	gen := s.current.Load()
	if gen == nil {
		return nil, false
	}
	if s.now().Sub(gen.StoredAt) >= s.ttl {
		return nil, false
	}
	return gen, true
}

// Last returns the most recently written generation regardless of expiry, or nil.
func (s *Store) Last() *Generation {
	return s.current.Load()
}

// TTL reports the configured time-to-live.
func (s *Store) TTL() time.Duration {
	return s.ttl
}
