// Package cache keeps the last successful listing fetch in memory together
// with the instant it was fetched and how long it stays fresh.
package cache

import (
	"sync"
	"time"

	"github.com/micko4develop/crypto-dash/internal/models"
)

// DefaultTTL is the validity window used when none is configured.
const DefaultTTL = 60 * time.Second

// Clock is the single time source of a Store.
type Clock func() time.Time

// Entry is an immutable snapshot of one successful fetch.
type Entry struct {
	Assets    []models.Asset
	FetchedAt time.Time
	TTL       time.Duration
}

// Age returns how long ago the entry was fetched.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// IsValid reports whether entry may be reused at now. A nil entry, an entry
// without assets, or one whose age reached its TTL is invalid.
func IsValid(entry *Entry, now time.Time) bool {
	if entry == nil || len(entry.Assets) == 0 {
		return false
	}
	return entry.Age(now) < entry.TTL
}

type Store struct {
	mu    sync.RWMutex
	entry *Entry
	ttl   time.Duration
	now   Clock
}

func NewStore(ttl time.Duration, clock Clock) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &Store{ttl: ttl, now: clock}
}

// Put replaces the current entry with a copy of assets stamped with the
// store's clock. The previous entry is never modified.
func (s *Store) Put(assets []models.Asset) Entry {
	owned := make([]models.Asset, len(assets))
	copy(owned, assets)

	e := &Entry{
		Assets:    owned,
		FetchedAt: s.now(),
		TTL:       s.ttl,
	}

	s.mu.Lock()
	s.entry = e
	s.mu.Unlock()
	return *e
}

// Get returns the current entry, valid or not.
func (s *Store) Get() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entry == nil {
		return Entry{}, false
	}
	return *s.entry, true
}

// Valid reports whether the current entry is fresh at the store's clock.
func (s *Store) Valid() bool {
	s.mu.RLock()
	e := s.entry
	s.mu.RUnlock()
	return IsValid(e, s.now())
}

// Lookup returns the current entry only when it is still valid.
func (s *Store) Lookup() (Entry, bool) {
	s.mu.RLock()
	e := s.entry
	s.mu.RUnlock()
	if !IsValid(e, s.now()) {
		return Entry{}, false
	}
	return *e, true
}

func (s *Store) TTL() time.Duration { return s.ttl }

// Now reads the store's clock.
func (s *Store) Now() time.Time { return s.now() }
