// Package cache provides the in-memory store of assembled show feeds.
package cache

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jdholdren/spotifeed/internal/showrss"
)

// Store holds at most one entry per show identity.
//
// Callers only ever see copies, so the lock is never held across a fetch.
type Store struct {
	mu      sync.Mutex
	entries map[showrss.ShowIdentity]showrss.Entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[showrss.ShowIdentity]showrss.Entry),
		now:     time.Now,
	}
}

// Get returns a snapshot of the entry for the identity, if there is one.
func (s *Store) Get(id showrss.ShowIdentity) (showrss.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return showrss.Entry{}, false
	}

	return e.Clone(), true
}

// Insert creates the entry for an identity that has none yet.
func (s *Store) Insert(id showrss.ShowIdentity, show showrss.Show, doc showrss.Document, expiresAt time.Time) (showrss.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		return showrss.Entry{}, fmt.Errorf("inserting %s: %w", id, showrss.ErrConflict)
	}

	e := s.put(id, show, doc, expiresAt)
	slog.Debug("inserted cache entry", "show", id.String(), "items", len(doc.Items))

	return e, nil
}

// Replace swaps the whole entry for an identity that already has one.
func (s *Store) Replace(id showrss.ShowIdentity, show showrss.Show, doc showrss.Document, expiresAt time.Time) (showrss.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return showrss.Entry{}, fmt.Errorf("replacing %s: %w", id, showrss.ErrNotFound)
	}

	e := s.put(id, show, doc, expiresAt)
	slog.Debug("replaced cache entry", "show", id.String(), "items", len(doc.Items))

	return e, nil
}

// Must be called with the lock held.
func (s *Store) put(id showrss.ShowIdentity, show showrss.Show, doc showrss.Document, expiresAt time.Time) showrss.Entry {
	e := showrss.Entry{
		Identity:  id,
		Show:      show.Clone(),
		Document:  doc.Clone(),
		ExpiresAt: expiresAt,
		UpdatedAt: s.now(),
	}
	s.entries[id] = e

	return e.Clone()
}

// List returns snapshots of every entry ordered by identity.
func (s *Store) List() []showrss.Entry {
	s.mu.Lock()
	out := make([]showrss.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity.String() < out[j].Identity.String()
	})

	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}
