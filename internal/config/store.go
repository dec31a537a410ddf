package config

import "sync"

// Store holds the current configuration snapshot. The watch loop reads it
// on every event while the file watcher replaces it from its own goroutine,
// so access goes through an RWMutex. Replacement is whole-value: readers
// never observe a half-updated snapshot.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// Current returns the latest snapshot. Callers must treat it as read-only.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace swaps in a new snapshot. Safe to call from any goroutine.
func (s *Store) Replace(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}
