package rules

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Store holds the rule set currently in effect, safe for concurrent readers
// while a background reload replaces it.
type Store struct {
	mu    sync.RWMutex
	rules Rules
}

// NewStore creates a store seeded with the given rules.
func NewStore(rules Rules) *Store {
	return &Store{rules: rules}
}

// Current returns the rule set in effect.
func (s *Store) Current() Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rules
}

// Update replaces the stored rules. Logs at info level if the content changed
// (based on digest), or at debug level if unchanged.
func (s *Store) Update(rules Rules) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldDigest := s.rules.Digest()
	newDigest := rules.Digest()

	// by default, only log when the source has actually changed content
	if oldDigest != newDigest {
		log.Info().Msg("extraction rules: updated")
	} else {
		log.Debug().Msg("extraction rules: no changes detected")
	}

	s.rules = rules
}
