package tracker

import (
	"sync"

	"github.com/unklstewy/flightmap/pkg/feature"
)

// Store owns the published feature set of one session.
//
// Values are replaced wholesale and never mutated after publication.
// Replace only publishes for the newest issued generation, so a slow
// response can never overwrite a newer one.
type Store struct {
	mu         sync.Mutex
	current    feature.Collection
	generation uint64
	onPublish  func(feature.Collection)
}

// NewStore creates an empty store. onPublish, when non-nil, is called with
// every published collection while the store lock is held, which keeps
// publications ordered.
func NewStore(onPublish func(feature.Collection)) *Store {
	return &Store{
		current:   feature.Empty(),
		onPublish: onPublish,
	}
}

// NextGeneration issues a new generation number. Any earlier generation
// becomes stale.
func (s *Store) NextGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// Generation returns the newest issued generation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Replace publishes fc if gen is still the newest generation and reports
// whether it did.
func (s *Store) Replace(gen uint64, fc feature.Collection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}
	s.publish(fc)
	return true
}

// Merge publishes the current set with f merged in by callsign and returns
// the new set.
func (s *Store) Merge(f feature.Feature) feature.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.current.Merge(f)
	s.publish(merged)
	return merged
}

// Current returns the latest published set.
func (s *Store) Current() feature.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) publish(fc feature.Collection) {
	if fc.Features == nil {
		fc = feature.Empty()
	}
	s.current = fc
	if s.onPublish != nil {
		s.onPublish(fc)
	}
}
