package service

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sampler draws uniform random question subsets without replacement. The
// randomness source is injectable so tests can assert deterministic
// assignment.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler creates a Sampler backed by the given source.
func NewSampler(src rand.Source) *Sampler {
	return &Sampler{rng: rand.New(src)}
}

// NewDefaultSampler creates a time-seeded Sampler for production use.
func NewDefaultSampler() *Sampler {
	return NewSampler(rand.NewSource(time.Now().UnixNano()))
}

// Select picks n distinct elements from pool, uniformly and without
// replacement. Returns ErrInsufficientQuestions when n exceeds the pool size;
// the caller must reject attempt creation in that case, never truncate.
func (s *Sampler) Select(pool []uuid.UUID, n int) ([]uuid.UUID, error) {
	if n > len(pool) {
		return nil, ErrInsufficientQuestions
	}

	shuffled := make([]uuid.UUID, len(pool))
	copy(shuffled, pool)

	s.mu.Lock()
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.mu.Unlock()

	return shuffled[:n], nil
}

// Shuffle permutes n elements in place via swap. Used for presentation-order
// option shuffling; never touches stored data.
func (s *Sampler) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	s.rng.Shuffle(n, swap)
	s.mu.Unlock()
}
