// Package idgen provides ID generation implementations.
package idgen

import (
	"encoding/binary"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/artpar/menagerie/ports"
)

// UUID generates time-ordered UUIDs (version 7).
type UUID struct{}

// New generates a new UUID v7, falling back to v4 if the clock source fails.
func (UUID) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Seeded generates reproducible random UUIDs from a seed source.
// Two generators over equal seed sequences yield equal ids.
type Seeded struct {
	mu    sync.Mutex
	seeds ports.SeedSource
}

// NewSeeded creates a generator drawing from seeds.
func NewSeeded(seeds ports.SeedSource) *Seeded {
	return &Seeded{seeds: seeds}
}

// New returns the next UUID v4 built from two seeds.
func (s *Seeded) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], s.seeds.Seed())
	binary.LittleEndian.PutUint64(b[8:], s.seeds.Seed())
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	return uuid.UUID(b).String()
}

// Sequential generates sequential IDs (for testing).
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return s.prefix + strconv.FormatUint(n, 10)
}

// Ensure interface compliance.
var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Seeded)(nil)
	_ ports.IDGenerator = (*Sequential)(nil)
)
