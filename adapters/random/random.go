// Package random provides SeedSource implementations.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/artpar/menagerie/ports"
)

// Real draws seeds from crypto/rand.
type Real struct{}

// Seed returns 64 bits of system entropy.
func (Real) Seed() uint64 {
	var b [8]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// Fake provides deterministic seeds for testing.
type Fake struct {
	mu     sync.Mutex
	values []uint64 // preset seeds, returned first
	index  int
	next   uint64
}

// NewFake creates a fake seed source counting up from start.
func NewFake(start uint64) *Fake {
	return &Fake{next: start}
}

// WithValues sets preset seeds to return before counting resumes.
func (f *Fake) WithValues(values ...uint64) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = values
	f.index = 0
	return f
}

// Seed returns the next preset value, or the next counter value.
func (f *Fake) Seed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index < len(f.values) {
		v := f.values[f.index]
		f.index++
		return v
	}
	v := f.next
	f.next++
	return v
}

// Reset rewinds the fake to start.
func (f *Fake) Reset(start uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.next = start
}

// Ensure interface compliance.
var (
	_ ports.SeedSource = Real{}
	_ ports.SeedSource = (*Fake)(nil)
)
