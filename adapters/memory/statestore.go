// Package memory provides in-memory implementations of the persistence ports.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"slices"
	"sort"
	"sync"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/ledger"
	"github.com/artpar/menagerie/domain/player"
	"github.com/artpar/menagerie/ports"
)

// stateShard is a single shard of the state store.
type stateShard struct {
	mu      sync.RWMutex
	players map[string]*record
}

type record struct {
	agg     player.Aggregate
	journal []ledger.Entry
}

// StateStore is a sharded in-memory player state store.
// Aggregates are copied on the way in and out, so callers never share maps
// with the store.
type StateStore struct {
	shards    []*stateShard
	numShards int
}

// StateStoreConfig configures the state store.
type StateStoreConfig struct {
	NumShards int // Number of shards (default: 32)
}

// NewStateStore creates a new sharded in-memory state store.
func NewStateStore(cfg StateStoreConfig) *StateStore {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 32
	}

	s := &StateStore{
		shards:    make([]*stateShard, cfg.NumShards),
		numShards: cfg.NumShards,
	}
	for i := range s.shards {
		s.shards[i] = &stateShard{players: make(map[string]*record)}
	}
	return s
}

// getShard returns the shard for a player using consistent hashing.
func (s *StateStore) getShard(playerID string) *stateShard {
	h := fnv.New32a()
	h.Write([]byte(playerID))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// LoadPlayerState returns a copy of the last committed aggregate.
func (s *StateStore) LoadPlayerState(ctx context.Context, playerID string) (player.Aggregate, error) {
	shard := s.getShard(playerID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	rec, ok := shard.players[playerID]
	if !ok {
		return player.Aggregate{}, fmt.Errorf("%w: player %s", fault.ErrNotFound, playerID)
	}
	return rec.agg.Clone(), nil
}

// Create stores a new aggregate.
func (s *StateStore) Create(ctx context.Context, a player.Aggregate) error {
	shard := s.getShard(a.Player.ID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, ok := shard.players[a.Player.ID]; ok {
		return fmt.Errorf("%w: player %s already exists", fault.ErrConflict, a.Player.ID)
	}
	shard.players[a.Player.ID] = &record{agg: a.Clone()}
	return nil
}

// Commit replaces the stored aggregate if its version matches.
func (s *StateStore) Commit(ctx context.Context, c player.Commit) error {
	id := c.Aggregate.Player.ID
	shard := s.getShard(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	rec, ok := shard.players[id]
	if !ok {
		return fmt.Errorf("%w: player %s", fault.ErrNotFound, id)
	}
	if rec.agg.Version != c.ExpectedVersion {
		return fmt.Errorf("%w: player %s at version %d, commit expects %d", fault.ErrConflict, id, rec.agg.Version, c.ExpectedVersion)
	}
	rec.agg = c.Aggregate.Clone()
	rec.journal = append(rec.journal, c.Entries...)
	return nil
}

// Journal returns the ledger entries committed for a player, oldest first.
func (s *StateStore) Journal(ctx context.Context, playerID string) ([]ledger.Entry, error) {
	shard := s.getShard(playerID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	rec, ok := shard.players[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: player %s", fault.ErrNotFound, playerID)
	}
	return slices.Clone(rec.journal), nil
}

// ListPlayers returns every stored player id, sorted.
func (s *StateStore) ListPlayers(ctx context.Context) ([]string, error) {
	var ids []string
	for _, shard := range s.shards {
		shard.mu.RLock()
		for id := range shard.players {
			ids = append(ids, id)
		}
		shard.mu.RUnlock()
	}
	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of stored players (for testing).
func (s *StateStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.players)
		shard.mu.RUnlock()
	}
	return total
}

// Ensure interface compliance.
var (
	_ ports.StateStore    = (*StateStore)(nil)
	_ ports.PlayerLister  = (*StateStore)(nil)
	_ ports.JournalReader = (*StateStore)(nil)
)
