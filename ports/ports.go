// Package ports defines interfaces (contracts) between the kernel and its
// infrastructure. Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/menagerie/domain/catalog"
	"github.com/artpar/menagerie/domain/ledger"
	"github.com/artpar/menagerie/domain/player"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// SeedSource supplies entropy for the entity generator.
// Each call returns a fresh seed; the generator is deterministic per seed.
type SeedSource interface {
	Seed() uint64
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Persistence Ports
// -----------------------------------------------------------------------------

// StateStore persists player aggregates.
//
// Commit must apply the whole commit or nothing. It fails with
// fault.ErrConflict when the stored version differs from
// c.ExpectedVersion, and with fault.ErrNotFound for an unknown player.
type StateStore interface {
	// LoadPlayerState returns the last committed aggregate.
	LoadPlayerState(ctx context.Context, playerID string) (player.Aggregate, error)

	// Create stores a brand-new aggregate. Fails with fault.ErrConflict if
	// the player already exists.
	Create(ctx context.Context, a player.Aggregate) error

	// Commit stores the next aggregate together with its ledger journal.
	Commit(ctx context.Context, c player.Commit) error
}

// PlayerLister is implemented by stores that can enumerate players.
type PlayerLister interface {
	ListPlayers(ctx context.Context) ([]string, error)
}

// JournalReader is implemented by stores that keep the ledger journal.
type JournalReader interface {
	// Journal returns the committed ledger entries of a player, oldest first.
	Journal(ctx context.Context, playerID string) ([]ledger.Entry, error)
}

// -----------------------------------------------------------------------------
// Configuration Ports
// -----------------------------------------------------------------------------

// TablesProvider supplies the current static tables.
type TablesProvider interface {
	Tables() *catalog.Tables
}

// -----------------------------------------------------------------------------
// Observability Ports
// -----------------------------------------------------------------------------

// Recorder receives kernel measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveOperation(op string, err error, d time.Duration)
	ObserveLockWait(d time.Duration)
	ObserveConflict()
	ObserveTurn(moneyDelta int64, unpaid []string)
	ObserveReload(err error, t time.Time)
}
