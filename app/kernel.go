// Package app contains the game kernel service.
//
// Every mutating operation follows the same shape: take the player's lock,
// load the committed aggregate, stage the transition on a player.Builder
// with pure domain functions, and commit once. A failure anywhere before the
// commit discards the builder, so the stored state is never half-applied.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/artpar/menagerie/domain/catalog"
	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/ledger"
	"github.com/artpar/menagerie/domain/player"
	"github.com/artpar/menagerie/domain/turn"
	"github.com/artpar/menagerie/ports"
	"github.com/rs/zerolog"
)

// Config holds kernel dependencies.
type Config struct {
	Store  ports.StateStore
	Clock  ports.Clock
	Seeds  ports.SeedSource
	IDs    ports.IDGenerator
	Tables *catalog.Tables

	// Recorder receives metrics; nil disables them.
	Recorder ports.Recorder

	// LockShards is the number of player lock shards (default: 32).
	LockShards int

	// LockTimeout bounds the wait for a player lock (0 = wait for ctx).
	LockTimeout time.Duration
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithStepHook installs a hook that runs before every turn step. A hook
// error aborts the turn before anything is committed.
func WithStepHook(h turn.Hook) Option {
	return func(k *Kernel) { k.hook = h }
}

// Kernel owns every authoritative game-state transition.
type Kernel struct {
	store       ports.StateStore
	clock       ports.Clock
	seeds       ports.SeedSource
	ids         ports.IDGenerator
	recorder    ports.Recorder
	tables      atomic.Pointer[catalog.Tables]
	locks       *lockTable
	lockTimeout time.Duration
	turns       sync.Map // player id -> in-flight AdvanceTurn
	hook        turn.Hook
	logger      zerolog.Logger
}

// NewKernel creates a kernel. The tables are validated first.
func NewKernel(cfg Config, logger zerolog.Logger, opts ...Option) (*Kernel, error) {
	if cfg.Store == nil || cfg.Clock == nil || cfg.Seeds == nil || cfg.IDs == nil {
		return nil, fmt.Errorf("%w: kernel needs a store, clock, seed source and id generator", fault.ErrInvalidArgument)
	}
	if cfg.Tables == nil {
		return nil, fault.Config("tables", "no tables loaded")
	}
	if err := catalog.Validate(cfg.Tables); err != nil {
		return nil, err
	}

	k := &Kernel{
		store:       cfg.Store,
		clock:       cfg.Clock,
		seeds:       cfg.Seeds,
		ids:         cfg.IDs,
		recorder:    cfg.Recorder,
		locks:       newLockTable(cfg.LockShards),
		lockTimeout: cfg.LockTimeout,
		logger:      logger.With().Str("component", "kernel").Logger(),
	}
	if k.recorder == nil {
		k.recorder = nopRecorder{}
	}
	k.tables.Store(cfg.Tables)
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// Tables returns the tables currently in force.
func (k *Kernel) Tables() *catalog.Tables {
	return k.tables.Load()
}

// ReloadTables validates t and swaps it in. Operations already running keep
// the snapshot they started with.
func (k *Kernel) ReloadTables(t *catalog.Tables) error {
	var err error
	if t == nil {
		err = fault.Config("tables", "no tables loaded")
	} else {
		err = catalog.Validate(t)
	}
	k.recorder.ObserveReload(err, k.clock.Now())
	if err != nil {
		k.logger.Error().Err(err).Msg("tables rejected")
		return err
	}
	k.tables.Store(t)
	k.logger.Info().
		Int("species", len(t.Generator.Species)).
		Int("recipes", len(t.Recipes)).
		Msg("tables reloaded")
	return nil
}

// State returns the last committed aggregate of a player.
func (k *Kernel) State(ctx context.Context, playerID string) (player.Aggregate, error) {
	return k.store.LoadPlayerState(ctx, playerID)
}

// Players lists every stored player id when the store can enumerate them.
func (k *Kernel) Players(ctx context.Context) ([]string, error) {
	lister, ok := k.store.(ports.PlayerLister)
	if !ok {
		return nil, errors.New("state store cannot list players")
	}
	return lister.ListPlayers(ctx)
}

// Journal returns a player's committed ledger entries, oldest first.
func (k *Kernel) Journal(ctx context.Context, playerID string) ([]ledger.Entry, error) {
	reader, ok := k.store.(ports.JournalReader)
	if !ok {
		return nil, errors.New("state store keeps no journal")
	}
	if _, err := k.store.LoadPlayerState(ctx, playerID); err != nil {
		return nil, err
	}
	return reader.Journal(ctx, playerID)
}

// mutation stages one change on b using the tables snapshot t.
type mutation func(b *player.Builder, t *catalog.Tables) error

// mutate runs fn under the player's lock and commits the result.
func (k *Kernel) mutate(ctx context.Context, op, playerID string, fn mutation) error {
	start := time.Now()
	err := k.withLock(ctx, playerID, func(ctx context.Context) error {
		tables := k.tables.Load()

		agg, err := k.store.LoadPlayerState(ctx, playerID)
		if err != nil {
			return err
		}
		b := player.NewBuilder(agg)
		if err := fn(b, tables); err != nil {
			return err
		}
		b.Touch(k.clock.Now())
		return k.commit(ctx, b.Build())
	})
	k.observe(op, playerID, err, time.Since(start))
	return err
}

// withLock runs fn while holding the player's lock. Once the lock is held,
// fn runs to completion even if ctx is cancelled.
func (k *Kernel) withLock(ctx context.Context, playerID string, fn func(context.Context) error) error {
	if playerID == "" {
		return fmt.Errorf("%w: empty player id", fault.ErrInvalidArgument)
	}
	waitCtx := ctx
	if k.lockTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, k.lockTimeout)
		defer cancel()
	}

	waited := time.Now()
	release, err := k.locks.acquire(waitCtx, playerID)
	if err != nil {
		return fmt.Errorf("wait for player %s: %w", playerID, err)
	}
	defer release()
	k.recorder.ObserveLockWait(time.Since(waited))

	return fn(context.WithoutCancel(ctx))
}

func (k *Kernel) commit(ctx context.Context, c player.Commit) error {
	err := k.store.Commit(ctx, c)
	if errors.Is(err, fault.ErrConflict) {
		k.recorder.ObserveConflict()
	}
	return err
}

func (k *Kernel) observe(op, playerID string, err error, d time.Duration) {
	k.recorder.ObserveOperation(op, err, d)

	switch {
	case err == nil:
		k.logger.Debug().
			Str("op", op).
			Str("player_id", playerID).
			Dur("duration", d).
			Msg("operation committed")
	case errors.Is(err, fault.ErrConfiguration):
		k.logger.Error().
			Err(err).
			Str("op", op).
			Str("player_id", playerID).
			Msg("operation failed on configuration")
	default:
		k.logger.Debug().
			Err(err).
			Str("op", op).
			Str("player_id", playerID).
			Str("code", fault.Code(err)).
			Msg("operation rejected")
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, error, time.Duration) {}
func (nopRecorder) ObserveLockWait(time.Duration)                 {}
func (nopRecorder) ObserveConflict()                              {}
func (nopRecorder) ObserveTurn(int64, []string)                   {}
func (nopRecorder) ObserveReload(error, time.Time)                {}

// Ensure interface compliance.
var _ ports.TablesProvider = (*Kernel)(nil)
