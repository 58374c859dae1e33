package app

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/menagerie/domain/catalog"
	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/market"
	"github.com/artpar/menagerie/domain/module"
	"github.com/artpar/menagerie/domain/player"
)

// Ledger reasons (i18n keys).
const (
	ReasonAdminDebit  = "ledger.admin.debit"
	ReasonAdminCredit = "ledger.admin.credit"
	ReasonUpgrade     = "ledger.module.upgrade"
	ReasonPurchase    = "ledger.market.purchase"
	ReasonBreed       = "ledger.farm.breed"
)

// CreatePlayer creates a player from character-creation choices.
func (k *Kernel) CreatePlayer(ctx context.Context, playerID string, c player.Character) (player.Aggregate, error) {
	start := time.Now()
	var agg player.Aggregate
	err := k.withLock(ctx, playerID, func(ctx context.Context) error {
		var err error
		agg, err = player.New(playerID, c, k.tables.Load().Creation, k.clock.Now())
		if err != nil {
			return err
		}
		return k.store.Create(ctx, agg)
	})
	k.observe("create_player", playerID, err, time.Since(start))
	if err != nil {
		return player.Aggregate{}, err
	}
	k.logger.Info().
		Str("player_id", playerID).
		Str("name", agg.Player.FullName()).
		Int64("balance", agg.Player.Balance()).
		Strs("perks", agg.Player.Perks).
		Msg("player created")
	return agg, nil
}

// CreationOptions lists the choices CreatePlayer accepts under the current
// tables.
func (k *Kernel) CreationOptions() player.Options {
	return k.tables.Load().Creation.Options()
}

// PreviewStartingFunds reports what CreatePlayer would grant for bg.
func (k *Kernel) PreviewStartingFunds(bg player.Background) (player.Preview, error) {
	return player.PreviewStartingFunds(k.tables.Load().Creation, bg)
}

// Debit charges a player directly and returns the new balance.
func (k *Kernel) Debit(ctx context.Context, playerID string, amount int64, reason string) (int64, error) {
	if reason == "" {
		reason = ReasonAdminDebit
	}
	var balance int64
	err := k.mutate(ctx, "debit", playerID, func(b *player.Builder, _ *catalog.Tables) error {
		if err := b.Debit(amount, reason); err != nil {
			return err
		}
		balance = b.View().Player.Balance()
		return nil
	})
	return balance, err
}

// Credit pays a player directly and returns the new balance.
func (k *Kernel) Credit(ctx context.Context, playerID string, amount int64, reason string) (int64, error) {
	if reason == "" {
		reason = ReasonAdminCredit
	}
	var balance int64
	err := k.mutate(ctx, "credit", playerID, func(b *player.Builder, _ *catalog.Tables) error {
		if err := b.Credit(amount, reason); err != nil {
			return err
		}
		balance = b.View().Player.Balance()
		return nil
	})
	return balance, err
}

// Upgrade raises a module by one level, paying the upgrade cost.
// The level and the debit are committed together or not at all.
func (k *Kernel) Upgrade(ctx context.Context, playerID string, kind module.Kind) (module.Module, error) {
	if !kind.Valid() {
		return module.Module{}, unknownModule(kind)
	}
	var upgraded module.Module
	err := k.mutate(ctx, "upgrade", playerID, func(b *player.Builder, t *catalog.Tables) error {
		cfg, ok := t.Modules[kind]
		if !ok {
			return fault.Config("modules."+string(kind), "missing")
		}
		next, cost, err := module.Upgrade(b.View().Modules[kind], cfg)
		if err != nil {
			return err
		}
		if err := b.Debit(cost, ReasonUpgrade); err != nil {
			return err
		}
		if err := b.PutModule(next); err != nil {
			return err
		}
		upgraded = next
		return nil
	})
	return upgraded, err
}

// Purchase buys a market listing: the price is debited, the livestock joins
// the player's holdings unassigned, and the listing disappears.
func (k *Kernel) Purchase(ctx context.Context, playerID, listingID string) (livestock.Livestock, error) {
	var bought livestock.Livestock
	err := k.mutate(ctx, "purchase", playerID, func(b *player.Builder, _ *catalog.Tables) error {
		view := b.View()
		listing, i, err := market.Find(view.Listings, listingID)
		if err != nil {
			return err
		}
		if err := b.Debit(listing.Price, ReasonPurchase); err != nil {
			return err
		}
		l := livestock.Transfer(listing.Livestock, playerID, view.Player.CurrentTurn)
		if err := b.PutLivestock(l); err != nil {
			return err
		}
		b.SetListings(market.Without(view.Listings, i))
		bought = l
		return nil
	})
	return bought, err
}

// Grant generates a livestock for marketLevel straight into a player's
// holdings, free of charge.
func (k *Kernel) Grant(ctx context.Context, playerID string, marketLevel int) (livestock.Livestock, error) {
	var granted livestock.Livestock
	err := k.mutate(ctx, "grant", playerID, func(b *player.Builder, t *catalog.Tables) error {
		turn := b.View().Player.CurrentTurn
		l, err := livestock.Generate(t.Generator, marketLevel, k.seeds.Seed(), turn)
		if err != nil {
			return err
		}
		l = livestock.Transfer(l, playerID, turn)
		if err := b.PutLivestock(l); err != nil {
			return err
		}
		granted = l
		return nil
	})
	return granted, err
}

// Relocate moves an owned livestock into a module, or out of every module
// when target is livestock.Unassigned.
func (k *Kernel) Relocate(ctx context.Context, playerID, livestockID string, target module.Kind) (livestock.Livestock, error) {
	if target != livestock.Unassigned && !target.Valid() {
		return livestock.Livestock{}, unknownModule(target)
	}
	var moved livestock.Livestock
	err := k.mutate(ctx, "relocate", playerID, func(b *player.Builder, t *catalog.Tables) error {
		view := b.View()
		l, ok := view.Livestock[livestockID]
		if !ok {
			return fmt.Errorf("%w: livestock %s", fault.ErrNotOwned, livestockID)
		}
		if l.Location == target {
			moved = l
			return nil
		}
		if target != livestock.Unassigned {
			m := view.Modules[target]
			if err := module.CheckCapacity(m, t.Effects(target, m.Level), len(view.Occupants(target))); err != nil {
				return err
			}
		}
		l.Location = target
		if err := b.PutLivestock(l); err != nil {
			return err
		}
		moved = l
		return nil
	})
	return moved, err
}

func unknownModule(kind module.Kind) error {
	if s := fault.Nearest(string(kind), module.KindNames()); s != "" {
		return fmt.Errorf("%w: unknown module %q (did you mean %q?)", fault.ErrInvalidArgument, kind, s)
	}
	return fmt.Errorf("%w: unknown module %q", fault.ErrInvalidArgument, kind)
}
