package app

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/player"
	"github.com/artpar/menagerie/domain/turn"
)

// AdvanceTurn runs one monthly turn for a player and commits it atomically.
// While a turn is in flight for the player, a second call fails with
// fault.ErrConcurrentTurnInProgress; other operations queue behind it.
func (k *Kernel) AdvanceTurn(ctx context.Context, playerID string) (turn.Result, error) {
	if _, busy := k.turns.LoadOrStore(playerID, struct{}{}); busy {
		err := fmt.Errorf("%w: player %s", fault.ErrConcurrentTurnInProgress, playerID)
		k.observe("advance_turn", playerID, err, 0)
		return turn.Result{}, err
	}
	defer k.turns.Delete(playerID)

	start := time.Now()
	var res turn.Result
	err := k.withLock(ctx, playerID, func(ctx context.Context) error {
		tables := k.tables.Load()

		agg, err := k.store.LoadPlayerState(ctx, playerID)
		if err != nil {
			return err
		}
		b := player.NewBuilder(agg)
		res, err = turn.Advance(b, tables, k.seeds.Seed, k.hook)
		if err != nil {
			return err
		}
		b.Touch(k.clock.Now())
		return k.commit(ctx, b.Build())
	})
	elapsed := time.Since(start)
	k.observe("advance_turn", playerID, err, elapsed)
	if err != nil {
		return turn.Result{}, err
	}

	var unpaid []string
	for _, e := range res.Events {
		if e.Key == turn.EventExpenseUnpaid {
			unpaid = append(unpaid, string(e.Module))
		}
	}
	k.recorder.ObserveTurn(res.MoneyDelta, unpaid)
	k.logger.Info().
		Str("player_id", playerID).
		Int("turn", res.Turn).
		Int64("money_delta", res.MoneyDelta).
		Int64("income", res.Income).
		Int64("expenses", res.Expenses).
		Int("listings", len(res.Listings)).
		Int("unpaid", len(unpaid)).
		Dur("duration", elapsed).
		Msg("turn committed")
	return res, nil
}
