package app

import (
	"context"
	"fmt"

	"github.com/artpar/menagerie/domain/catalog"
	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/item"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/module"
	"github.com/artpar/menagerie/domain/player"
	"github.com/artpar/menagerie/domain/processing"
)

// Breed pairs two livestock kept on the player's farm. The breeding cost of
// the farm level is debited and the offspring joins the holdings unassigned.
func (k *Kernel) Breed(ctx context.Context, playerID, fatherID, motherID string) (livestock.Livestock, error) {
	var child livestock.Livestock
	err := k.mutate(ctx, "breed", playerID, func(b *player.Builder, t *catalog.Tables) error {
		view := b.View()
		farm := view.Modules[module.Farm]
		if farm.Level == 0 {
			return fmt.Errorf("%w: farm is not built", fault.ErrModuleLocked)
		}
		father, err := onFarm(view, fatherID)
		if err != nil {
			return err
		}
		mother, err := onFarm(view, motherID)
		if err != nil {
			return err
		}

		turn := view.Player.CurrentTurn
		l, err := livestock.Breed(t.Generator, father, mother, k.seeds.Seed(), turn)
		if err != nil {
			return err
		}
		l = livestock.Transfer(l, playerID, turn)

		if cost := t.Effects(module.Farm, farm.Level).BreedCost; cost > 0 {
			if err := b.Debit(cost, ReasonBreed); err != nil {
				return err
			}
		}
		if err := b.PutLivestock(l); err != nil {
			return err
		}
		if err := livestock.ValidateLineage(b.View().Livestock); err != nil {
			return err
		}
		child = l
		return nil
	})
	return child, err
}

func onFarm(a player.Aggregate, id string) (livestock.Livestock, error) {
	l, ok := a.Livestock[id]
	if !ok {
		return livestock.Livestock{}, fmt.Errorf("%w: livestock %s", fault.ErrNotOwned, id)
	}
	if l.Location != module.Farm {
		return livestock.Livestock{}, fmt.Errorf("%w: livestock %s is not on the farm", fault.ErrInvalidArgument, id)
	}
	return l, nil
}

// Process converts an owned livestock into items. The livestock is removed
// and the items added in the same commit.
func (k *Kernel) Process(ctx context.Context, playerID, livestockID, method string) ([]item.Item, error) {
	var produced []item.Item
	err := k.mutate(ctx, "process", playerID, func(b *player.Builder, t *catalog.Tables) error {
		view := b.View()
		l, ok := view.Livestock[livestockID]
		if !ok {
			return fmt.Errorf("%w: livestock %s", fault.ErrNotOwned, livestockID)
		}
		items, err := processing.Process(l, method, t.Yields, t.Sites(view.Modules))
		if err != nil {
			return err
		}
		if err := b.RemoveLivestock(l.ID); err != nil {
			return err
		}
		for _, it := range items {
			if err := b.AddItem(it); err != nil {
				return err
			}
		}
		produced = items
		return nil
	})
	return produced, err
}

// Cook prepares a recipe in the player's restaurant. Ingredients are drawn
// from itemIDs in the order given, or from the whole pantry sorted by id when
// itemIDs is empty.
func (k *Kernel) Cook(ctx context.Context, playerID, recipeKey string, itemIDs []string) (item.Item, error) {
	var dish item.Item
	err := k.mutate(ctx, "cook", playerID, func(b *player.Builder, t *catalog.Tables) error {
		recipe, ok := t.Recipe(recipeKey)
		if !ok {
			return fmt.Errorf("%w: recipe %q", fault.ErrNotFound, recipeKey)
		}
		view := b.View()
		pantry := view.ItemsSorted()
		if len(itemIDs) > 0 {
			var ok bool
			if pantry, ok = view.ResolveItems(itemIDs); !ok {
				return fmt.Errorf("%w: ingredients not in pantry", fault.ErrNotOwned)
			}
		}

		restaurant := t.Sites(view.Modules)[module.Restaurant]
		cooked, used, err := processing.Cook(recipe, pantry, restaurant, "")
		if err != nil {
			return err
		}
		cooked.ID = k.ids.New()
		for _, c := range used {
			if err := b.ConsumeItem(c.ItemID, c.Quantity); err != nil {
				return err
			}
		}
		if err := b.AddItem(cooked); err != nil {
			return err
		}
		dish = b.View().Items[cooked.ID]
		return nil
	})
	return dish, err
}

// SellItem sells qty units of an item and returns the amount credited.
func (k *Kernel) SellItem(ctx context.Context, playerID, itemID string, qty int) (int64, error) {
	var earned int64
	err := k.mutate(ctx, "sell_item", playerID, func(b *player.Builder, _ *catalog.Tables) error {
		it, ok := b.View().Items[itemID]
		if !ok {
			return fmt.Errorf("%w: item %s", fault.ErrNotOwned, itemID)
		}
		next, credit, err := processing.Sell(it, qty)
		if err != nil {
			return err
		}
		if err := b.Post(credit); err != nil {
			return err
		}
		if err := b.PutItem(next); err != nil {
			return err
		}
		earned = credit.Amount
		return nil
	})
	return earned, err
}
