package processing

import (
	"fmt"
	"math"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/item"
	"github.com/artpar/menagerie/domain/ledger"
)

// Ingredient is a required quantity of one item type.
type Ingredient struct {
	ItemType string
	Quantity int
}

// Recipe describes a dish cooked in the restaurant.
type Recipe struct {
	Key            string
	ItemType       string
	NameKey        string
	DescriptionKey string
	Tier           int
	Yield          int // dish units produced, at least 1
	BaseValue      int64
	Ingredients    []Ingredient
}

// Consumption is the number of units taken from one item stack.
type Consumption struct {
	ItemID   string
	Quantity int
}

// Cook prepares recipe from pantry, drawing from stacks in the order given.
// Nothing is consumed unless every ingredient is fully available; a shortfall
// fails with ErrInsufficientIngredients. The dish quality is the
// quantity-weighted mean quality of what was consumed.
func Cook(recipe Recipe, pantry []item.Item, restaurant Site, id string) (item.Item, []Consumption, error) {
	if restaurant.Level == 0 || restaurant.Effects.RecipeTier < recipe.Tier {
		return item.Item{}, nil, fmt.Errorf("%w: recipe %s needs tier %d", fault.ErrModuleLocked, recipe.Key, recipe.Tier)
	}
	if len(recipe.Ingredients) == 0 {
		return item.Item{}, nil, fault.Config("recipes."+recipe.Key, "no ingredients")
	}

	left := make(map[string]int, len(pantry))
	for _, it := range pantry {
		left[it.ID] = it.Quantity
	}

	var (
		used     []Consumption
		units    int
		weighted float64
		owner    string
	)
	for _, ing := range recipe.Ingredients {
		need := ing.Quantity
		for _, it := range pantry {
			if need == 0 {
				break
			}
			if it.Type != ing.ItemType || left[it.ID] == 0 {
				continue
			}
			take := min(need, left[it.ID])
			left[it.ID] -= take
			need -= take
			used = append(used, Consumption{ItemID: it.ID, Quantity: take})
			units += take
			weighted += float64(take) * it.Quality
			owner = it.OwnerID
		}
		if need > 0 {
			return item.Item{}, nil, fmt.Errorf("%w: %s short by %d %s", fault.ErrInsufficientIngredients, recipe.Key, need, ing.ItemType)
		}
	}

	yield := max(recipe.Yield, 1)
	dish := item.Item{
		ID:             id,
		OwnerID:        owner,
		Type:           recipe.ItemType,
		Category:       item.CategoryDish,
		NameKey:        recipe.NameKey,
		DescriptionKey: recipe.DescriptionKey,
		Quantity:       yield,
		Quality:        math.Round(weighted/float64(units)*1000) / 1000,
		BaseValue:      recipe.BaseValue,
	}
	return dish, used, nil
}

// Sell removes qty units from it and returns the matching credit of
// qty * UnitValue.
func Sell(it item.Item, qty int) (item.Item, ledger.Posting, error) {
	if qty > it.Quantity {
		return it, ledger.Posting{}, fmt.Errorf("%w: %s has %d, selling %d", fault.ErrInvalidAmount, it.ID, it.Quantity, qty)
	}
	next, err := item.Consume(it, qty)
	if err != nil {
		return it, ledger.Posting{}, err
	}
	amount := int64(qty) * item.UnitValue(it)
	if amount <= 0 {
		return it, ledger.Posting{}, fmt.Errorf("%w: %s has no sale value", fault.ErrInvalidAmount, it.ID)
	}
	return next, ledger.CreditOf(amount, "ledger.item.sale"), nil
}
