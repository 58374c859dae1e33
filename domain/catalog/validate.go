package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/module"
)

// Validate checks t for consistency. Every problem is reported as a
// *fault.ConfigError; several are joined.
func Validate(t *Tables) error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(validateModules(t))
	add(validateTurnOrder(t.TurnOrder))
	add(validateGenerator(t))
	add(validateYields(t))
	add(validateRecipes(t))
	add(validateCreation(t))

	return errors.Join(errs...)
}

func validateModules(t *Tables) error {
	var errs []error
	for _, kind := range module.Kinds {
		cfg, ok := t.Modules[kind]
		field := "modules." + string(kind)
		if !ok {
			errs = append(errs, fault.Config(field, "missing"))
			continue
		}
		if cfg.BaseCost <= 0 {
			errs = append(errs, fault.Config(field+".base_cost", "must be positive, got %d", cfg.BaseCost))
		}
		if cfg.CostGrowth < 1 {
			errs = append(errs, fault.Config(field+".cost_growth", "must be at least 1, got %v", cfg.CostGrowth))
		}
		for lvl, eff := range cfg.Levels {
			if eff.Capacity < 0 || eff.IncomeBase < 0 || eff.IncomePerQuality < 0 || eff.UpkeepPerHead < 0 ||
				eff.ListingCount < 0 || eff.RestockCost < 0 || eff.YieldBonus < 0 || eff.ServeCapacity < 0 ||
				eff.AffectionGain < 0 || eff.BreedCost < 0 || eff.RecipeTier < 0 {
				errs = append(errs, fault.Config(fmt.Sprintf("%s.levels[%d]", field, lvl), "effects must not be negative"))
			}
		}
	}
	return errors.Join(errs...)
}

func validateTurnOrder(order []module.Kind) error {
	seen := make(map[module.Kind]bool, len(order))
	for i, k := range order {
		field := fmt.Sprintf("turn_order[%d]", i)
		if !k.Valid() {
			return fault.Unknown(field, string(k), module.KindNames())
		}
		if seen[k] {
			return fault.Config(field, "%s listed twice", k)
		}
		seen[k] = true
	}
	if len(order) != len(module.Kinds) {
		return fault.Config("turn_order", "must list all %d modules, got %d", len(module.Kinds), len(order))
	}
	return nil
}

func validateGenerator(t *Tables) error {
	g := t.Generator
	var errs []error

	seen := make(map[string]bool, len(g.Species))
	for i, s := range g.Species {
		field := fmt.Sprintf("generator.species[%d]", i)
		switch {
		case s.Key == "":
			errs = append(errs, fault.Config(field+".key", "empty"))
		case seen[s.Key]:
			errs = append(errs, fault.Config(field+".key", "duplicate species %q", s.Key))
		}
		seen[s.Key] = true
		if s.MinMarketLevel < 1 || s.MinMarketLevel > module.MaxLevel {
			errs = append(errs, fault.Config(field+".min_market_level", "must be in [1,%d], got %d", module.MaxLevel, s.MinMarketLevel))
		}
		if s.Weight < 0 {
			errs = append(errs, fault.Config(field+".weight", "must not be negative"))
		}
		if s.BasePrice <= 0 {
			errs = append(errs, fault.Config(field+".base_price", "must be positive"))
		}
		if s.MaxHeight < s.MinHeight || s.MaxWeight < s.MinWeight {
			errs = append(errs, fault.Config(field, "range max below min"))
		}
	}

	for lvl := 1; lvl <= module.MaxLevel; lvl++ {
		b := g.QualityBands[lvl]
		if b.Mean < 0 || b.Mean > 1 || b.Spread < 0 {
			errs = append(errs, fault.Config(fmt.Sprintf("generator.quality_bands[%d]", lvl), "mean must be in [0,1] and spread non-negative"))
		}
		if len(g.Pool(lvl)) == 0 {
			errs = append(errs, fault.Config("generator.species", "no species available at market level %d", lvl))
		}
	}

	if !sort.SliceIsSorted(g.Ranks, func(i, j int) bool { return g.Ranks[i].MinQuality > g.Ranks[j].MinQuality }) {
		errs = append(errs, fault.Config("generator.ranks", "must be ordered by min_quality, highest first"))
	}
	if g.BreedSpread < 0 {
		errs = append(errs, fault.Config("generator.breed_spread", "must not be negative"))
	}
	return errors.Join(errs...)
}

func validateYields(t *Tables) error {
	species := t.Generator.SpeciesKeys()
	known := make(map[string]bool, len(species))
	for _, s := range species {
		known[s] = true
	}

	var errs []error
	seen := make(map[string]bool, len(t.Yields))
	for i, y := range t.Yields {
		field := fmt.Sprintf("yields[%d]", i)
		if !known[y.Species] {
			errs = append(errs, fault.Unknown(field+".species", y.Species, species))
		}
		if !y.Module.Valid() {
			errs = append(errs, fault.Unknown(field+".module", string(y.Module), module.KindNames()))
		}
		if y.Method == "" || y.ItemType == "" {
			errs = append(errs, fault.Config(field, "method and item_type are required"))
		}
		if y.MinLevel < 0 || y.MinLevel > module.MaxLevel {
			errs = append(errs, fault.Config(field+".min_level", "must be in [0,%d]", module.MaxLevel))
		}
		if y.Base < 0 || y.Multiplier < 0 || y.BaseValue < 0 {
			errs = append(errs, fault.Config(field, "base, multiplier and base_value must not be negative"))
		}
		key := y.Species + "/" + y.Method + "/" + y.ItemType
		if seen[key] {
			errs = append(errs, fault.Config(field, "duplicate yield %s", key))
		}
		seen[key] = true
	}
	return errors.Join(errs...)
}

func validateRecipes(t *Tables) error {
	produced := make(map[string]bool)
	for _, y := range t.Yields {
		produced[y.ItemType] = true
	}
	for _, r := range t.Recipes {
		produced[r.ItemType] = true
	}
	types := make([]string, 0, len(produced))
	for k := range produced {
		types = append(types, k)
	}
	sort.Strings(types)

	keys := make([]string, 0, len(t.Recipes))
	for k := range t.Recipes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		r := t.Recipes[k]
		field := "recipes." + k
		if r.ItemType == "" {
			errs = append(errs, fault.Config(field+".item_type", "required"))
		}
		if r.Tier < 1 || r.Tier > module.MaxLevel {
			errs = append(errs, fault.Config(field+".tier", "must be in [1,%d], got %d", module.MaxLevel, r.Tier))
		}
		if len(r.Ingredients) == 0 {
			errs = append(errs, fault.Config(field+".ingredients", "empty"))
		}
		for i, ing := range r.Ingredients {
			if !produced[ing.ItemType] {
				errs = append(errs, fault.Unknown(fmt.Sprintf("%s.ingredients[%d].item_type", field, i), ing.ItemType, types))
			}
			if ing.Quantity <= 0 {
				errs = append(errs, fault.Config(fmt.Sprintf("%s.ingredients[%d].quantity", field, i), "must be positive"))
			}
		}
	}
	return errors.Join(errs...)
}

func validateCreation(t *Tables) error {
	c := t.Creation
	var errs []error
	if c.MinMoney < 0 || c.BaseMoney < 0 {
		errs = append(errs, fault.Config("creation", "base_money and min_money must not be negative"))
	}
	for field, table := range map[string]int{
		"family_background":    len(c.Family),
		"childhood_experience": len(c.Childhood),
		"education_background": len(c.Education),
		"starting_city":        len(c.StartingCity),
	} {
		if table == 0 {
			errs = append(errs, fault.Config("creation."+field, "no choices"))
		}
	}
	return errors.Join(errs...)
}
