package catalog

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/module"
	"github.com/artpar/menagerie/domain/player"
	"github.com/artpar/menagerie/domain/processing"
)

// file is the YAML shape of a tables document.
type file struct {
	TurnOrder []string              `yaml:"turn_order"`
	Modules   map[string]moduleFile `yaml:"modules"`
	Generator generatorFile         `yaml:"generator"`
	Yields    []yieldFile           `yaml:"yields"`
	Recipes   []recipeFile          `yaml:"recipes"`
	Creation  creationFile          `yaml:"creation"`
}

type moduleFile struct {
	NameKey        string        `yaml:"name_key"`
	DescriptionKey string        `yaml:"description_key"`
	BaseCost       int64         `yaml:"base_cost"`
	CostGrowth     float64       `yaml:"cost_growth"`
	Levels         []effectsFile `yaml:"levels"` // index = level, 0..5
}

type effectsFile struct {
	Capacity         int   `yaml:"capacity"`
	IncomeBase       int64 `yaml:"income_base"`
	IncomePerQuality int64 `yaml:"income_per_quality"`
	UpkeepPerHead    int64 `yaml:"upkeep_per_head"`
	ListingCount     int   `yaml:"listing_count"`
	RestockCost      int64 `yaml:"restock_cost"`
	YieldBonus       int   `yaml:"yield_bonus"`
	ServeCapacity    int   `yaml:"serve_capacity"`
	AffectionGain    int   `yaml:"affection_gain"`
	BreedCost        int64 `yaml:"breed_cost"`
	RecipeTier       int   `yaml:"recipe_tier"`
}

type generatorFile struct {
	Species      []speciesFile `yaml:"species"`
	QualityBands []bandFile    `yaml:"quality_bands"` // index = market level, 0..5
	Origins      []string      `yaml:"origins"`
	Nations      []string      `yaml:"nations"`
	Cities       []string      `yaml:"cities"`
	Bloodtypes   []string      `yaml:"bloodtypes"`
	Zodiacs      []string      `yaml:"zodiacs"`
	Ranks        []rankFile    `yaml:"ranks"`
	BreedSpread  float64       `yaml:"breed_spread"`
}

type speciesFile struct {
	Key            string     `yaml:"key"`
	NameKey        string     `yaml:"name_key"`
	FamilyKey      string     `yaml:"family_key"`
	MinMarketLevel int        `yaml:"min_market_level"`
	Weight         int        `yaml:"weight"`
	BasePrice      int64      `yaml:"base_price"`
	Height         [2]float64 `yaml:"height"`
	Mass           [2]float64 `yaml:"mass"`
}

type bandFile struct {
	Mean   float64 `yaml:"mean"`
	Spread float64 `yaml:"spread"`
}

type rankFile struct {
	MinQuality float64 `yaml:"min_quality"`
	Key        string  `yaml:"key"`
}

type yieldFile struct {
	Species        string  `yaml:"species"`
	Method         string  `yaml:"method"`
	ItemType       string  `yaml:"item_type"`
	Category       string  `yaml:"category"`
	NameKey        string  `yaml:"name_key"`
	DescriptionKey string  `yaml:"description_key"`
	Base           int     `yaml:"base"`
	Multiplier     float64 `yaml:"multiplier"`
	BaseValue      int64   `yaml:"base_value"`
	Module         string  `yaml:"module"`
	MinLevel       int     `yaml:"min_level"`
}

type recipeFile struct {
	Key            string           `yaml:"key"`
	ItemType       string           `yaml:"item_type"`
	NameKey        string           `yaml:"name_key"`
	DescriptionKey string           `yaml:"description_key"`
	Tier           int              `yaml:"tier"`
	Yield          int              `yaml:"yield"`
	BaseValue      int64            `yaml:"base_value"`
	Ingredients    []ingredientFile `yaml:"ingredients"`
}

type ingredientFile struct {
	ItemType string `yaml:"item_type"`
	Quantity int    `yaml:"quantity"`
}

type choiceFile struct {
	Bonus int64  `yaml:"bonus"`
	Perk  string `yaml:"perk"`
}

type creationFile struct {
	BaseMoney    int64                 `yaml:"base_money"`
	MinMoney     int64                 `yaml:"min_money"`
	Family       map[string]choiceFile `yaml:"family_background"`
	Childhood    map[string]choiceFile `yaml:"childhood_experience"`
	Education    map[string]choiceFile `yaml:"education_background"`
	StartingCity map[string]choiceFile `yaml:"starting_city"`
	BirthMonths  []choiceFile          `yaml:"birth_months"`
}

func decode(data []byte) (*file, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, fault.Config("tables", "parse: %v", err)
	}
	return &f, nil
}

// build converts the document into domain values. Structural problems that
// prevent conversion are reported here; semantic checks live in Validate.
func (f *file) build() (*Tables, error) {
	t := &Tables{
		Modules: make(map[module.Kind]module.Config, len(f.Modules)),
		Recipes: make(map[string]processing.Recipe, len(f.Recipes)),
	}

	for _, name := range f.TurnOrder {
		t.TurnOrder = append(t.TurnOrder, module.Kind(name))
	}
	if len(t.TurnOrder) == 0 {
		t.TurnOrder = append(t.TurnOrder, module.DefaultTurnOrder...)
	}

	for name, mf := range f.Modules {
		kind := module.Kind(name)
		if !kind.Valid() {
			return nil, fault.Unknown("modules."+name, name, module.KindNames())
		}
		if len(mf.Levels) != module.MaxLevel+1 {
			return nil, fault.Config("modules."+name+".levels", "need %d entries (levels 0..%d), got %d", module.MaxLevel+1, module.MaxLevel, len(mf.Levels))
		}
		cfg := module.Config{
			NameKey:        mf.NameKey,
			DescriptionKey: mf.DescriptionKey,
			BaseCost:       mf.BaseCost,
			CostGrowth:     mf.CostGrowth,
		}
		for lvl, ef := range mf.Levels {
			cfg.Levels[lvl] = module.Effects(ef)
		}
		t.Modules[kind] = cfg
	}

	g := f.Generator
	if len(g.QualityBands) != module.MaxLevel+1 {
		return nil, fault.Config("generator.quality_bands", "need %d entries (levels 0..%d), got %d", module.MaxLevel+1, module.MaxLevel, len(g.QualityBands))
	}
	gen := livestock.GeneratorConfig{
		Origins:     g.Origins,
		Nations:     g.Nations,
		Cities:      g.Cities,
		Bloodtypes:  g.Bloodtypes,
		Zodiacs:     g.Zodiacs,
		BreedSpread: g.BreedSpread,
	}
	for lvl, b := range g.QualityBands {
		gen.QualityBands[lvl] = livestock.QualityBand(b)
	}
	for _, r := range g.Ranks {
		gen.Ranks = append(gen.Ranks, livestock.RankThreshold(r))
	}
	for _, s := range g.Species {
		gen.Species = append(gen.Species, livestock.Species{
			Key:            s.Key,
			NameKey:        s.NameKey,
			FamilyKey:      s.FamilyKey,
			MinMarketLevel: s.MinMarketLevel,
			Weight:         s.Weight,
			BasePrice:      s.BasePrice,
			MinHeight:      s.Height[0],
			MaxHeight:      s.Height[1],
			MinWeight:      s.Mass[0],
			MaxWeight:      s.Mass[1],
		})
	}
	t.Generator = gen

	for _, y := range f.Yields {
		t.Yields = append(t.Yields, processing.YieldRule{
			Species:        y.Species,
			Method:         y.Method,
			ItemType:       y.ItemType,
			Category:       y.Category,
			NameKey:        y.NameKey,
			DescriptionKey: y.DescriptionKey,
			Base:           y.Base,
			Multiplier:     y.Multiplier,
			BaseValue:      y.BaseValue,
			Module:         module.Kind(y.Module),
			MinLevel:       y.MinLevel,
		})
	}

	for i, r := range f.Recipes {
		if _, dup := t.Recipes[r.Key]; dup {
			return nil, fault.Config(fmt.Sprintf("recipes[%d].key", i), "duplicate recipe %q", r.Key)
		}
		rec := processing.Recipe{
			Key:            r.Key,
			ItemType:       r.ItemType,
			NameKey:        r.NameKey,
			DescriptionKey: r.DescriptionKey,
			Tier:           r.Tier,
			Yield:          r.Yield,
			BaseValue:      r.BaseValue,
		}
		for _, ing := range r.Ingredients {
			rec.Ingredients = append(rec.Ingredients, processing.Ingredient(ing))
		}
		t.Recipes[r.Key] = rec
	}

	c := f.Creation
	if len(c.BirthMonths) != 12 {
		return nil, fault.Config("creation.birth_months", "need 12 entries, got %d", len(c.BirthMonths))
	}
	t.Creation = player.CreationConfig{
		BaseMoney:    c.BaseMoney,
		MinMoney:     c.MinMoney,
		Family:       choices(c.Family),
		Childhood:    choices(c.Childhood),
		Education:    choices(c.Education),
		StartingCity: choices(c.StartingCity),
	}
	for i, m := range c.BirthMonths {
		t.Creation.BirthMonths[i] = player.Choice(m)
	}

	return t, nil
}

func choices(in map[string]choiceFile) map[string]player.Choice {
	out := make(map[string]player.Choice, len(in))
	for k, v := range in {
		out[k] = player.Choice(v)
	}
	return out
}
