// Package module provides the leveled per-player facilities and their
// level-dependent effects.
// All functions are pure and deterministic.
package module

import (
	"fmt"
	"math"

	"github.com/artpar/menagerie/domain/fault"
)

// Kind identifies one of the seven facility types.
type Kind string

const (
	Market           Kind = "market"
	Farm             Kind = "farm"
	Slaughterhouse   Kind = "slaughterhouse"
	Restaurant       Kind = "restaurant"
	PhotoStudio      Kind = "photo_studio"
	Dungeon          Kind = "dungeon"
	PrivateResidence Kind = "private_residence"
)

// MaxLevel is the highest level a module can reach.
const MaxLevel = 5

// Kinds lists every module kind in canonical order.
var Kinds = []Kind{Market, Farm, Slaughterhouse, Restaurant, PhotoStudio, Dungeon, PrivateResidence}

// DefaultTurnOrder runs income-generating modules before the market so
// that income is available before restocking costs apply.
var DefaultTurnOrder = []Kind{PhotoStudio, Dungeon, Restaurant, PrivateResidence, Farm, Slaughterhouse, Market}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// KindNames returns the kinds as plain strings.
func KindNames() []string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return names
}

// Module is a player's facility (value type).
type Module struct {
	Kind          Kind
	Level         int
	LastEventTurn int // turn in which ProcessTurnEvents last ran
}

// Effects are the level-dependent magnitudes of a module (value type).
// Fields that do not apply to a kind stay zero.
type Effects struct {
	Capacity         int   // livestock that can be placed here
	IncomeBase       int64 // per occupant per turn
	IncomePerQuality int64 // per occupant per turn, scaled by quality
	UpkeepPerHead    int64 // expense per occupant per turn
	ListingCount     int   // market listings generated per turn
	RestockCost      int64 // market expense per refresh
	YieldBonus       int   // extra item units per processed livestock
	ServeCapacity    int   // dish units sold per turn
	AffectionGain    int   // affection per occupant per turn
	BreedCost        int64 // cost of one breeding
	RecipeTier       int   // highest recipe tier that can be cooked
}

// Config is the static configuration of one module kind (value type).
type Config struct {
	NameKey        string
	DescriptionKey string
	BaseCost       int64
	CostGrowth     float64
	Levels         [MaxLevel + 1]Effects
}

// LevelEffects returns the effects of kind at level.
// This is a PURE function of static configuration.
func LevelEffects(cfg Config, level int) (Effects, error) {
	if level < 0 || level > MaxLevel {
		return Effects{}, fmt.Errorf("%w: level %d outside [0,%d]", fault.ErrInvalidArgument, level, MaxLevel)
	}
	return cfg.Levels[level], nil
}

// UpgradeCost returns the price of moving from fromLevel to fromLevel+1:
// floor(BaseCost * CostGrowth^fromLevel).
// This is a PURE function.
func UpgradeCost(cfg Config, fromLevel int) int64 {
	return int64(math.Floor(float64(cfg.BaseCost) * math.Pow(cfg.CostGrowth, float64(fromLevel))))
}

// Upgrade returns m one level higher along with the cost to charge.
// A level-5 module fails with ErrMaxLevelReached and is returned unchanged.
// Affordability is the caller's concern (it must debit cost in the same unit).
func Upgrade(m Module, cfg Config) (Module, int64, error) {
	if m.Level >= MaxLevel {
		return m, 0, fmt.Errorf("%w: %s is at level %d", fault.ErrMaxLevelReached, m.Kind, m.Level)
	}
	cost := UpgradeCost(cfg, m.Level)
	next := m
	next.Level = m.Level + 1
	return next, cost, nil
}

// CheckCapacity verifies that one more occupant fits at the given level.
func CheckCapacity(m Module, eff Effects, occupants int) error {
	if m.Level == 0 {
		return fmt.Errorf("%w: %s is not built", fault.ErrModuleLocked, m.Kind)
	}
	if occupants+1 > eff.Capacity {
		return fmt.Errorf("%w: %s holds %d", fault.ErrCapacityExceeded, m.Kind, eff.Capacity)
	}
	return nil
}

// NewSet returns one level-0 module of every kind.
func NewSet() map[Kind]Module {
	set := make(map[Kind]Module, len(Kinds))
	for _, k := range Kinds {
		set[k] = Module{Kind: k}
	}
	return set
}
