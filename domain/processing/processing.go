// Package processing turns livestock into items and items into dishes.
// All functions are pure and deterministic.
package processing

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/item"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/module"
)

// itemNamespace seeds the name-based UUIDs of processed items.
var itemNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:menagerie:item"))

// YieldRule is one output of processing a species with a method.
type YieldRule struct {
	Species        string
	Method         string
	ItemType       string
	Category       string
	NameKey        string
	DescriptionKey string
	Base           int
	Multiplier     float64
	BaseValue      int64
	Module         module.Kind // module the method runs in
	MinLevel       int
}

// Table is the yield table. Several rules may share a species and method,
// producing several items.
type Table []YieldRule

// Lookup returns the rules for species and method, in table order.
func (t Table) Lookup(species, method string) []YieldRule {
	var rules []YieldRule
	for _, r := range t {
		if r.Species == species && r.Method == method {
			rules = append(rules, r)
		}
	}
	return rules
}

// Methods returns the distinct methods known for species.
func (t Table) Methods(species string) []string {
	seen := make(map[string]bool)
	var methods []string
	for _, r := range t {
		if r.Species == species && !seen[r.Method] {
			seen[r.Method] = true
			methods = append(methods, r.Method)
		}
	}
	return methods
}

// Site is the state of a module that work runs in.
type Site struct {
	Level   int
	Effects module.Effects
}

// Sites maps module kinds to their current state.
type Sites map[module.Kind]Site

// Process converts l into items using method.
// Fails with ErrInvalidMethod, listing the species' methods, when the table
// has no rule for the species and method, and with ErrModuleLocked when a
// rule's module is below MinLevel.
// Item ids are derived from the livestock id, so identical inputs yield
// identical items.
func Process(l livestock.Livestock, method string, table Table, sites Sites) ([]item.Item, error) {
	rules := table.Lookup(l.Species, method)
	if len(rules) == 0 {
		known := table.Methods(l.Species)
		if len(known) == 0 {
			return nil, fmt.Errorf("%w: %s cannot be processed", fault.ErrInvalidMethod, l.Species)
		}
		return nil, fmt.Errorf("%w: %q for %s (available: %s)", fault.ErrInvalidMethod, method, l.Species, strings.Join(known, ", "))
	}

	items := make([]item.Item, 0, len(rules))
	for _, r := range rules {
		site := sites[r.Module]
		if site.Level < r.MinLevel || site.Level == 0 {
			return nil, fmt.Errorf("%w: %s needs %s level %d", fault.ErrModuleLocked, method, r.Module, max(r.MinLevel, 1))
		}
		qty := YieldQuantity(r, l.Quality, site.Effects)
		if qty <= 0 {
			continue
		}
		items = append(items, item.Item{
			ID:                uuid.NewSHA1(itemNamespace, []byte(l.ID+"/"+method+"/"+r.ItemType)).String(),
			OwnerID:           l.OwnerID,
			Type:              r.ItemType,
			Category:          r.Category,
			NameKey:           r.NameKey,
			DescriptionKey:    r.DescriptionKey,
			Quantity:          qty,
			Quality:           l.Quality,
			BaseValue:         r.BaseValue,
			SourceLivestockID: l.ID,
		})
	}
	return items, nil
}

// YieldQuantity is Base + floor(quality*Multiplier) + YieldBonus.
func YieldQuantity(r YieldRule, quality float64, eff module.Effects) int {
	return r.Base + int(math.Floor(quality*r.Multiplier)) + eff.YieldBonus
}
