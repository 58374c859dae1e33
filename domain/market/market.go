// Package market provides the per-player livestock listings.
package market

import (
	"fmt"
	"slices"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/livestock"
)

// Listing is an unowned livestock offered at a fixed price (value type).
type Listing struct {
	ID        string
	Livestock livestock.Livestock
	Price     int64
}

// Refresh generates count fresh listings for marketLevel, each from its own
// seed. A market that is not built (level 0) or has no listing slots offers
// nothing.
// This is a PURE function given seeds.
func Refresh(cfg livestock.GeneratorConfig, marketLevel, count int, seeds func() uint64, turn int) ([]Listing, error) {
	if marketLevel == 0 || count <= 0 {
		return nil, nil
	}

	listings := make([]Listing, 0, count)
	for range count {
		l, err := livestock.Generate(cfg, marketLevel, seeds(), turn)
		if err != nil {
			return nil, err
		}
		sp, ok := cfg.LookupSpecies(l.Species)
		if !ok {
			return nil, fault.Unknown("species", l.Species, cfg.SpeciesKeys())
		}
		listings = append(listings, Listing{
			ID:        l.ID,
			Livestock: l,
			Price:     livestock.Price(sp.BasePrice, l.Quality),
		})
	}
	return listings, nil
}

// Find returns the listing with id and its index.
func Find(listings []Listing, id string) (Listing, int, error) {
	for i, l := range listings {
		if l.ID == id {
			return l, i, nil
		}
	}
	return Listing{}, -1, fmt.Errorf("%w: listing %s", fault.ErrNotFound, id)
}

// Without returns a copy of listings with index i removed.
func Without(listings []Listing, i int) []Listing {
	out := slices.Clone(listings)
	return slices.Delete(out, i, i+1)
}
