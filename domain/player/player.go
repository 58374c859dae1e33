// Package player provides the player aggregate, character creation and the
// Builder every state transition is staged on.
package player

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/artpar/menagerie/domain/item"
	"github.com/artpar/menagerie/domain/ledger"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/market"
	"github.com/artpar/menagerie/domain/module"
)

// Player is the account-level state of one player.
type Player struct {
	ID           string
	FirstName    string
	LastName     string
	Account      ledger.Account
	CurrentTurn  int
	Background   Background
	Perks        []string
	CreatedAt    time.Time
	LastPlayedAt time.Time
}

// FullName joins the first and last name.
func (p Player) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Balance is a shortcut for p.Account.Balance().
func (p Player) Balance() int64 {
	return p.Account.Balance()
}

// Aggregate is everything the kernel loads and commits for one player.
type Aggregate struct {
	Player    Player
	Modules   map[module.Kind]module.Module
	Livestock map[string]livestock.Livestock
	Items     map[string]item.Item
	Listings  []market.Listing
	Version   int64 // optimistic concurrency token, bumped on every commit
}

// Clone returns a deep copy of a.
func (a Aggregate) Clone() Aggregate {
	out := a
	out.Player.Perks = slices.Clone(a.Player.Perks)
	out.Modules = maps.Clone(a.Modules)
	out.Livestock = maps.Clone(a.Livestock)
	out.Items = maps.Clone(a.Items)
	out.Listings = slices.Clone(a.Listings)
	if out.Modules == nil {
		out.Modules = make(map[module.Kind]module.Module)
	}
	if out.Livestock == nil {
		out.Livestock = make(map[string]livestock.Livestock)
	}
	if out.Items == nil {
		out.Items = make(map[string]item.Item)
	}
	return out
}

// Occupants returns the livestock placed in kind, ordered by id.
func (a Aggregate) Occupants(kind module.Kind) []livestock.Livestock {
	var out []livestock.Livestock
	for _, l := range a.Livestock {
		if l.Location == kind {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ItemsSorted returns the owned items ordered by id.
func (a Aggregate) ItemsSorted() []item.Item {
	out := slices.Collect(maps.Values(a.Items))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ResolveItems returns the items with ids in the order given.
// The second result is false when any id is not owned.
func (a Aggregate) ResolveItems(ids []string) ([]item.Item, bool) {
	out := make([]item.Item, 0, len(ids))
	for _, id := range ids {
		it, ok := a.Items[id]
		if !ok {
			return nil, false
		}
		out = append(out, it)
	}
	return out, true
}
