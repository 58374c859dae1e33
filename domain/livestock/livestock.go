// Package livestock provides the creature value type, the seeded entity
// generator and lineage checks.
package livestock

import (
	"github.com/artpar/menagerie/domain/module"
)

// Unassigned is the location of a livestock that sits in no module.
const Unassigned module.Kind = "unassigned"

// Livestock is a generated creature (value type).
// Generation attributes never change after creation; only the location,
// acquisition and care fields do.
type Livestock struct {
	ID      string
	OwnerID string // empty while offered on a market

	Species      string
	NameKey      string
	FamilyKey    string
	NationKey    string
	CityKey      string
	OriginKey    string
	BloodtypeKey string
	ZodiacKey    string
	RankKey      string
	Quality      float64
	Height       float64
	Weight       float64
	BirthTurn    int
	FatherID     string
	MotherID     string

	Location    module.Kind
	AcquireTurn int
	Age         int
	Affection   int
}

// Owned reports whether the livestock belongs to a player.
func (l Livestock) Owned() bool {
	return l.OwnerID != ""
}

// Placed reports whether the livestock occupies a module.
func (l Livestock) Placed() bool {
	return l.Location != "" && l.Location != Unassigned
}

// Parents returns the non-empty parent ids.
func (l Livestock) Parents() []string {
	var ids []string
	if l.FatherID != "" {
		ids = append(ids, l.FatherID)
	}
	if l.MotherID != "" {
		ids = append(ids, l.MotherID)
	}
	return ids
}

// Transfer hands l to owner at turn, unassigned and with age reset.
func Transfer(l Livestock, owner string, turn int) Livestock {
	l.OwnerID = owner
	l.Location = Unassigned
	l.AcquireTurn = turn
	l.Age = 0
	return l
}

// AgeAt returns the age of l at turn, never negative.
func AgeAt(l Livestock, turn int) int {
	if turn < l.AcquireTurn {
		return 0
	}
	return turn - l.AcquireTurn
}
