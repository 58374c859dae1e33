// Package item provides the processed-goods value type.
package item

import (
	"fmt"
	"math"

	"github.com/artpar/menagerie/domain/fault"
)

// Well-known categories.
const (
	CategoryMeat = "meat"
	CategoryDish = "dish"
)

// Item is a stack of processed goods owned by a player (value type).
type Item struct {
	ID                string
	OwnerID           string
	Type              string
	Category          string
	NameKey           string
	DescriptionKey    string
	Quantity          int
	Quality           float64
	BaseValue         int64
	SourceLivestockID string
}

// UnitValue is floor(BaseValue * (0.5 + Quality)).
func UnitValue(it Item) int64 {
	return int64(math.Floor(float64(it.BaseValue) * (0.5 + it.Quality)))
}

// Consume removes n units from it.
// Fails with ErrInsufficientIngredients when fewer than n remain; it is then
// returned unchanged.
func Consume(it Item, n int) (Item, error) {
	if n <= 0 {
		return it, fmt.Errorf("%w: consume %d units", fault.ErrInvalidAmount, n)
	}
	if n > it.Quantity {
		return it, fmt.Errorf("%w: %s has %d, need %d", fault.ErrInsufficientIngredients, it.ID, it.Quantity, n)
	}
	it.Quantity -= n
	return it, nil
}

// Depleted reports whether no units remain.
func (it Item) Depleted() bool {
	return it.Quantity <= 0
}
