package module

import (
	"fmt"
	"math"
	"sort"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/ledger"
)

// Event keys (i18n) emitted by turn processing.
const (
	EventIncome    = "event.module.income"
	EventSale      = "event.restaurant.sale"
	EventAffection = "event.private_residence.affection"
	EventUpkeep    = "event.farm.upkeep"
	EventRestock   = "event.market.restock"
)

// Event is something that happened to a module during a turn (value type).
type Event struct {
	Module      Kind
	Key         string
	Amount      int64
	LivestockID string
	ItemID      string
}

// Occupant is the view of a livestock placed in a module.
type Occupant struct {
	ID      string
	Quality float64
}

// Stock is the view of an owned item available to a module.
type Stock struct {
	ItemID    string
	ItemType  string
	Category  string
	Quantity  int
	UnitValue int64
}

// TurnInput is everything a module needs to process one turn.
type TurnInput struct {
	Module    Module
	Effects   Effects
	Turn      int
	Occupants []Occupant
	Pantry    []Stock
}

// Restock asks the turn manager to regenerate market listings.
type Restock struct {
	Count int
	Cost  int64
}

// Outcome is the result of processing one module for one turn.
type Outcome struct {
	Module    Module // with LastEventTurn advanced
	Events    []Event
	Credits   []ledger.Posting
	Debits    []ledger.Posting
	Affection map[string]int // livestock id -> gain
	Consumed  map[string]int // item id -> units
	Restock   *Restock
	Skipped   bool // already processed this turn
}

type handler func(in TurnInput, out *Outcome)

// handlers is the dispatch table from kind to turn behaviour.
var handlers = map[Kind]handler{
	Market:           marketTurn,
	Farm:             farmTurn,
	Slaughterhouse:   func(TurnInput, *Outcome) {},
	Restaurant:       restaurantTurn,
	PhotoStudio:      incomeTurn,
	Dungeon:          incomeTurn,
	PrivateResidence: residenceTurn,
}

// ProcessTurnEvents runs the module's per-turn behaviour.
// Running it a second time for the same turn yields an empty, Skipped outcome.
// This is a PURE function.
func ProcessTurnEvents(in TurnInput) (Outcome, error) {
	h, ok := handlers[in.Module.Kind]
	if !ok {
		return Outcome{}, fault.Unknown("module.kind", string(in.Module.Kind), KindNames())
	}
	if in.Module.LastEventTurn == in.Turn {
		return Outcome{Module: in.Module, Skipped: true}, nil
	}

	out := Outcome{Module: in.Module}
	out.Module.LastEventTurn = in.Turn
	if in.Module.Level > 0 {
		h(in, &out)
	}
	return out, nil
}

// OccupantIncome is IncomeBase + floor(quality * IncomePerQuality).
func OccupantIncome(eff Effects, quality float64) int64 {
	return eff.IncomeBase + int64(math.Floor(quality*float64(eff.IncomePerQuality)))
}

func incomeTurn(in TurnInput, out *Outcome) {
	var total int64
	for _, o := range sortedOccupants(in.Occupants) {
		amount := OccupantIncome(in.Effects, o.Quality)
		if amount <= 0 {
			continue
		}
		total += amount
		out.Events = append(out.Events, Event{Module: in.Module.Kind, Key: EventIncome, Amount: amount, LivestockID: o.ID})
	}
	if total > 0 {
		out.Credits = append(out.Credits, ledger.CreditOf(total, fmt.Sprintf("ledger.%s.income", in.Module.Kind)))
	}
}

func residenceTurn(in TurnInput, out *Outcome) {
	if in.Effects.AffectionGain <= 0 {
		return
	}
	out.Affection = make(map[string]int, len(in.Occupants))
	for _, o := range sortedOccupants(in.Occupants) {
		out.Affection[o.ID] = in.Effects.AffectionGain
		out.Events = append(out.Events, Event{Module: in.Module.Kind, Key: EventAffection, Amount: int64(in.Effects.AffectionGain), LivestockID: o.ID})
	}
}

func farmTurn(in TurnInput, out *Outcome) {
	if in.Effects.UpkeepPerHead <= 0 || len(in.Occupants) == 0 {
		return
	}
	total := in.Effects.UpkeepPerHead * int64(len(in.Occupants))
	out.Debits = append(out.Debits, ledger.DebitOf(total, "ledger.farm.upkeep"))
	out.Events = append(out.Events, Event{Module: in.Module.Kind, Key: EventUpkeep, Amount: total})
}

func marketTurn(in TurnInput, out *Outcome) {
	if in.Effects.ListingCount <= 0 {
		return
	}
	out.Restock = &Restock{Count: in.Effects.ListingCount, Cost: in.Effects.RestockCost}
	out.Events = append(out.Events, Event{Module: in.Module.Kind, Key: EventRestock, Amount: in.Effects.RestockCost})
}

// restaurantTurn sells the most valuable dishes first, up to ServeCapacity units.
func restaurantTurn(in TurnInput, out *Outcome) {
	remaining := in.Effects.ServeCapacity
	if remaining <= 0 {
		return
	}

	dishes := make([]Stock, 0, len(in.Pantry))
	for _, s := range in.Pantry {
		if s.Category == "dish" && s.Quantity > 0 && s.UnitValue > 0 {
			dishes = append(dishes, s)
		}
	}
	sort.Slice(dishes, func(i, j int) bool {
		if dishes[i].UnitValue != dishes[j].UnitValue {
			return dishes[i].UnitValue > dishes[j].UnitValue
		}
		return dishes[i].ItemID < dishes[j].ItemID
	})

	var total int64
	for _, d := range dishes {
		if remaining == 0 {
			break
		}
		units := min(d.Quantity, remaining)
		remaining -= units
		amount := int64(units) * d.UnitValue
		total += amount
		if out.Consumed == nil {
			out.Consumed = make(map[string]int)
		}
		out.Consumed[d.ItemID] += units
		out.Events = append(out.Events, Event{Module: in.Module.Kind, Key: EventSale, Amount: amount, ItemID: d.ItemID})
	}
	if total > 0 {
		out.Credits = append(out.Credits, ledger.CreditOf(total, "ledger.restaurant.sales"))
	}
}

func sortedOccupants(in []Occupant) []Occupant {
	out := make([]Occupant, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
