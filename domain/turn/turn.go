// Package turn computes one monthly turn for a player.
//
// Advance stages every effect of the turn on a player.Builder. Nothing it
// does is visible until the caller commits the builder, so an error at any
// step leaves the stored state untouched.
package turn

import (
	"errors"
	"fmt"
	"sort"

	"github.com/artpar/menagerie/domain/catalog"
	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/item"
	"github.com/artpar/menagerie/domain/ledger"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/market"
	"github.com/artpar/menagerie/domain/module"
	"github.com/artpar/menagerie/domain/player"
)

// Step identifies a stage of a turn.
type Step string

const (
	StepIncrement Step = "increment"
	StepModules   Step = "modules"
	StepAge       Step = "age"
	StepMarket    Step = "market"
	StepLedger    Step = "ledger"
	StepCommit    Step = "commit"
)

// Steps lists the stages in execution order.
var Steps = []Step{StepIncrement, StepModules, StepAge, StepMarket, StepLedger, StepCommit}

// EventExpenseUnpaid is emitted for an expense the balance could not cover.
const EventExpenseUnpaid = "event.expense.unpaid"

// Hook runs before each step; a non-nil error aborts the turn.
type Hook func(Step) error

// Result summarises a committed turn.
type Result struct {
	Turn       int
	MoneyDelta int64
	Income     int64
	Expenses   int64
	Listings   []market.Listing
	Events     []module.Event
}

type expense struct {
	kind    module.Kind
	posting ledger.Posting
	restock bool
}

// Advance stages the next turn on b using tables. seeds supplies one seed per
// generated listing. The StepCommit hook runs last; committing b is the
// caller's job.
func Advance(b *player.Builder, tables *catalog.Tables, seeds func() uint64, hook Hook) (Result, error) {
	run := func(s Step) error {
		if hook == nil {
			return nil
		}
		if err := hook(s); err != nil {
			return fmt.Errorf("turn step %s: %w", s, err)
		}
		return nil
	}

	start := b.View().Player.Balance()

	// 1. increment
	if err := run(StepIncrement); err != nil {
		return Result{}, err
	}
	next := b.View().Player.CurrentTurn + 1
	if err := b.AdvanceTurn(next); err != nil {
		return Result{}, err
	}
	res := Result{Turn: next}

	// 2. modules
	if err := run(StepModules); err != nil {
		return Result{}, err
	}
	var (
		credits  []ledger.Posting
		expenses []expense
		restock  *module.Restock
	)
	for _, kind := range tables.TurnOrder {
		view := b.View()
		m, ok := view.Modules[kind]
		if !ok {
			return Result{}, fmt.Errorf("%w: player has no %s module", fault.ErrConfiguration, kind)
		}
		out, err := module.ProcessTurnEvents(module.TurnInput{
			Module:    m,
			Effects:   tables.Effects(kind, m.Level),
			Turn:      next,
			Occupants: occupants(view, kind),
			Pantry:    pantry(view),
		})
		if err != nil {
			return Result{}, err
		}
		if out.Skipped {
			continue
		}
		if err := b.PutModule(out.Module); err != nil {
			return Result{}, err
		}
		if err := applyOutcome(b, out); err != nil {
			return Result{}, err
		}
		res.Events = append(res.Events, out.Events...)
		credits = append(credits, out.Credits...)
		for _, d := range out.Debits {
			expenses = append(expenses, expense{kind: kind, posting: d})
		}
		if out.Restock != nil {
			restock = out.Restock
			if out.Restock.Cost > 0 {
				expenses = append(expenses, expense{
					kind:    kind,
					posting: ledger.DebitOf(out.Restock.Cost, "ledger.market.restock"),
					restock: true,
				})
			}
		}
	}

	// 3. age
	if err := run(StepAge); err != nil {
		return Result{}, err
	}
	view := b.View()
	for _, id := range sortedIDs(view.Livestock) {
		l := view.Livestock[id]
		if age := livestock.AgeAt(l, next); age != l.Age {
			l.Age = age
			if err := b.PutLivestock(l); err != nil {
				return Result{}, err
			}
		}
	}

	// 4. market
	if err := run(StepMarket); err != nil {
		return Result{}, err
	}
	var listings []market.Listing
	if restock != nil {
		marketLevel := b.View().Modules[module.Market].Level
		var err error
		listings, err = market.Refresh(tables.Generator, marketLevel, restock.Count, seeds, next)
		if err != nil {
			return Result{}, err
		}
	}

	// 5. ledger: income first, then expenses one by one
	if err := run(StepLedger); err != nil {
		return Result{}, err
	}
	if len(credits) > 0 {
		if err := b.Post(credits...); err != nil {
			return Result{}, err
		}
		for _, c := range credits {
			res.Income += c.Amount
		}
	}
	for _, e := range expenses {
		err := b.Post(e.posting)
		switch {
		case err == nil:
			res.Expenses += e.posting.Amount
		case errors.Is(err, fault.ErrInsufficientFunds):
			res.Events = append(res.Events, module.Event{Module: e.kind, Key: EventExpenseUnpaid, Amount: e.posting.Amount})
			if e.restock {
				listings = nil
			}
		default:
			return Result{}, err
		}
	}
	b.SetListings(listings)
	res.Listings = listings

	// 6. commit
	if err := run(StepCommit); err != nil {
		return Result{}, err
	}
	res.MoneyDelta = b.View().Player.Balance() - start
	return res, nil
}

func applyOutcome(b *player.Builder, out module.Outcome) error {
	for _, id := range sortedKeys(out.Affection) {
		l, ok := b.View().Livestock[id]
		if !ok {
			continue
		}
		l.Affection += out.Affection[id]
		if err := b.PutLivestock(l); err != nil {
			return err
		}
	}
	for _, id := range sortedKeys(out.Consumed) {
		if err := b.ConsumeItem(id, out.Consumed[id]); err != nil {
			return err
		}
	}
	return nil
}

func occupants(a player.Aggregate, kind module.Kind) []module.Occupant {
	ls := a.Occupants(kind)
	out := make([]module.Occupant, len(ls))
	for i, l := range ls {
		out[i] = module.Occupant{ID: l.ID, Quality: l.Quality}
	}
	return out
}

func pantry(a player.Aggregate) []module.Stock {
	items := a.ItemsSorted()
	out := make([]module.Stock, 0, len(items))
	for _, it := range items {
		out = append(out, module.Stock{
			ItemID:    it.ID,
			ItemType:  it.Type,
			Category:  it.Category,
			Quantity:  it.Quantity,
			UnitValue: item.UnitValue(it),
		})
	}
	return out
}

func sortedIDs(m map[string]livestock.Livestock) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
