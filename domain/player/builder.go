package player

import (
	"fmt"
	"time"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/item"
	"github.com/artpar/menagerie/domain/ledger"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/market"
	"github.com/artpar/menagerie/domain/module"
)

// Entity names the part of an aggregate a change touched.
type Entity string

const (
	EntityPlayer    Entity = "player"
	EntityModule    Entity = "module"
	EntityLivestock Entity = "livestock"
	EntityItem      Entity = "item"
	EntityListings  Entity = "listings"
)

// Action is the kind of modification.
type Action string

const (
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

// Change records one staged modification.
type Change struct {
	Entity Entity
	Action Action
	ID     string
}

// Commit is the unit handed to a state store: the full next aggregate, what
// changed, the ledger journal, and the version the aggregate was loaded at.
type Commit struct {
	Aggregate       Aggregate
	Changes         []Change
	Entries         []ledger.Entry
	ExpectedVersion int64
}

// Builder stages a transition on a private copy of an aggregate.
// Nothing is visible to anyone until the Commit it builds is stored;
// an abandoned Builder leaves no trace.
type Builder struct {
	base    int64
	next    Aggregate
	changes []Change
	entries []ledger.Entry
}

// NewBuilder starts a transition from a.
func NewBuilder(a Aggregate) *Builder {
	return &Builder{base: a.Version, next: a.Clone()}
}

// View returns the staged aggregate. Callers must not mutate its maps.
func (b *Builder) View() Aggregate {
	return b.next
}

// Post applies postings through the ledger, all or nothing.
func (b *Builder) Post(postings ...ledger.Posting) error {
	acct, entries, err := ledger.Apply(b.next.Player.Account, postings)
	if err != nil {
		return err
	}
	b.next.Player.Account = acct
	b.entries = append(b.entries, entries...)
	b.touchPlayer()
	return nil
}

// Debit charges amount for reason.
func (b *Builder) Debit(amount int64, reason string) error {
	return b.Post(ledger.DebitOf(amount, reason))
}

// Credit pays amount for reason.
func (b *Builder) Credit(amount int64, reason string) error {
	return b.Post(ledger.CreditOf(amount, reason))
}

// AdvanceTurn moves the player to turn, which may not go backwards.
func (b *Builder) AdvanceTurn(turn int) error {
	if turn < b.next.Player.CurrentTurn {
		return fmt.Errorf("%w: turn %d before current %d", fault.ErrInvalidArgument, turn, b.next.Player.CurrentTurn)
	}
	b.next.Player.CurrentTurn = turn
	b.touchPlayer()
	return nil
}

// Touch records that the player was active at now.
func (b *Builder) Touch(now time.Time) {
	b.next.Player.LastPlayedAt = now
	b.touchPlayer()
}

// PutModule stores m.
func (b *Builder) PutModule(m module.Module) error {
	if !m.Kind.Valid() {
		return fault.Unknown("module.kind", string(m.Kind), module.KindNames())
	}
	if m.Level < 0 || m.Level > module.MaxLevel {
		return fmt.Errorf("%w: level %d", fault.ErrInvalidArgument, m.Level)
	}
	b.next.Modules[m.Kind] = m
	b.changes = append(b.changes, Change{Entity: EntityModule, Action: ActionUpsert, ID: string(m.Kind)})
	return nil
}

// PutLivestock stores l, which must belong to the player and sit in a built
// module or nowhere.
func (b *Builder) PutLivestock(l livestock.Livestock) error {
	if l.OwnerID != b.next.Player.ID {
		return fmt.Errorf("%w: livestock %s", fault.ErrNotOwned, l.ID)
	}
	if l.Location != livestock.Unassigned {
		m, ok := b.next.Modules[l.Location]
		if !ok {
			return fault.Unknown("livestock.location", string(l.Location), module.KindNames())
		}
		if m.Level == 0 {
			return fmt.Errorf("%w: %s is not built", fault.ErrModuleLocked, l.Location)
		}
	}
	b.next.Livestock[l.ID] = l
	b.changes = append(b.changes, Change{Entity: EntityLivestock, Action: ActionUpsert, ID: l.ID})
	return nil
}

// RemoveLivestock deletes the livestock with id.
func (b *Builder) RemoveLivestock(id string) error {
	if _, ok := b.next.Livestock[id]; !ok {
		return fmt.Errorf("%w: livestock %s", fault.ErrNotOwned, id)
	}
	delete(b.next.Livestock, id)
	b.changes = append(b.changes, Change{Entity: EntityLivestock, Action: ActionDelete, ID: id})
	return nil
}

// PutItem stores it; a depleted stack is removed instead.
func (b *Builder) PutItem(it item.Item) error {
	if it.Quantity < 0 {
		return fmt.Errorf("%w: item %s quantity %d", fault.ErrInvalidAmount, it.ID, it.Quantity)
	}
	if it.Depleted() {
		if _, ok := b.next.Items[it.ID]; ok {
			delete(b.next.Items, it.ID)
			b.changes = append(b.changes, Change{Entity: EntityItem, Action: ActionDelete, ID: it.ID})
		}
		return nil
	}
	it.OwnerID = b.next.Player.ID
	b.next.Items[it.ID] = it
	b.changes = append(b.changes, Change{Entity: EntityItem, Action: ActionUpsert, ID: it.ID})
	return nil
}

// AddItem merges it into an existing stack with the same id, or adds it.
func (b *Builder) AddItem(it item.Item) error {
	if cur, ok := b.next.Items[it.ID]; ok {
		cur.Quantity += it.Quantity
		return b.PutItem(cur)
	}
	return b.PutItem(it)
}

// ConsumeItem removes n units of the item with id.
func (b *Builder) ConsumeItem(id string, n int) error {
	cur, ok := b.next.Items[id]
	if !ok {
		return fmt.Errorf("%w: item %s", fault.ErrNotOwned, id)
	}
	next, err := item.Consume(cur, n)
	if err != nil {
		return err
	}
	return b.PutItem(next)
}

// SetListings replaces the market listings.
func (b *Builder) SetListings(ls []market.Listing) {
	b.next.Listings = ls
	b.changes = append(b.changes, Change{Entity: EntityListings, Action: ActionUpsert, ID: b.next.Player.ID})
}

// Changes returns the modifications staged so far.
func (b *Builder) Changes() []Change {
	return b.changes
}

// Build finalises the transition.
func (b *Builder) Build() Commit {
	next := b.next
	next.Version = b.base + 1
	return Commit{
		Aggregate:       next,
		Changes:         b.changes,
		Entries:         b.entries,
		ExpectedVersion: b.base,
	}
}

func (b *Builder) touchPlayer() {
	b.changes = append(b.changes, Change{Entity: EntityPlayer, Action: ActionUpsert, ID: b.next.Player.ID})
}
