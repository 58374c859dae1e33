package app_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artpar/menagerie/adapters/clock"
	"github.com/artpar/menagerie/adapters/idgen"
	"github.com/artpar/menagerie/adapters/memory"
	"github.com/artpar/menagerie/adapters/random"
	"github.com/artpar/menagerie/app"
	"github.com/artpar/menagerie/domain/catalog"
	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/item"
	"github.com/artpar/menagerie/domain/ledger"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/market"
	"github.com/artpar/menagerie/domain/module"
	"github.com/artpar/menagerie/domain/player"
	"github.com/artpar/menagerie/domain/turn"
	"github.com/rs/zerolog"
)

type fixture struct {
	k     *app.Kernel
	store *memory.StateStore
}

func newFixture(t *testing.T, opts ...app.Option) *fixture {
	t.Helper()
	tables, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	store := memory.NewStateStore(memory.StateStoreConfig{})
	k, err := app.NewKernel(app.Config{
		Store:  store,
		Clock:  clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Seeds:  random.NewFake(1),
		IDs:    idgen.NewSequential("dish-"),
		Tables: tables,
	}, zerolog.Nop(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{k: k, store: store}
}

// seed stores agg, applying levels on top of the fresh module set.
func (f *fixture) seed(t *testing.T, agg player.Aggregate, levels map[module.Kind]int) {
	t.Helper()
	for kind, lvl := range levels {
		agg.Modules[kind] = module.Module{Kind: kind, Level: lvl}
	}
	if err := f.store.Create(context.Background(), agg); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) state(t *testing.T, id string) player.Aggregate {
	t.Helper()
	agg, err := f.k.State(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return agg
}

func newAggregate(t *testing.T, id string, balance int64) player.Aggregate {
	t.Helper()
	acct, err := ledger.Open(balance)
	if err != nil {
		t.Fatal(err)
	}
	return player.Aggregate{
		Player:    player.Player{ID: id, Account: acct, CurrentTurn: 1},
		Modules:   module.NewSet(),
		Livestock: map[string]livestock.Livestock{},
		Items:     map[string]item.Item{},
	}
}

func owned(id, owner, species string, quality float64, at module.Kind) livestock.Livestock {
	return livestock.Livestock{
		ID: id, OwnerID: owner, Species: species, Quality: quality,
		BirthTurn: 1, AcquireTurn: 1, Location: at,
	}
}

func TestNewKernel_Validation(t *testing.T) {
	tables, _ := catalog.Default()
	if _, err := app.NewKernel(app.Config{Tables: tables}, zerolog.Nop()); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Errorf("missing deps err = %v", err)
	}

	bad, _ := catalog.Default()
	bad.TurnOrder = bad.TurnOrder[:2]
	_, err := app.NewKernel(app.Config{
		Store:  memory.NewStateStore(memory.StateStoreConfig{}),
		Clock:  clock.Real{},
		Seeds:  random.Real{},
		IDs:    idgen.UUID{},
		Tables: bad,
	}, zerolog.Nop())
	if !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("bad tables err = %v, want ErrConfiguration", err)
	}
}

func TestKernel_CreatePlayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := player.Character{
		FirstName:  "Ada",
		LastName:   "Wren",
		Background: player.Background{Family: "middle_class", Childhood: "traveled_much", Education: "trade_school", StartingCity: "town", BirthMonth: 1},
	}
	agg, err := f.k.CreatePlayer(ctx, "p1", c)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Player.Balance() != 10500 || agg.Player.CurrentTurn != 1 {
		t.Errorf("player = %+v", agg.Player)
	}
	if got := f.state(t, "p1").Player.FullName(); got != "Ada Wren" {
		t.Errorf("stored name = %q, want Ada Wren", got)
	}
	if len(agg.Player.Perks) != 5 {
		t.Errorf("perks = %v", agg.Player.Perks)
	}
	for _, kind := range module.Kinds {
		if agg.Modules[kind].Level != 0 {
			t.Errorf("%s level = %d, want 0", kind, agg.Modules[kind].Level)
		}
	}
	if len(agg.Listings) != 0 {
		t.Errorf("listings = %d, want 0", len(agg.Listings))
	}

	if _, err := f.k.CreatePlayer(ctx, "p1", c); !errors.Is(err, fault.ErrConflict) {
		t.Errorf("duplicate err = %v, want ErrConflict", err)
	}
	nameless := c
	nameless.FirstName = ""
	if _, err := f.k.CreatePlayer(ctx, "p2", nameless); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Errorf("missing name err = %v, want ErrInvalidArgument", err)
	}
	c.Background.Family = "welthy"
	if _, err := f.k.CreatePlayer(ctx, "p2", c); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Errorf("bad background err = %v, want ErrInvalidArgument", err)
	}
}

func TestKernel_CreationOptionsAndPreview(t *testing.T) {
	f := newFixture(t)

	opts := f.k.CreationOptions()
	if len(opts.Families) == 0 || len(opts.StartingCities) == 0 || len(opts.BirthMonths) != 12 {
		t.Fatalf("options = %+v", opts)
	}

	bg := player.Background{Family: "middle_class", Childhood: "traveled_much", Education: "trade_school", StartingCity: "town", BirthMonth: 1}
	p, err := f.k.PreviewStartingFunds(bg)
	if err != nil {
		t.Fatal(err)
	}
	if p.StartingMoney != 10500 || len(p.Perks) != 5 {
		t.Errorf("preview = %+v, want 10500 and 5 perks", p)
	}
	if ids, _ := f.k.Players(context.Background()); len(ids) != 0 {
		t.Errorf("preview created players %v", ids)
	}

	bg.StartingCity = "atlantis"
	if _, err := f.k.PreviewStartingFunds(bg); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Errorf("unknown city err = %v, want ErrInvalidArgument", err)
	}
}

func TestKernel_DebitCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, newAggregate(t, "p1", 100), nil)

	if _, err := f.k.Debit(ctx, "p1", 150, ""); !errors.Is(err, fault.ErrInsufficientFunds) {
		t.Fatalf("overdraw err = %v, want ErrInsufficientFunds", err)
	}
	if got := f.state(t, "p1").Player.Balance(); got != 100 {
		t.Errorf("balance after failed debit = %d, want 100", got)
	}

	bal, err := f.k.Debit(ctx, "p1", 37, "")
	if err != nil || bal != 63 {
		t.Fatalf("debit = %d, %v", bal, err)
	}
	bal, err = f.k.Credit(ctx, "p1", 37, "")
	if err != nil || bal != 100 {
		t.Fatalf("credit = %d, %v", bal, err)
	}

	journal, _ := f.store.Journal(ctx, "p1")
	if len(journal) != 2 || journal[0].Reason != app.ReasonAdminDebit {
		t.Errorf("journal = %+v", journal)
	}

	if _, err := f.k.Credit(ctx, "p1", 0, ""); !errors.Is(err, fault.ErrInvalidAmount) {
		t.Errorf("zero credit err = %v, want ErrInvalidAmount", err)
	}
	if _, err := f.k.Debit(ctx, "ghost", 1, ""); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("unknown player err = %v, want ErrNotFound", err)
	}
}

func TestKernel_PurchaseAndPhotoStudioTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	agg := newAggregate(t, "p1", 100)
	hen := livestock.Livestock{ID: "hen-1", Species: "chicken", Quality: 0.5, BirthTurn: 1, Location: livestock.Unassigned}
	agg.Listings = []market.Listing{{ID: "hen-1", Livestock: hen, Price: 60}}
	f.seed(t, agg, map[module.Kind]int{module.Market: 1, module.PhotoStudio: 1})

	bought, err := f.k.Purchase(ctx, "p1", "hen-1")
	if err != nil {
		t.Fatal(err)
	}
	if bought.OwnerID != "p1" || bought.Location != livestock.Unassigned || bought.AcquireTurn != 1 {
		t.Errorf("bought = %+v", bought)
	}
	st := f.state(t, "p1")
	if st.Player.Balance() != 40 || len(st.Listings) != 0 {
		t.Fatalf("after purchase balance %d, listings %d", st.Player.Balance(), len(st.Listings))
	}

	if _, err := f.k.Purchase(ctx, "p1", "hen-1"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("second purchase err = %v, want ErrNotFound", err)
	}

	if _, err := f.k.Relocate(ctx, "p1", "hen-1", module.PhotoStudio); err != nil {
		t.Fatal(err)
	}

	res, err := f.k.AdvanceTurn(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Turn != 2 || res.Income != 20 || res.MoneyDelta != 20 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Listings) != 3 {
		t.Errorf("listings = %d, want 3", len(res.Listings))
	}

	st = f.state(t, "p1")
	if st.Player.Balance() != 60 || st.Player.CurrentTurn != 2 {
		t.Errorf("balance/turn = %d/%d, want 60/2", st.Player.Balance(), st.Player.CurrentTurn)
	}
	if st.Livestock["hen-1"].Age != 1 {
		t.Errorf("age = %d, want 1", st.Livestock["hen-1"].Age)
	}
	if len(st.Listings) != 3 {
		t.Errorf("stored listings = %d, want 3", len(st.Listings))
	}
}

func TestKernel_PurchaseUnaffordable(t *testing.T) {
	f := newFixture(t)
	agg := newAggregate(t, "p1", 50)
	hen := livestock.Livestock{ID: "hen-1", Species: "chicken", Quality: 0.5, Location: livestock.Unassigned}
	agg.Listings = []market.Listing{{ID: "hen-1", Livestock: hen, Price: 60}}
	f.seed(t, agg, map[module.Kind]int{module.Market: 1})

	if _, err := f.k.Purchase(context.Background(), "p1", "hen-1"); !errors.Is(err, fault.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	st := f.state(t, "p1")
	if st.Player.Balance() != 50 || len(st.Listings) != 1 || len(st.Livestock) != 0 {
		t.Errorf("state changed: balance %d listings %d livestock %d", st.Player.Balance(), len(st.Listings), len(st.Livestock))
	}
}

func TestKernel_Upgrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, newAggregate(t, "p1", 600), nil)

	m, err := f.k.Upgrade(ctx, "p1", module.Market)
	if err != nil {
		t.Fatal(err)
	}
	if m.Level != 1 {
		t.Errorf("level = %d, want 1", m.Level)
	}
	if got := f.state(t, "p1").Player.Balance(); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}

	if _, err := f.k.Upgrade(ctx, "p1", module.Market); !errors.Is(err, fault.ErrInsufficientFunds) {
		t.Errorf("unaffordable err = %v, want ErrInsufficientFunds", err)
	}
	if _, err := f.k.Upgrade(ctx, "p1", "markt"); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Errorf("unknown kind err = %v, want ErrInvalidArgument", err)
	}
}

func TestKernel_UpgradeAtMaxLevel(t *testing.T) {
	f := newFixture(t)
	f.seed(t, newAggregate(t, "p1", 1_000_000), map[module.Kind]int{module.Dungeon: module.MaxLevel})

	if _, err := f.k.Upgrade(context.Background(), "p1", module.Dungeon); !errors.Is(err, fault.ErrMaxLevelReached) {
		t.Fatalf("err = %v, want ErrMaxLevelReached", err)
	}
	st := f.state(t, "p1")
	if st.Player.Balance() != 1_000_000 || st.Modules[module.Dungeon].Level != module.MaxLevel || st.Version != 0 {
		t.Errorf("state changed: balance %d level %d version %d", st.Player.Balance(), st.Modules[module.Dungeon].Level, st.Version)
	}
}

func TestKernel_ConcurrentUpgrades(t *testing.T) {
	f := newFixture(t)
	f.seed(t, newAggregate(t, "p1", 700), nil)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.k.Upgrade(context.Background(), "p1", module.Market)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, fault.ErrInsufficientFunds):
			t.Errorf("unexpected err %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d upgrades succeeded, want 1", succeeded)
	}
	st := f.state(t, "p1")
	if st.Player.Balance() != 200 || st.Modules[module.Market].Level != 1 {
		t.Errorf("balance/level = %d/%d, want 200/1", st.Player.Balance(), st.Modules[module.Market].Level)
	}
}

func TestKernel_TurnAtomicUnderFailure(t *testing.T) {
	boom := errors.New("injected")
	for _, step := range turn.Steps {
		t.Run(string(step), func(t *testing.T) {
			hook := func(s turn.Step) error {
				if s == step {
					return boom
				}
				return nil
			}
			f := newFixture(t, app.WithStepHook(hook))
			agg := newAggregate(t, "p1", 100)
			agg.Livestock["hen-1"] = owned("hen-1", "p1", "chicken", 0.5, module.PhotoStudio)
			f.seed(t, agg, map[module.Kind]int{module.Market: 2, module.PhotoStudio: 1})

			if _, err := f.k.AdvanceTurn(context.Background(), "p1"); !errors.Is(err, boom) {
				t.Fatalf("err = %v, want injected failure", err)
			}

			st := f.state(t, "p1")
			if st.Player.CurrentTurn != 1 || st.Player.Balance() != 100 || st.Version != 0 {
				t.Errorf("turn/balance/version = %d/%d/%d, want 1/100/0", st.Player.CurrentTurn, st.Player.Balance(), st.Version)
			}
			if len(st.Listings) != 0 || st.Modules[module.PhotoStudio].LastEventTurn != 0 {
				t.Errorf("partial turn visible: listings %d, studio %+v", len(st.Listings), st.Modules[module.PhotoStudio])
			}
		})
	}
}

func TestKernel_ConcurrentTurnRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var blocked atomic.Bool
	hook := func(s turn.Step) error {
		if s == turn.StepModules && blocked.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
		return nil
	}
	f := newFixture(t, app.WithStepHook(hook))
	f.seed(t, newAggregate(t, "p1", 100), nil)
	f.seed(t, newAggregate(t, "p2", 100), nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.k.AdvanceTurn(ctx, "p1")
		done <- err
	}()
	<-entered

	if _, err := f.k.AdvanceTurn(ctx, "p1"); !errors.Is(err, fault.ErrConcurrentTurnInProgress) {
		t.Errorf("second turn err = %v, want ErrConcurrentTurnInProgress", err)
	}
	// Other players are unaffected.
	if _, err := f.k.AdvanceTurn(ctx, "p2"); err != nil {
		t.Errorf("other player turn: %v", err)
	}

	queued := make(chan error, 1)
	go func() {
		_, err := f.k.Credit(ctx, "p1", 5, "")
		queued <- err
	}()

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if err := <-queued; err != nil {
		t.Fatalf("queued credit: %v", err)
	}

	st := f.state(t, "p1")
	if st.Player.CurrentTurn != 2 || st.Player.Balance() != 105 {
		t.Errorf("turn/balance = %d/%d, want 2/105", st.Player.CurrentTurn, st.Player.Balance())
	}
}

func TestKernel_LockWaitHonoursContext(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var blocked atomic.Bool
	hook := func(s turn.Step) error {
		if s == turn.StepIncrement && blocked.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
		return nil
	}
	f := newFixture(t, app.WithStepHook(hook))
	f.seed(t, newAggregate(t, "p1", 100), nil)

	done := make(chan error, 1)
	go func() {
		_, err := f.k.AdvanceTurn(context.Background(), "p1")
		done <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := f.k.Debit(ctx, "p1", 10, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := f.state(t, "p1").Player.Balance(); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}
}

func TestKernel_Relocate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agg := newAggregate(t, "p1", 100)
	agg.Livestock["a"] = owned("a", "p1", "chicken", 0.4, livestock.Unassigned)
	agg.Livestock["b"] = owned("b", "p1", "rabbit", 0.6, livestock.Unassigned)
	f.seed(t, agg, map[module.Kind]int{module.PhotoStudio: 1})

	if _, err := f.k.Relocate(ctx, "p1", "a", module.PhotoStudio); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		id     string
		target module.Kind
		want   error
	}{
		{"capacity", "b", module.PhotoStudio, fault.ErrCapacityExceeded},
		{"not built", "b", module.Dungeon, fault.ErrModuleLocked},
		{"not owned", "zzz", module.PhotoStudio, fault.ErrNotOwned},
		{"unknown kind", "b", "stable", fault.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.k.Relocate(ctx, "p1", tt.id, tt.target); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	l, err := f.k.Relocate(ctx, "p1", "a", livestock.Unassigned)
	if err != nil || l.Location != livestock.Unassigned {
		t.Fatalf("unassign = %+v, %v", l, err)
	}
	if _, err := f.k.Relocate(ctx, "p1", "b", module.PhotoStudio); err != nil {
		t.Errorf("studio should be free again: %v", err)
	}
}

func TestKernel_Grant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, newAggregate(t, "p1", 0), nil)

	l, err := f.k.Grant(ctx, "p1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if l.OwnerID != "p1" || l.Location != livestock.Unassigned {
		t.Errorf("granted = %+v", l)
	}
	switch l.Species {
	case "chicken", "rabbit", "pig":
	default:
		t.Errorf("species %q not available at market level 1", l.Species)
	}
	if _, ok := f.state(t, "p1").Livestock[l.ID]; !ok {
		t.Error("granted livestock not stored")
	}

	if _, err := f.k.Grant(ctx, "p1", 9); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("bad level err = %v, want ErrConfiguration", err)
	}
}

func TestKernel_Breed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agg := newAggregate(t, "p1", 1000)
	agg.Livestock["c1"] = owned("c1", "p1", "chicken", 0.4, module.Farm)
	agg.Livestock["c2"] = owned("c2", "p1", "chicken", 0.6, module.Farm)
	agg.Livestock["r1"] = owned("r1", "p1", "rabbit", 0.6, module.Farm)
	agg.Livestock["c3"] = owned("c3", "p1", "chicken", 0.6, livestock.Unassigned)
	chick := owned("c4", "p1", "chicken", 0.5, module.Farm)
	chick.BirthTurn = 2
	agg.Livestock["c4"] = chick
	agg.Player.CurrentTurn = 2
	f.seed(t, agg, map[module.Kind]int{module.Farm: 1})

	child, err := f.k.Breed(ctx, "p1", "c1", "c2")
	if err != nil {
		t.Fatal(err)
	}
	if child.FatherID != "c1" || child.MotherID != "c2" || child.Species != "chicken" {
		t.Errorf("child = %+v", child)
	}
	if child.OwnerID != "p1" || child.Location != livestock.Unassigned {
		t.Errorf("child placement = %+v", child)
	}
	st := f.state(t, "p1")
	if st.Player.Balance() != 800 {
		t.Errorf("balance = %d, want 800", st.Player.Balance())
	}
	if err := livestock.ValidateLineage(st.Livestock); err != nil {
		t.Errorf("lineage: %v", err)
	}

	tests := []struct {
		name           string
		father, mother string
		want           error
	}{
		{"species mismatch", "c1", "r1", fault.ErrInvalidArgument},
		{"same parent", "c1", "c1", fault.ErrInvalidArgument},
		{"not on farm", "c1", "c3", fault.ErrInvalidArgument},
		{"parent born this turn", "c1", "c4", fault.ErrInvalidArgument},
		{"not owned", "c1", "zzz", fault.ErrNotOwned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.k.Breed(ctx, "p1", tt.father, tt.mother); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if got := f.state(t, "p1").Player.Balance(); got != 800 {
		t.Errorf("failed breeds changed balance to %d", got)
	}
}

func TestKernel_ProcessCookSell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agg := newAggregate(t, "p1", 0)
	agg.Livestock["pig-1"] = owned("pig-1", "p1", "pig", 0.8, livestock.Unassigned)
	agg.Livestock["hen-1"] = owned("hen-1", "p1", "chicken", 0.5, livestock.Unassigned)
	f.seed(t, agg, map[module.Kind]int{module.Slaughterhouse: 1, module.Restaurant: 1})

	pork, err := f.k.Process(ctx, "p1", "pig-1", "standard")
	if err != nil {
		t.Fatal(err)
	}
	if len(pork) != 1 || pork[0].Type != "pork" || pork[0].Quantity != 4 || pork[0].Quality != 0.8 {
		t.Fatalf("pork = %+v", pork)
	}
	if _, err := f.k.Process(ctx, "p1", "pig-1", "standard"); !errors.Is(err, fault.ErrNotOwned) {
		t.Errorf("reprocess err = %v, want ErrNotOwned", err)
	}
	if _, err := f.k.Process(ctx, "p1", "hen-1", "smoked"); !errors.Is(err, fault.ErrInvalidMethod) {
		t.Errorf("bad method err = %v, want ErrInvalidMethod", err)
	}
	if _, err := f.k.Process(ctx, "p1", "hen-1", "premium"); !errors.Is(err, fault.ErrModuleLocked) {
		t.Errorf("locked method err = %v, want ErrModuleLocked", err)
	}

	// chicken: 1 + floor(0.5*2) = 2 units of chicken_meat
	meat, err := f.k.Process(ctx, "p1", "hen-1", "standard")
	if err != nil {
		t.Fatal(err)
	}
	if meat[0].Quantity != 2 {
		t.Fatalf("chicken meat = %+v", meat[0])
	}

	if _, err := f.k.Cook(ctx, "p1", "rabbit_stew", nil); !errors.Is(err, fault.ErrInsufficientIngredients) {
		t.Errorf("stew err = %v, want ErrInsufficientIngredients", err)
	}
	if _, err := f.k.Cook(ctx, "p1", "roast_pork", nil); !errors.Is(err, fault.ErrModuleLocked) {
		t.Errorf("tier 2 err = %v, want ErrModuleLocked", err)
	}
	if _, err := f.k.Cook(ctx, "p1", "sushi", nil); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("unknown recipe err = %v, want ErrNotFound", err)
	}

	dish, err := f.k.Cook(ctx, "p1", "fried_chicken", []string{meat[0].ID})
	if err != nil {
		t.Fatal(err)
	}
	if dish.ID != "dish-1" || dish.Quantity != 2 || dish.Quality != 0.5 || dish.Category != item.CategoryDish {
		t.Errorf("dish = %+v", dish)
	}
	st := f.state(t, "p1")
	if _, ok := st.Items[meat[0].ID]; ok {
		t.Error("consumed chicken meat still in pantry")
	}

	// floor(40 * (0.5 + 0.5)) = 40 per unit
	earned, err := f.k.SellItem(ctx, "p1", dish.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if earned != 40 {
		t.Errorf("earned = %d, want 40", earned)
	}
	if _, err := f.k.SellItem(ctx, "p1", dish.ID, 5); !errors.Is(err, fault.ErrInvalidAmount) {
		t.Errorf("oversell err = %v, want ErrInvalidAmount", err)
	}
	st = f.state(t, "p1")
	if st.Player.Balance() != 40 || st.Items[dish.ID].Quantity != 1 {
		t.Errorf("balance %d, dishes %d", st.Player.Balance(), st.Items[dish.ID].Quantity)
	}
}

func TestKernel_ReloadTables(t *testing.T) {
	f := newFixture(t)
	before := f.k.Tables()

	bad, _ := catalog.Default()
	bad.Modules[module.Farm] = module.Config{}
	if err := f.k.ReloadTables(bad); !errors.Is(err, fault.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if f.k.Tables() != before {
		t.Error("rejected tables were swapped in")
	}
	if err := f.k.ReloadTables(nil); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("nil tables err = %v", err)
	}

	next, _ := catalog.Default()
	next.Modules[module.Market] = module.Config{
		NameKey: "module.market.name", BaseCost: 5, CostGrowth: 1,
		Levels: before.Modules[module.Market].Levels,
	}
	if err := f.k.ReloadTables(next); err != nil {
		t.Fatal(err)
	}
	f.seed(t, newAggregate(t, "p1", 10), nil)
	if _, err := f.k.Upgrade(context.Background(), "p1", module.Market); err != nil {
		t.Fatalf("upgrade with reloaded cost: %v", err)
	}
	if got := f.state(t, "p1").Player.Balance(); got != 5 {
		t.Errorf("balance = %d, want 5", got)
	}
}

func TestKernel_ReloadDuringTurnKeepsSnapshot(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var blocked atomic.Bool
	hook := func(s turn.Step) error {
		if s == turn.StepModules && blocked.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
		return nil
	}
	f := newFixture(t, app.WithStepHook(hook))
	agg := newAggregate(t, "p1", 0)
	agg.Livestock["hen-1"] = owned("hen-1", "p1", "chicken", 0.5, module.PhotoStudio)
	f.seed(t, agg, map[module.Kind]int{module.PhotoStudio: 1})
	ctx := context.Background()

	done := make(chan error, 1)
	var first turn.Result
	go func() {
		var err error
		first, err = f.k.AdvanceTurn(ctx, "p1")
		done <- err
	}()
	<-entered

	next, _ := catalog.Default()
	studio := next.Modules[module.PhotoStudio]
	studio.Levels[1].IncomeBase = 1000
	next.Modules[module.PhotoStudio] = studio
	if err := f.k.ReloadTables(next); err != nil {
		t.Fatal(err)
	}
	if f.k.Tables() != next {
		t.Fatal("reload did not install the new tables")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight turn: %v", err)
	}
	// 10 + floor(0.5*20) from the tables the turn started with.
	if first.Income != 20 {
		t.Errorf("in-flight turn income = %d, want 20", first.Income)
	}

	second, err := f.k.AdvanceTurn(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if second.Income != 1010 {
		t.Errorf("next turn income = %d, want 1010", second.Income)
	}
}

func TestKernel_PlayersAndJournal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, newAggregate(t, "p2", 50), nil)
	f.seed(t, newAggregate(t, "p1", 50), nil)

	ids, err := f.k.Players(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
		t.Errorf("players = %v, want [p1 p2]", ids)
	}

	if _, err := f.k.Credit(ctx, "p1", 25, "ledger.test.bonus"); err != nil {
		t.Fatal(err)
	}
	journal, err := f.k.Journal(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(journal) != 1 || journal[0].Reason != "ledger.test.bonus" || journal[0].BalanceAfter != 75 {
		t.Errorf("journal = %+v", journal)
	}

	if _, err := f.k.Journal(ctx, "ghost"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("unknown player err = %v, want ErrNotFound", err)
	}
}
