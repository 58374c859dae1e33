package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/artpar/menagerie/adapters/clock"
	"github.com/artpar/menagerie/adapters/idgen"
	"github.com/artpar/menagerie/adapters/memory"
	"github.com/artpar/menagerie/adapters/random"
	"github.com/artpar/menagerie/app"
	"github.com/artpar/menagerie/config"
	"github.com/artpar/menagerie/domain/catalog"
	"github.com/artpar/menagerie/domain/market"
	"github.com/artpar/menagerie/domain/module"
	"github.com/artpar/menagerie/domain/player"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play monthly turns for one player against an in-memory store",
	Long: `Create a player and advance it through a number of turns, printing
each turn's money movement. Runs with a fixed seed so the same flags always
produce the same game; useful for balancing the game tables.

Examples:
  menagerie simulate --turns 24
  menagerie simulate --upgrade market --upgrade farm --auto-buy
  menagerie simulate --tables ./tables.yaml --seed 7`,
	RunE: runSimulate,
}

var (
	simTurns     int
	simSeed      uint64
	simTables    string
	simUpgrades  []string
	simAutoBuy   bool
	simVerbose   bool
	simBirth     int
	simFamily    string
	simChildhood string
	simEducation string
	simCity      string
	simFirstName string
	simLastName  string
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	f := simulateCmd.Flags()
	f.IntVar(&simTurns, "turns", 12, "number of turns to play")
	f.Uint64Var(&simSeed, "seed", 1, "seed for the deterministic random source")
	f.StringVar(&simTables, "tables", "", "tables file (default: the configured tables)")
	f.StringSliceVar(&simUpgrades, "upgrade", nil, "modules to upgrade before the first turn (repeatable)")
	f.BoolVar(&simAutoBuy, "auto-buy", false, "buy the cheapest affordable listing after every turn")
	f.BoolVarP(&simVerbose, "verbose", "v", false, "log kernel activity to stderr")
	f.IntVar(&simBirth, "birth-month", 1, "birth month (1-12)")
	f.StringVar(&simFamily, "family", "middle_class", "family background")
	f.StringVar(&simChildhood, "childhood", "traveled_much", "childhood background")
	f.StringVar(&simEducation, "education", "trade_school", "education background")
	f.StringVar(&simCity, "city", "town", "starting city")
	f.StringVar(&simFirstName, "first-name", "Sam", "character first name")
	f.StringVar(&simLastName, "last-name", "Keeper", "character last name")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	tables, err := simulationTables()
	if err != nil {
		return err
	}

	logger := zerolog.Nop()
	if simVerbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}

	seeds := random.NewFake(simSeed)
	kernel, err := app.NewKernel(app.Config{
		Store:  memory.NewStateStore(memory.StateStoreConfig{}),
		Clock:  clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).WithStep(time.Hour),
		Seeds:  seeds,
		IDs:    idgen.NewSeeded(seeds),
		Tables: tables,
	}, logger)
	if err != nil {
		return err
	}

	return simulate(cmd.Context(), kernel, cmd.OutOrStdout())
}

func simulationTables() (*catalog.Tables, error) {
	if simTables != "" {
		return catalog.Load(simTables)
	}
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, err
	}
	return catalog.Load(cfg.Tables.Path)
}

func simulate(ctx context.Context, kernel *app.Kernel, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	const playerID = "simulated"

	agg, err := kernel.CreatePlayer(ctx, playerID, player.Character{
		FirstName: simFirstName,
		LastName:  simLastName,
		Background: player.Background{
			Family:       simFamily,
			Childhood:    simChildhood,
			Education:    simEducation,
			StartingCity: simCity,
			BirthMonth:   simBirth,
		},
	})
	if err != nil {
		return fmt.Errorf("create player: %w", err)
	}
	fmt.Fprintf(out, "Player: %s\n", agg.Player.FullName())
	fmt.Fprintf(out, "Starting funds: %d\n", agg.Player.Balance())

	for _, name := range simUpgrades {
		m, err := kernel.Upgrade(ctx, playerID, module.Kind(name))
		if err != nil {
			return fmt.Errorf("upgrade %s: %w", name, err)
		}
		fmt.Fprintf(out, "Upgraded %s to level %d\n", m.Kind, m.Level)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TURN\tINCOME\tEXPENSES\tDELTA\tBALANCE\tEVENTS\tBOUGHT")
	fmt.Fprintln(w, "----\t------\t--------\t-----\t-------\t------\t------")

	for i := 0; i < simTurns; i++ {
		res, err := kernel.AdvanceTurn(ctx, playerID)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}

		bought := "-"
		if simAutoBuy {
			if id, ok := buyCheapest(ctx, kernel, playerID, res.Listings); ok {
				bought = id
			}
		}

		state, err := kernel.State(ctx, playerID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%+d\t%d\t%d\t%s\n",
			res.Turn, res.Income, res.Expenses, res.MoneyDelta,
			state.Player.Balance(), len(res.Events), bought)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	final, err := kernel.State(ctx, playerID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nFinal balance: %d, livestock: %d, items: %d\n",
		final.Player.Balance(), len(final.Livestock), len(final.Items))
	return nil
}

// buyCheapest purchases the cheapest listing the player can afford.
func buyCheapest(ctx context.Context, kernel *app.Kernel, playerID string, listings []market.Listing) (string, bool) {
	sorted := append([]market.Listing(nil), listings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })
	for _, l := range sorted {
		if _, err := kernel.Purchase(ctx, playerID, l.ID); err == nil {
			return l.ID, true
		}
	}
	return "", false
}
