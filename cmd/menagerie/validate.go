package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/menagerie/adapters/postgres"
	"github.com/artpar/menagerie/adapters/sqlite"
	"github.com/artpar/menagerie/config"
	"github.com/artpar/menagerie/domain/catalog"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and game tables before deployment",
	Long: `Validate the menagerie configuration and the game tables it names.

Checks:
  - YAML syntax is valid
  - Field values are in range (typos get a suggestion)
  - Game tables parse and are internally consistent
  - Database is reachable (optional)

Examples:
  menagerie validate
  menagerie validate --config /etc/menagerie/config.yaml
  menagerie validate --tables ./tables.yaml`,
	RunE: runValidate,
}

var (
	validateTables        string
	validateCheckDatabase bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateTables, "tables", "", "validate this tables file instead of the configured one")
	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if the database is reachable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)
	fmt.Fprintf(out, "  %s Database: %s\n", checkMark, cfg.Database.Driver)

	tablesPath := cfg.Tables.Path
	if validateTables != "" {
		tablesPath = validateTables
	}
	source := tablesPath
	if source == "" {
		source = "embedded defaults"
	}

	tables, err := catalog.Load(tablesPath)
	if err != nil {
		fmt.Fprintf(out, "  %s Tables valid (%s)\n", crossMark, source)
		return fmt.Errorf("tables error: %w", err)
	}
	fmt.Fprintf(out, "  %s Tables valid (%s)\n", checkMark, source)
	fmt.Fprintf(out, "  %s Modules: %d, species: %d, recipes: %d\n", checkMark,
		len(tables.Modules), len(tables.Generator.Species), len(tables.Recipes))

	if validateCheckDatabase {
		if err := checkDatabase(cfg.Database); err != nil {
			fmt.Fprintf(out, "  %s Database reachable\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(out, "  %s Database reachable\n", checkMark)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Reloadable without restart: %s\n", strings.Join(config.ReloadableFields(), ", "))
	fmt.Fprintf(out, "Restart required: %s\n", strings.Join(config.NonReloadableFields(), ", "))
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func checkDatabase(cfg config.DatabaseConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.PingContext(ctx)
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		return db.Close()
	default:
		return nil
	}
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
