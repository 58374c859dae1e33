package main

import (
	"github.com/artpar/menagerie/bootstrap"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the menagerie HTTP server.

The server will:
  - Load configuration from menagerie.yaml (or --config)
  - Or load configuration from MENAGERIE_* environment variables
  - Open the state store and apply migrations
  - Load the game tables and serve the player API

With hot reload on, edits to the config file (and to the tables file when
tables.watch is set) or a SIGHUP swap in new tables without a restart.

Environment variables (for Docker deployments):
  MENAGERIE_DATABASE_DRIVER  - memory, sqlite or postgres (default: sqlite)
  MENAGERIE_DATABASE_DSN     - Database path or URL (default: menagerie.db)
  MENAGERIE_SERVER_PORT      - Server port (default: 8080)
  MENAGERIE_TABLES_PATH      - Game tables YAML (default: embedded)
  MENAGERIE_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  menagerie serve
  menagerie serve --config /etc/menagerie/config.yaml
  menagerie serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload config and tables on change or SIGHUP")
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.NewWithOptions(bootstrap.Options{
		ConfigPath: cfgFile,
		Watch:      hotReload,
	})
	if err != nil {
		return err
	}

	// Run (blocks until shutdown)
	return app.Run()
}
