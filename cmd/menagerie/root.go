package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "menagerie",
	Short: "Game-state kernel for a monster-ranch economy",
	Long: `Menagerie owns the authoritative state of every player: money,
facility modules, livestock, items and the monthly turn.

Quick start:
  menagerie serve      # Start the HTTP server
  menagerie validate   # Check configuration and game tables
  menagerie simulate   # Play turns against an in-memory store`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "menagerie.yaml", "config file path")
}
