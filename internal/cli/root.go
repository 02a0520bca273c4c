// Package cli defines the cobra commands for the gridfire binary: play a
// match against an arena, list recorded matches, and print one back.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gridfire.ai/internal/engine"
)

var (
	configFlag string
	version    = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "gridfire",
	Short: "Autonomous unit controller for grid bomber arenas",
	Long: `Gridfire connects to a grid bomber arena over websocket and plays a
team of units: it tracks the map under fog of war, predicts blast chains,
scores obstacle placements, and coordinates bomb drops so units never path
into each other or onto a doomed cell.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to tuning.yaml (defaults to built-in values)")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(matchesCmd)
	rootCmd.AddCommand(replayCmd)
}

func loadConfig() (engine.Config, error) {
	if configFlag == "" {
		return engine.DefaultConfig(), nil
	}
	return engine.LoadConfig(configFlag)
}
