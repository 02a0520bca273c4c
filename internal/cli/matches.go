package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"gridfire.ai/internal/replay"
)

var matchesLimit int

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List recorded matches, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		index, err := replay.OpenIndex(filepath.Join(cfg.Replay.Dir, "index.db"))
		if err != nil {
			return err
		}
		defer index.Close()

		rows, err := index.Matches(cmd.Context(), matchesLimit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("no recorded matches")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%s  round=%s ticks=%d..%d score=%d cycles=%d  %s\n",
				r.ID, r.Round, r.FirstTick, r.LastTick, r.FinalScore, r.Cycles, r.RecordedAt)
		}
		return nil
	},
}

func init() {
	matchesCmd.Flags().IntVar(&matchesLimit, "limit", 20, "maximum rows to list")
}
