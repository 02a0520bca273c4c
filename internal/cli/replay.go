package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"gridfire.ai/internal/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <match-id>",
	Short: "Print a recorded match cycle by cycle",
	Args:  cobra.ExactArgs(1),
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

		row, err := index.Match(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		r, err := replay.OpenReader(row.Path)
		if err != nil {
			return err
		}
		defer r.Close()

		fmt.Printf("match %s round=%s ticks=%d..%d final score=%d\n",
			row.ID, row.Round, row.FirstTick, row.LastTick, row.FinalScore)
		for {
			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("tick %d score %d alive %d\n", rec.Tick, rec.Score, rec.Alive)
			for _, c := range rec.Commands {
				line := "  " + c.UnitID
				if len(c.Path) > 0 {
					line += fmt.Sprintf(" path=%v", c.Path)
				}
				if len(c.Bombs) > 0 {
					line += fmt.Sprintf(" bombs=%v", c.Bombs)
				}
				fmt.Println(line)
			}
			for _, v := range rec.Verdicts {
				if !v.Accepted {
					fmt.Printf("  %s rejected: %s\n", v.UnitID, v.Code)
				}
			}
		}
	},
}
