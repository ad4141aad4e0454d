package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bombarena/server/internal/server"
)

var (
	flagReplayEvery uint32
	flagReplayFull  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <recording>",
	Short: "Re-run a recording and print its checksums",
	Long: `Re-run a recorded entropy stream against the configured data tables and
print the checksum of every Nth step. Two runs of the same recording must
print identical output.

Examples:
  bombarena replay records/match.rec
  bombarena replay records/match.rec --every 1 --full`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().Uint32Var(&flagReplayEvery, "every", 60, "Print every Nth step")
	replayCmd.Flags().BoolVar(&flagReplayFull, "full", false, "Use the full-state digest instead of the sample hash")
}

func runReplay(_ *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	gd, err := loadGameData(cfg.Data, cfg.Simulation, log, false)
	if err != nil {
		return err
	}
	defer gd.scripts.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	sums, err := server.Replay(f, server.ReplayOptions{
		Common:       gd.table.Common(gd.scenario.Bounds()),
		Rules:        gd.rules,
		Scripts:      gd.scripts,
		FullChecksum: flagReplayFull || cfg.Simulation.FullChecksum,
		Log:          log,
	})
	every := max(flagReplayEvery, 1)
	for i, s := range sums {
		if uint32(i+1)%every == 0 || i == len(sums)-1 {
			fmt.Printf("%10d  %08x\n", s.Step, s.Hash)
		}
	}
	if err != nil {
		return fmt.Errorf("replay stopped after %d steps: %w", len(sums), err)
	}
	fmt.Printf("%d steps replayed\n", len(sums))
	return nil
}
