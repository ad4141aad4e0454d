package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/cosmos"
	"github.com/bombarena/server/internal/mode"
	"github.com/bombarena/server/internal/net/packet"
	"github.com/bombarena/server/internal/persist"
)

var flagInspectMatch string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarise the latest stored snapshot",
	Long: `Load the latest snapshot of a match from the configured store and print
the world and match state it holds.

Examples:
  bombarena inspect
  bombarena inspect --match 3f0c2a8e-...`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&flagInspectMatch, "match", "", "Match id (default: latest match)")
}

func runInspect(_ *cobra.Command, _ []string) error {
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := persist.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()

	var id uuid.UUID
	if flagInspectMatch != "" {
		if id, err = uuid.Parse(flagInspectMatch); err != nil {
			return fmt.Errorf("match id: %w", err)
		}
	} else {
		m, err := store.LatestMatch(ctx)
		if err != nil {
			return fmt.Errorf("latest match: %w", err)
		}
		id = m.ID
	}

	snap, err := store.LatestSnapshot(ctx, id)
	if err != nil {
		return fmt.Errorf("snapshot of %s: %w", id, err)
	}

	factory := &cosmos.Factory{}
	c := factory.NewCosmos(gd.table.Common(gd.scenario.Bounds()), 0)
	if err := c.Load(snap.Cosmos); err != nil {
		return err
	}
	m := mode.New(0)
	if err := m.Decode(packet.NewReader(snap.Mode)); err != nil {
		return err
	}

	hash := c.CalculateSigniHash()
	if cfg.Simulation.FullChecksum {
		hash = c.FullHash()
	}

	printSection("Snapshot")
	fmt.Printf("  match     %s\n", id)
	fmt.Printf("  saved     %s\n", snap.CreatedAt.Local().Format(time.DateTime))
	fmt.Printf("  step      %d (%d ms)\n", snap.Step, c.Clock().Now())
	fmt.Printf("  checksum  %08x (saved %08x)\n", hash, snap.Hash)
	printStat("Entities", c.Count())
	fmt.Println()

	printSection("Match")
	fmt.Printf("  round %d, state %d\n", m.RoundNum(), m.State)
	for _, f := range component.PlayableFactions {
		fmt.Printf("  %-12s score %d\n", f, m.Score(f))
	}
	for _, pid := range slices.Sorted(maps.Keys(m.Players)) {
		p := m.Players[pid]
		kind := "human"
		if p.Bot {
			kind = "bot"
		}
		fmt.Printf("  #%-6d %-16s %-12s %-5s money %d\n", pid, p.Name, p.Faction, kind, p.Stats.Money)
	}
	return nil
}
