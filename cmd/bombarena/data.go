package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/bombarena/server/internal/config"
	"github.com/bombarena/server/internal/data"
	"github.com/bombarena/server/internal/mode"
	"github.com/bombarena/server/internal/scripting"
)

// gameData is everything loaded from the data directory.
type gameData struct {
	table    *data.FlavourTable
	rules    mode.Rules
	scenario *data.Scenario
	scripts  *scripting.Engine
}

func loadGameData(cfg config.DataConfig, sim config.SimulationConfig, log *zap.Logger, verbose bool) (*gameData, error) {
	table, err := data.LoadFlavourTable(cfg.Flavours)
	if err != nil {
		return nil, fmt.Errorf("load flavours: %w", err)
	}
	rules, err := data.LoadRules(cfg.Rules, table)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	if sim.FixedDeltaMs > 0 {
		rules.DeltaMs = sim.FixedDeltaMs
	}
	scenario, err := data.LoadScenario(cfg.Scenario)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	scripts, err := scripting.NewEngine(cfg.ScriptsDir, log.Named("lua"))
	if err != nil {
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	if verbose {
		printStat("Flavours", table.Count())
		printStat("Placements", len(scenario.Placements))
	}
	return &gameData{table: table, rules: rules, scenario: scenario, scripts: scripts}, nil
}
