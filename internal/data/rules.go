package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/mode"
)

// rulesFile mirrors mode.Rules with flavour names instead of ids. Absent
// keys keep the defaults.
type rulesFile struct {
	DeltaMs *int32 `yaml:"delta_ms"`

	WarmupSecs                     *int32 `yaml:"warmup_secs"`
	FreezeSecs                     *int32 `yaml:"freeze_secs"`
	BuySecsAfterFreeze             *int32 `yaml:"buy_secs_after_freeze"`
	RoundSecs                      *int32 `yaml:"round_secs"`
	RoundEndSecs                   *int32 `yaml:"round_end_secs"`
	MatchSummarySecs               *int32 `yaml:"match_summary_secs"`
	GameCommencingSecs             *int32 `yaml:"game_commencing_secs"`
	WarmupRespawnAfterMs           *int32 `yaml:"warmup_respawn_after_ms"`
	AllowSpawnForSecsAfterStarting *int32 `yaml:"allow_spawn_for_secs_after_starting"`
	SecsUntilDetonationTheme       *int32 `yaml:"secs_until_detonation_theme"`

	NumRounds         *uint32  `yaml:"num_rounds"`
	MaxPlayersPerTeam *uint32  `yaml:"max_players_per_team"`
	BotQuota          *uint32  `yaml:"bot_quota"`
	BotNames          []string `yaml:"bot_names"`

	AllowGameCommencing          *bool `yaml:"allow_game_commencing"`
	EnableItemShop               *bool `yaml:"enable_item_shop"`
	WarmupEnableItemShop         *bool `yaml:"warmup_enable_item_shop"`
	DeleteLyingItemsOnRoundStart *bool `yaml:"delete_lying_items_on_round_start"`
	DeleteLyingItemsOnWarmup     *bool `yaml:"delete_lying_items_on_warmup"`
	ForbidSpectatorUnlessAlive   *bool `yaml:"forbid_spectator_unless_alive"`

	Bomb            string `yaml:"bomb"`
	WarmupTheme     string `yaml:"warmup_theme"`
	DetonationTheme string `yaml:"detonation_theme"`

	Economy  map[string]int32                `yaml:"economy"`
	Factions map[string]factionEquipmentYAML `yaml:"factions"`
}

type factionEquipmentYAML struct {
	Initial []string `yaml:"initial"`
	Warmup  []string `yaml:"warmup"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// LoadRules loads rules.yaml over mode.DefaultRules, resolving flavour names
// against the table.
func LoadRules(path string, t *FlavourTable) (mode.Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return mode.Rules{}, fmt.Errorf("read rules: %w", err)
	}
	r, err := ParseRules(raw, t)
	if err != nil {
		return mode.Rules{}, fmt.Errorf("rules %s: %w", path, err)
	}
	return r, nil
}

func ParseRules(raw []byte, t *FlavourTable) (mode.Rules, error) {
	var f rulesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return mode.Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	r := mode.DefaultRules()

	set(&r.DeltaMs, f.DeltaMs)
	set(&r.WarmupSecs, f.WarmupSecs)
	set(&r.FreezeSecs, f.FreezeSecs)
	set(&r.BuySecsAfterFreeze, f.BuySecsAfterFreeze)
	set(&r.RoundSecs, f.RoundSecs)
	set(&r.RoundEndSecs, f.RoundEndSecs)
	set(&r.MatchSummarySecs, f.MatchSummarySecs)
	set(&r.GameCommencingSecs, f.GameCommencingSecs)
	set(&r.WarmupRespawnAfterMs, f.WarmupRespawnAfterMs)
	set(&r.AllowSpawnForSecsAfterStarting, f.AllowSpawnForSecsAfterStarting)
	set(&r.SecsUntilDetonationTheme, f.SecsUntilDetonationTheme)
	set(&r.NumRounds, f.NumRounds)
	set(&r.MaxPlayersPerTeam, f.MaxPlayersPerTeam)
	set(&r.BotQuota, f.BotQuota)
	set(&r.AllowGameCommencing, f.AllowGameCommencing)
	set(&r.EnableItemShop, f.EnableItemShop)
	set(&r.WarmupEnableItemShop, f.WarmupEnableItemShop)
	set(&r.DeleteLyingItemsOnRoundStart, f.DeleteLyingItemsOnRoundStart)
	set(&r.DeleteLyingItemsOnWarmup, f.DeleteLyingItemsOnWarmup)
	set(&r.ForbidSpectatorUnlessAlive, f.ForbidSpectatorUnlessAlive)
	if f.BotNames != nil {
		r.BotNames = f.BotNames
	}

	if r.DeltaMs <= 0 {
		return mode.Rules{}, fmt.Errorf("%w: delta_ms must be positive", ErrInvalidTable)
	}
	if r.NumRounds == 0 {
		return mode.Rules{}, fmt.Errorf("%w: num_rounds must be positive", ErrInvalidTable)
	}

	var err error
	if r.Bomb, err = t.resolveOne(f.Bomb); err != nil {
		return mode.Rules{}, fmt.Errorf("bomb: %w", err)
	}
	if r.WarmupTheme, err = t.resolveOne(f.WarmupTheme); err != nil {
		return mode.Rules{}, fmt.Errorf("warmup theme: %w", err)
	}
	if r.DetonationTheme, err = t.resolveOne(f.DetonationTheme); err != nil {
		return mode.Rules{}, fmt.Errorf("detonation theme: %w", err)
	}

	if err := applyEconomy(&r.Economy, f.Economy); err != nil {
		return mode.Rules{}, err
	}

	for name, eq := range f.Factions {
		fac, err := parseFaction(name)
		if err != nil || fac >= component.FactionDefault {
			return mode.Rules{}, fmt.Errorf("%w: factions: bad faction %q", ErrInvalidTable, name)
		}
		if r.Factions[fac].InitialEquipment, err = t.resolve(eq.Initial); err != nil {
			return mode.Rules{}, fmt.Errorf("faction %s: %w", name, err)
		}
		if r.Factions[fac].WarmupInitialEquipment, err = t.resolve(eq.Warmup); err != nil {
			return mode.Rules{}, fmt.Errorf("faction %s warmup: %w", name, err)
		}
	}
	return r, nil
}

func applyEconomy(e *mode.Economy, m map[string]int32) error {
	fields := map[string]*int32{
		"initial_money":             &e.InitialMoney,
		"warmup_initial_money":      &e.WarmupInitialMoney,
		"maximum_money":             &e.MaximumMoney,
		"team_kill_penalty":         &e.TeamKillPenalty,
		"losing_faction_award":      &e.LosingFactionAward,
		"winning_faction_award":     &e.WinningFactionAward,
		"consecutive_loss_bonus":    &e.ConsecutiveLossBonus,
		"bomb_planting_award":       &e.BombPlantingAward,
		"bomb_explosion_award":      &e.BombExplosionAward,
		"bomb_defusal_award":        &e.BombDefusalAward,
		"lost_but_planted_bonus":    &e.LostButPlantedBonus,
		"defusing_team_bonus":       &e.DefusingTeamBonus,
		"minimal_damage_for_assist": &e.MinimalDamageForAssist,
	}
	for k, v := range m {
		if k == "max_consecutive_loss_bonus" {
			if v < 0 {
				return fmt.Errorf("%w: economy.%s is negative", ErrInvalidTable, k)
			}
			e.MaxConsecutiveLossBonus = uint32(v)
			continue
		}
		p, ok := fields[k]
		if !ok {
			return fmt.Errorf("%w: unknown economy key %q", ErrInvalidTable, k)
		}
		*p = v
	}
	if e.MaximumMoney < e.InitialMoney {
		return fmt.Errorf("%w: maximum_money below initial_money", ErrInvalidTable)
	}
	return nil
}
