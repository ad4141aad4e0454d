package mode

import "github.com/bombarena/server/internal/component"

// Economy holds every money amount the mode awards or charges.
type Economy struct {
	InitialMoney       int32
	WarmupInitialMoney int32
	MaximumMoney       int32

	TeamKillPenalty         int32
	LosingFactionAward      int32
	WinningFactionAward     int32
	ConsecutiveLossBonus    int32
	MaxConsecutiveLossBonus uint32

	BombPlantingAward      int32
	BombExplosionAward     int32
	BombDefusalAward       int32
	LostButPlantedBonus    int32
	DefusingTeamBonus      int32
	MinimalDamageForAssist int32
}

func DefaultEconomy() Economy {
	return Economy{
		InitialMoney:            800,
		WarmupInitialMoney:      16000,
		MaximumMoney:            16000,
		TeamKillPenalty:         500,
		LosingFactionAward:      1400,
		WinningFactionAward:     3250,
		ConsecutiveLossBonus:    500,
		MaxConsecutiveLossBonus: 4,
		BombPlantingAward:       300,
		BombExplosionAward:      300,
		BombDefusalAward:        300,
		LostButPlantedBonus:     800,
		DefusingTeamBonus:       250,
		MinimalDamageForAssist:  41,
	}
}

// FactionRules lists what a faction spawns with.
type FactionRules struct {
	InitialEquipment       []component.FlavourID
	WarmupInitialEquipment []component.FlavourID
}

// Rules parameterize a match. They are agreed on before a match and are not
// part of the hashed state.
type Rules struct {
	DeltaMs int32

	WarmupSecs                     int32
	FreezeSecs                     int32
	BuySecsAfterFreeze             int32
	RoundSecs                      int32
	RoundEndSecs                   int32
	MatchSummarySecs               int32
	GameCommencingSecs             int32
	WarmupRespawnAfterMs           int32
	AllowSpawnForSecsAfterStarting int32
	SecsUntilDetonationTheme       int32

	NumRounds         uint32
	MaxPlayersPerTeam uint32
	BotQuota          uint32
	BotNames          []string

	AllowGameCommencing          bool
	EnableItemShop               bool
	WarmupEnableItemShop         bool
	DeleteLyingItemsOnRoundStart bool
	DeleteLyingItemsOnWarmup     bool
	ForbidSpectatorUnlessAlive   bool

	Bomb            component.FlavourID
	WarmupTheme     component.FlavourID
	DetonationTheme component.FlavourID

	Economy  Economy
	Factions [component.FactionCount]FactionRules
}

func DefaultRules() Rules {
	return Rules{
		DeltaMs:                        16,
		WarmupSecs:                     45,
		FreezeSecs:                     10,
		BuySecsAfterFreeze:             30,
		RoundSecs:                      120,
		RoundEndSecs:                   5,
		MatchSummarySecs:               15,
		GameCommencingSecs:             3,
		WarmupRespawnAfterMs:           2000,
		AllowSpawnForSecsAfterStarting: 10,
		SecsUntilDetonationTheme:       10,
		NumRounds:                      30,
		MaxPlayersPerTeam:              32,
		AllowGameCommencing:            true,
		EnableItemShop:                 true,
		WarmupEnableItemShop:           true,
		DeleteLyingItemsOnRoundStart:   true,
		ForbidSpectatorUnlessAlive:     true,
		Economy:                        DefaultEconomy(),
	}
}

func secs(s int32) int64 { return int64(s) * 1000 }
