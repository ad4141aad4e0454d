package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/cosmos"
)

const flavoursYAML = `
flavours:
  - name: soldier
    kind: character
    faction: metropolis
    max_health: 100
    speed: 4
  - name: rebel
    kind: character
    faction: resistance
    max_health: 90
  - name: knife
    kind: item
    weapon: true
    damage: 30
    price: 200
    knockout_award: 1500
  - name: bomb
    kind: item
    faction: resistance
    bomb: true
    fuse_delay_ms: 40000
  - name: rebel_spawn
    kind: marker
    marker: spawn
    faction: resistance
  - name: site_a
    kind: marker
    marker: bombsite
    faction: resistance
    radius: 150
spells:
  - id: 2
    name: haste
    price: 700
`

func mustTable(t *testing.T) *FlavourTable {
	t.Helper()
	tbl, err := ParseFlavourTable([]byte(flavoursYAML))
	require.NoError(t, err)
	return tbl
}

func TestFlavourIDsFollowFileOrder(t *testing.T) {
	tbl := mustTable(t)
	assert.Equal(t, 6, tbl.Count())

	id, ok := tbl.Lookup("bomb")
	require.True(t, ok)
	assert.Equal(t, component.FlavourID(4), id)

	common := tbl.Common(cosmos.Rect{Max: component.Vec{X: 100, Y: 100}})
	def, ok := common.Flavour(id)
	require.True(t, ok)
	assert.True(t, def.Bomb)
	assert.Equal(t, component.FactionResistance, def.Faction)

	site, _ := common.Flavour(6)
	assert.Equal(t, component.MarkerBombsite, site.Marker)
	assert.Equal(t, component.KindMarker, site.Tag)

	knife, _ := common.Flavour(3)
	assert.Equal(t, component.FactionSpectator, knife.Faction, "no faction means anyone")

	spell, ok := common.Spell(2)
	require.True(t, ok)
	assert.Equal(t, int32(700), spell.Price)
}

func TestFlavourTableRejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"unknown kind":    "flavours:\n  - {name: x, kind: vehicle}\n",
		"duplicate":       "flavours:\n  - {name: x, kind: item}\n  - {name: x, kind: item}\n",
		"bad faction":     "flavours:\n  - {name: x, kind: item, faction: pirates}\n",
		"bad marker":      "flavours:\n  - {name: x, kind: marker, marker: exit}\n",
		"fuseless bomb":   "flavours:\n  - {name: x, kind: item, bomb: true}\n",
		"healthless body": "flavours:\n  - {name: x, kind: character}\n",
		"spell id range":  "spells:\n  - {id: 40, name: s}\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFlavourTable([]byte(raw))
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestRulesOverlayDefaults(t *testing.T) {
	tbl := mustTable(t)
	r, err := ParseRules([]byte(`
warmup_secs: 0
num_rounds: 16
bot_quota: 2
bot_names: [ann, ben]
enable_item_shop: false
bomb: bomb
economy:
  initial_money: 1000
  max_consecutive_loss_bonus: 2
factions:
  metropolis:
    initial: [knife]
`), tbl)
	require.NoError(t, err)

	assert.Equal(t, int32(0), r.WarmupSecs)
	assert.Equal(t, int32(10), r.FreezeSecs, "untouched keys keep defaults")
	assert.Equal(t, uint32(16), r.NumRounds)
	assert.False(t, r.EnableItemShop)
	assert.True(t, r.WarmupEnableItemShop)
	assert.Equal(t, component.FlavourID(4), r.Bomb)
	assert.Equal(t, int32(1000), r.Economy.InitialMoney)
	assert.Equal(t, uint32(2), r.Economy.MaxConsecutiveLossBonus)
	assert.Equal(t, int32(16000), r.Economy.MaximumMoney)
	assert.Equal(t, []component.FlavourID{3}, r.Factions[component.FactionMetropolis].InitialEquipment)
	assert.Equal(t, []string{"ann", "ben"}, r.BotNames)
}

func TestRulesRejectUnknownNames(t *testing.T) {
	tbl := mustTable(t)
	for name, raw := range map[string]string{
		"bomb":      "bomb: grenade\n",
		"equipment": "factions:\n  metropolis:\n    initial: [rifle]\n",
		"faction":   "factions:\n  pirates:\n    initial: [knife]\n",
		"economy":   "economy:\n  interest: 5\n",
		"rounds":    "num_rounds: 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(raw), tbl)
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestScenarioBuildsWorld(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "level.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: dust
width: 1000
height: 800
placements:
  - {flavour: rebel_spawn, x: 100, y: 100}
  - {flavour: site_a, x: 700, y: 600}
  - {flavour: knife, x: 5000, y: 50}
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "dust", s.Name)

	c, err := s.Build(&cosmos.Factory{}, mustTable(t), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Count())
	assert.Len(t, c.Markers(component.MarkerBombsite, component.FactionResistance), 1)
	assert.True(t, c.InMarker(component.Vec{X: 650, Y: 600}, component.MarkerBombsite, component.FactionResistance))

	knife := c.FirstOfFlavour(3)
	pos, ok := cosmos.Position(c.ConstHandle(knife))
	require.True(t, ok)
	assert.Equal(t, component.Vec{X: 999, Y: 50}, pos, "placements are clamped to bounds")
}

func TestScenarioUnknownFlavour(t *testing.T) {
	s, err := ParseScenario([]byte("width: 10\nheight: 10\nplacements:\n  - {flavour: tank}\n"))
	require.NoError(t, err)
	_, err = s.Build(&cosmos.Factory{}, mustTable(t), 1)
	assert.ErrorIs(t, err, ErrInvalidTable)

	_, err = ParseScenario([]byte("width: 0\n"))
	assert.ErrorIs(t, err, ErrInvalidTable)
}
