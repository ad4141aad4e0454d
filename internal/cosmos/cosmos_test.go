package cosmos

import (
	"math"
	"testing"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	flSoldier component.FlavourID = iota + 1
	flRebel
	flKnife
	flBomb
	flSpawn
)

func testCommon() Common {
	return Common{
		Flavours: []Flavour{
			{},
			{ID: flSoldier, Name: "soldier", Tag: component.KindCharacter, Faction: component.FactionMetropolis, MaxHealth: 100, Speed: 4},
			{ID: flRebel, Name: "rebel", Tag: component.KindCharacter, Faction: component.FactionResistance, MaxHealth: 80, MaxConsciousness: 60},
			{ID: flKnife, Name: "knife", Tag: component.KindItem, Weapon: true, Damage: 20, Price: 300},
			{ID: flBomb, Name: "bomb", Tag: component.KindItem, Bomb: true, FuseDelayMs: 1000},
			{ID: flSpawn, Name: "spawn", Tag: component.KindMarker, Marker: component.MarkerSpawn, Faction: component.FactionMetropolis, Radius: 10},
		},
		Bounds: Rect{Max: component.Vec{X: 4096, Y: 4096}},
	}
}

func newTestCosmos(t *testing.T) (*Factory, *Cosmos) {
	t.Helper()
	common := testCommon()
	require.NoError(t, common.Validate())
	f := &Factory{}
	return f, f.NewCosmos(common, 42)
}

func spawnAt(t *testing.T, c *Cosmos, fl component.FlavourID, pos component.Vec) Handle {
	t.Helper()
	h, err := c.CreateEntity(fl, func(h Handle) {
		Transform.Edit(h, func(tr *component.Transform) { tr.Pos = pos })
	}, nil)
	require.NoError(t, err)
	return h
}

func TestCreateThenDeleteRestoresPools(t *testing.T) {
	_, c := newTestCosmos(t)
	rows := c.solvable.registry().Len()

	h, err := c.CreateEntity(flSoldier, nil, nil)
	require.NoError(t, err)
	assert.True(t, h.Alive())
	assert.Equal(t, 1, c.Count())
	assert.Greater(t, c.solvable.registry().Len(), rows)

	assert.True(t, c.DeleteEntity(h.ID()))
	assert.False(t, h.Alive())
	assert.Equal(t, 0, c.Count())
	assert.Equal(t, rows, c.solvable.registry().Len())
	assert.False(t, c.DeleteEntity(h.ID()), "second delete is a no-op")
}

func TestStaleIDNeverResolvesToNewOccupant(t *testing.T) {
	_, c := newTestCosmos(t)
	old, err := c.CreateEntity(flSoldier, nil, nil)
	require.NoError(t, err)
	c.DeleteEntity(old.ID())

	fresh, err := c.CreateEntity(flSoldier, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, old.ID().Index(), fresh.ID().Index(), "slot is reused")
	assert.False(t, old.Alive())
	assert.False(t, Sentience.Has(old))
	_, ok := Sentience.Read(old)
	assert.False(t, ok)
	assert.True(t, Sentience.Has(fresh))
}

func TestCreateEntityDefaultsFollowFlavour(t *testing.T) {
	_, c := newTestCosmos(t)

	rebel, err := c.CreateEntity(flRebel, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, component.KindCharacter, rebel.Tag())
	sent := Sentience.Get(rebel)
	assert.Equal(t, int32(80), sent.Meters[component.MeterHealth].Value)
	assert.Equal(t, int32(60), sent.Meters[component.MeterConsciousness].Maximum)
	assert.Equal(t, "rebel", Name.Get(rebel).String())

	bomb, err := c.CreateEntity(flBomb, nil, nil)
	require.NoError(t, err)
	assert.True(t, HandFuse.Has(bomb))
	assert.True(t, Sender.Has(bomb))
	assert.Equal(t, int32(1), Item.Get(bomb).Charges)
	assert.False(t, Sentience.Has(bomb))

	_, err = c.CreateEntity(99, nil, nil)
	assert.ErrorIs(t, err, ErrUnknownFlavour)
}

func TestCreateEntityInfersOnceAfterInit(t *testing.T) {
	_, c := newTestCosmos(t)
	var seenInInit []ecs.EntityID
	var seenInPost []ecs.EntityID
	pos := component.Vec{X: 100, Y: 100}

	_, err := c.CreateEntity(flSoldier, func(h Handle) {
		Transform.Edit(h, func(tr *component.Transform) { tr.Pos = pos })
		seenInInit = c.QueryRadius(pos, 5)
	}, func(h Handle) {
		seenInPost = c.QueryRadius(pos, 5)
	})
	require.NoError(t, err)
	assert.Empty(t, seenInInit)
	assert.Len(t, seenInPost, 1)
}

func TestQueryRadiusIsOrderedAndSkipsContained(t *testing.T) {
	_, c := newTestCosmos(t)
	far := spawnAt(t, c, flSoldier, component.Vec{X: 3000, Y: 3000})
	b := spawnAt(t, c, flSoldier, component.Vec{X: 520, Y: 500})
	a := spawnAt(t, c, flSoldier, component.Vec{X: 500, Y: 510})
	knife := spawnAt(t, c, flKnife, component.Vec{X: 505, Y: 505})

	got := c.QueryRadius(component.Vec{X: 500, Y: 500}, 40)
	assert.Equal(t, []ecs.EntityID{b.ID(), a.ID(), knife.ID()}, got)
	assert.NotContains(t, got, far.ID())

	require.True(t, PickUp(knife, a.ID(), component.SlotPrimaryHand))
	got = c.QueryRadius(component.Vec{X: 500, Y: 500}, 40)
	assert.Equal(t, []ecs.EntityID{b.ID(), a.ID()}, got)
	assert.Equal(t, []ecs.EntityID{knife.ID()}, HeldItems(a))
	assert.Equal(t, knife.ID(), ItemInSlot(a, component.SlotPrimaryHand))
	assert.Equal(t, component.SlotSecondaryHand, FreeSlot(a))
	pos, ok := Position(knife)
	require.True(t, ok)
	assert.Equal(t, component.Vec{X: 500, Y: 510}, pos)
}

func TestQueryRadiusHandlesExtremeInput(t *testing.T) {
	_, c := newTestCosmos(t)
	a := spawnAt(t, c, flSoldier, component.Vec{X: 0, Y: 0})
	b := spawnAt(t, c, flSoldier, component.Vec{X: 4095, Y: 4095})

	// 10+MaxInt32 would wrap the box's far edge below its near edge
	got := c.QueryRadius(component.Vec{X: 10, Y: 10}, math.MaxInt32)
	assert.Equal(t, []ecs.EntityID{a.ID(), b.ID()}, got)

	got = c.QueryRadius(component.Vec{X: math.MaxInt32, Y: 0}, math.MaxInt32-100)
	assert.Equal(t, []ecs.EntityID{b.ID()}, got)

	assert.Empty(t, c.QueryRadius(component.Vec{X: 0, Y: 0}, -5))
}

func TestMovingBodyFollowsGrid(t *testing.T) {
	_, c := newTestCosmos(t)
	h := spawnAt(t, c, flSoldier, component.Vec{X: 10, Y: 10})
	Teleport(h, component.Vec{X: 2000, Y: 2000})

	assert.Empty(t, c.QueryRadius(component.Vec{X: 10, Y: 10}, 50))
	assert.Equal(t, []ecs.EntityID{h.ID()}, c.QueryRadius(component.Vec{X: 2000, Y: 2000}, 1))
}

func TestDeleteContainerDropsItems(t *testing.T) {
	_, c := newTestCosmos(t)
	owner := spawnAt(t, c, flSoldier, component.Vec{X: 300, Y: 40})
	bomb := spawnAt(t, c, flBomb, component.Vec{})
	require.True(t, PickUp(bomb, owner.ID(), component.SlotOverBack))

	c.DeleteEntity(owner.ID())

	require.True(t, bomb.Alive())
	it := Item.Get(bomb)
	assert.True(t, it.Container.IsZero())
	assert.Equal(t, owner.ID(), it.DroppedBy)
	assert.Equal(t, component.Vec{X: 300, Y: 40}, Transform.Get(bomb).Pos)
	assert.Equal(t, []ecs.EntityID{bomb.ID()}, c.QueryRadius(component.Vec{X: 300, Y: 40}, 1))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f, c := newTestCosmos(t)
	for i := int32(0); i < 5; i++ {
		spawnAt(t, c, flSoldier, component.Vec{X: i * 50, Y: 7})
	}
	c.DeleteEntity(c.FirstOfFlavour(flSoldier))
	knife := spawnAt(t, c, flKnife, component.Vec{X: 1, Y: 1})
	c.AdvanceClock()

	blob := c.Save()
	other := f.NewCosmos(testCommon(), 0)
	require.NoError(t, other.Load(blob))

	assert.Equal(t, c.CalculateSigniHash(), other.CalculateSigniHash())
	assert.Equal(t, c.FullHash(), other.FullHash())
	assert.Equal(t, c.Clock(), other.Clock())
	assert.True(t, other.Alive(knife.ID()))
	assert.Equal(t, c.QueryRadius(component.Vec{}, 1000), other.QueryRadius(component.Vec{}, 1000))

	// Both copies allocate the same next id.
	a, err := c.CreateEntity(flRebel, nil, nil)
	require.NoError(t, err)
	b, err := other.CreateEntity(flRebel, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID(), b.ID())
}

func TestLoadCorruptLeavesCosmosUntouched(t *testing.T) {
	f, c := newTestCosmos(t)
	spawnAt(t, c, flSoldier, component.Vec{X: 1, Y: 2})
	before := c.FullHash()

	donor := f.NewCosmos(testCommon(), 1)
	spawnAt(t, donor, flRebel, component.Vec{})
	blob := donor.Save()

	for _, bad := range [][]byte{nil, {1, 2, 3}, blob[:len(blob)-3]} {
		err := c.Load(bad)
		assert.ErrorIs(t, err, ErrCorruptSnapshot)
	}
	assert.Equal(t, before, c.FullHash())
	assert.Equal(t, 1, c.Count())
}

func TestCloneIsDeepWithFreshIdentity(t *testing.T) {
	f, c := newTestCosmos(t)
	h := spawnAt(t, c, flSoldier, component.Vec{X: 5, Y: 5})

	cp := f.Clone(c)
	assert.NotEqual(t, c.ID(), cp.ID())
	assert.Equal(t, c.CalculateSigniHash(), cp.CalculateSigniHash())

	Sentience.Get(cp.Handle(h.ID())).Meters[component.MeterHealth].Value = 1
	assert.Equal(t, int32(100), Sentience.Get(h).Meters[component.MeterHealth].Value)
	assert.NotEqual(t, c.CalculateSigniHash(), cp.CalculateSigniHash())

	id := cp.ID()
	f.RequestResample(cp)
	assert.NotEqual(t, id, cp.ID())
}

func TestSignihashTracksClockAndMeters(t *testing.T) {
	_, c := newTestCosmos(t)
	h := spawnAt(t, c, flSoldier, component.Vec{})
	base := c.CalculateSigniHash()

	spawnAt(t, c, flSpawn, component.Vec{X: 9})
	withMarker := c.CalculateSigniHash()
	assert.NotEqual(t, base, withMarker, "entity count is sampled")

	Sentience.Get(h).Meters[component.MeterHealth].Value--
	assert.NotEqual(t, withMarker, c.CalculateSigniHash())

	prev := c.CalculateSigniHash()
	c.AdvanceClock()
	assert.NotEqual(t, prev, c.CalculateSigniHash())
}

func TestSetFixedDeltaOnlyAtStepZero(t *testing.T) {
	_, c := newTestCosmos(t)
	assert.True(t, c.SetFixedDelta(10))
	assert.Equal(t, int32(10), c.Clock().DtMs)
	c.AdvanceClock()
	assert.False(t, c.SetFixedDelta(20))
	assert.Equal(t, int64(10), c.Clock().Now())
}

func TestSetReplacesWorldAndReinfers(t *testing.T) {
	_, c := newTestCosmos(t)
	initial := c.Solvable().Clone()
	spawnAt(t, c, flSoldier, component.Vec{X: 40, Y: 40})
	require.Len(t, c.QueryRadius(component.Vec{X: 40, Y: 40}, 1), 1)

	c.Set(&initial)
	assert.Equal(t, 0, c.Count())
	assert.Empty(t, c.QueryRadius(component.Vec{X: 40, Y: 40}, 1))
}

func TestRNGStreams(t *testing.T) {
	f, c := newTestCosmos(t)
	h := spawnAt(t, c, flKnife, component.Vec{})
	cp := f.Clone(c)

	assert.Equal(t, c.RNGFor(h.ID()).Uint64(), cp.RNGFor(h.ID()).Uint64())
	nt := c.NontemporalRNGFor(h.ID()).Uint64()
	first := c.RNGFor(h.ID()).Uint64()

	c.AdvanceClock()
	assert.NotEqual(t, first, c.RNGFor(h.ID()).Uint64())
	assert.Equal(t, nt, c.NontemporalRNGFor(h.ID()).Uint64())

	Item.Edit(h, func(it *component.Item) { it.Charges = 3 })
	assert.NotEqual(t, nt, c.NontemporalRNGFor(h.ID()).Uint64())
}

func TestMarkers(t *testing.T) {
	_, c := newTestCosmos(t)
	m := spawnAt(t, c, flSpawn, component.Vec{X: 100, Y: 100})

	assert.Equal(t, []ecs.EntityID{m.ID()}, c.Markers(component.MarkerSpawn, component.FactionMetropolis))
	assert.Empty(t, c.Markers(component.MarkerSpawn, component.FactionAtlantis))
	assert.Len(t, c.Markers(component.MarkerSpawn, component.FactionDefault), 1)
	assert.True(t, c.InMarker(component.Vec{X: 105, Y: 100}, component.MarkerSpawn, component.FactionMetropolis))
	assert.False(t, c.InMarker(component.Vec{X: 150, Y: 100}, component.MarkerSpawn, component.FactionMetropolis))
}
