package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weng-chenghui/pulsive"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveLoadDeleteEntity(t *testing.T) {
	s := openTestStore(t)
	ent := pulsive.NewEntity(1, "nation")
	ent.Set("gold", pulsive.FloatValue(100))
	ent.Flags.Add("at_war")

	require.NoError(t, s.SaveEntity(ent))

	loaded, err := s.LoadEntity(1)
	require.NoError(t, err)
	assert.Equal(t, pulsive.DefId("nation"), loaded.Kind)
	gold, _ := loaded.GetNumber("gold")
	assert.Equal(t, 100.0, gold)
	assert.True(t, loaded.Flags.Has("at_war"))

	require.NoError(t, s.DeleteEntity(1))
	_, err = s.LoadEntity(1)
	assert.ErrorIs(t, err, pulsive.ErrEntityNotFound)
}

func TestStore_LoadAllEntitiesAndByKind(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveEntity(pulsive.NewEntity(1, "nation")))
	require.NoError(t, s.SaveEntity(pulsive.NewEntity(2, "nation")))
	require.NoError(t, s.SaveEntity(pulsive.NewEntity(3, "resource_node")))

	all, err := s.LoadAllEntities()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	nations, err := s.EntitiesByKind("nation")
	require.NoError(t, err)
	assert.Len(t, nations, 2)

	count, err := s.CountEntitiesByKind("resource_node")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_EntitiesWithFlag(t *testing.T) {
	s := openTestStore(t)
	atWar := pulsive.NewEntity(1, "nation")
	atWar.Flags.Add("at_war")
	peaceful := pulsive.NewEntity(2, "nation")
	require.NoError(t, s.SaveEntity(atWar))
	require.NoError(t, s.SaveEntity(peaceful))

	found, err := s.EntitiesWithFlag("at_war")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, pulsive.EntityId(1), found[0].Id)
}

func TestStore_GlobalsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	m := pulsive.NewValueMap()
	m.Set("season", pulsive.StringValue("winter"))
	m.Set("year", pulsive.IntValue(42))

	require.NoError(t, s.SaveGlobals(m))
	loaded, err := s.LoadGlobals()
	require.NoError(t, err)
	season, _ := loaded.Get("season")
	s1, _ := season.AsString()
	assert.Equal(t, "winter", s1)
	assert.Equal(t, []string{"season", "year"}, loaded.Keys())
}

func TestStore_ClockAndRngRoundTrip(t *testing.T) {
	s := openTestStore(t)
	clock := pulsive.NewClockWithStartDate(1000, 6, 15)
	clock.Tick = 77
	clock.SetSpeed(pulsive.SpeedFast)
	require.NoError(t, s.SaveClock(clock))

	loaded, err := s.LoadClock()
	require.NoError(t, err)
	assert.Equal(t, uint64(77), loaded.Tick)
	assert.Equal(t, pulsive.SpeedFast, loaded.Speed)
	assert.Equal(t, 1000, loaded.StartDate.Year)

	rng := pulsive.NewRng(999)
	rng.NextU64()
	require.NoError(t, s.SaveRng(rng))
	loadedRng, err := s.LoadRng()
	require.NoError(t, err)
	assert.Equal(t, rng.State(), loadedRng.State())
}

func TestStore_SaveLoadModelRoundTrip(t *testing.T) {
	s := openTestStore(t)
	model := pulsive.NewModelWithSeed(42)
	e1 := model.EntitiesMut().Create("nation")
	e1.Set("gold", pulsive.FloatValue(50))
	model.EntitiesMut().Create("resource_node")
	model.SetGlobal("season", pulsive.StringValue("spring"))
	model.AdvanceTick()

	require.NoError(t, s.SaveModel(model))

	loaded, err := s.LoadModel()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Entities().Len())
	assert.Equal(t, uint64(1), loaded.CurrentTick())
	season := loaded.GetGlobal("season")
	str, _ := season.AsString()
	assert.Equal(t, "spring", str)

	nations := loaded.Entities().ByKind("nation")
	require.Len(t, nations, 1)
	gold, _ := nations[0].GetNumber("gold")
	assert.Equal(t, 50.0, gold)
}
