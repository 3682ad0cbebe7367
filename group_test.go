package pulsive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickSyncGroup_LoadModelGivesEachCoreAPrivateCopy(t *testing.T) {
	group := NewTickSyncGroup(0, 0, 3, 1)
	snapshot := NewModel()
	snapshot.EntitiesMut().Create("nation")

	group.LoadModel(snapshot)

	for _, c := range group.cores {
		require.NotSame(t, snapshot, c.Model)
		assert.Equal(t, 1, c.Model.Entities().Len())
	}
}

func TestTickSyncGroup_ExecuteTickRunsEveryCoreAndReturnsInOrder(t *testing.T) {
	group := NewTickSyncGroup(0, 10, 4, 1)
	snapshot := NewModel()
	group.LoadModel(snapshot)

	group.OnTick(TickHandler{Id: "spawn", Effects: []Effect{SpawnEntity("nation")}})

	results := group.ExecuteTick()
	require.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, 1, r.Writes.Len())
	}

	ids := group.CoreIds()
	require.Len(t, ids, 4)
	for i, id := range ids {
		assert.Equal(t, CoreId(10+i), id)
	}
}

func TestTickSyncGroup_SingleCoreRunsInline(t *testing.T) {
	group := NewTickSyncGroup(0, 0, 1, 1)
	snapshot := NewModel()
	group.LoadModel(snapshot)

	results := group.ExecuteTick()
	require.Len(t, results, 1)
}

// TestTickSyncGroup_PartitionGatesPerKindTickHandlerDispatch wires
// PartitionStrategy into real ExecuteTick dispatch: each core must only
// touch the shard of entities PartitionById assigns it, so every entity
// is written exactly once across the whole group, never twice.
func TestTickSyncGroup_PartitionGatesPerKindTickHandlerDispatch(t *testing.T) {
	group := NewTickSyncGroup(0, 0, 2, 1)
	snapshot := NewModel()
	for i := 0; i < 4; i++ {
		snapshot.EntitiesMut().Create("nation")
	}
	group.LoadModel(snapshot)
	group.WithPartition(PartitionById())
	group.OnTick(TickHandler{
		Id: "touch", HasTarget: true, TargetKind: "nation",
		Effects: []Effect{SetProperty("touched", LitBool(true))},
	})

	results := group.ExecuteTick()
	require.Len(t, results, 2)

	total := 0
	strategy := PartitionById()
	for coreIdx, r := range results {
		total += r.Writes.Len()
		for _, w := range r.Writes.Writes() {
			assert.Equal(t, coreIdx, strategy.AssignCore(&Entity{Id: w.EntityId}, 2),
				"core %d must only write entities its partition assigns it", coreIdx)
		}
	}
	assert.Equal(t, 4, total, "partitioned dispatch must still touch every entity exactly once")
}

// TestTickSyncGroup_NoPartitionMeansEveryCoreSeesEveryEntity documents
// the default (no WithPartition call): every core dispatches against
// every entity of the target kind, so a 2-core group touches each of 4
// entities twice.
func TestTickSyncGroup_NoPartitionMeansEveryCoreSeesEveryEntity(t *testing.T) {
	group := NewTickSyncGroup(0, 0, 2, 1)
	snapshot := NewModel()
	for i := 0; i < 4; i++ {
		snapshot.EntitiesMut().Create("nation")
	}
	group.LoadModel(snapshot)
	group.OnTick(TickHandler{
		Id: "touch", HasTarget: true, TargetKind: "nation",
		Effects: []Effect{SetProperty("touched", LitBool(true))},
	})

	results := group.ExecuteTick()
	total := 0
	for _, r := range results {
		total += r.Writes.Len()
	}
	assert.Equal(t, 8, total, "without a partition every core dispatches against every entity")
}

func TestTickSyncGroup_SendReachesEveryCoresRuntime(t *testing.T) {
	group := NewTickSyncGroup(0, 0, 2, 1)
	snapshot := NewModel()
	group.LoadModel(snapshot)

	group.OnEvent(EventHandler{EventId: "ping", Effects: []Effect{SetGlobal("pinged", LitInt(1))}})
	group.Send(EventMsg("ping", GlobalRef(), 0))

	results := group.ExecuteTick()
	for _, r := range results {
		require.Equal(t, 1, r.Writes.Len())
		assert.Equal(t, WriteSetGlobal, r.Writes.Writes()[0].Kind)
	}
}
