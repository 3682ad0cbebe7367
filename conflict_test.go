package pulsive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDetectConflicts_S5_GlobalWriteWriteAcrossCores grounds scenario
// S5: two cores writing the same global in the same tick produce
// exactly one conflict naming both cores.
func TestDetectConflicts_S5_GlobalWriteWriteAcrossCores(t *testing.T) {
	core0 := NewWriteSet()
	core0.Push(PendingWrite{Kind: WriteSetGlobal, Key: "gold", Value: IntValue(1)})
	core1 := NewWriteSet()
	core1.Push(PendingWrite{Kind: WriteSetGlobal, Key: "gold", Value: IntValue(2)})

	report := DetectConflicts([]PerCoreWrites{
		{Core: 0, Writes: core0},
		{Core: 1, Writes: core1},
	}, nil)

	require.Equal(t, 1, report.Len())
	conflict := report.Conflicts[0]
	assert.Equal(t, TargetGlobalProperty, conflict.Target.kind)
	assert.Equal(t, []CoreId{0, 1}, conflict.Cores)
	assert.Len(t, conflict.Writes, 2)
}

func TestDetectConflicts_S5_SameCoreProducesNoConflict(t *testing.T) {
	core0 := NewWriteSet()
	core0.Push(PendingWrite{Kind: WriteSetGlobal, Key: "gold", Value: IntValue(1)})
	core0.Push(PendingWrite{Kind: WriteSetGlobal, Key: "gold", Value: IntValue(2)})

	report := DetectConflicts([]PerCoreWrites{{Core: 0, Writes: core0}}, nil)
	assert.False(t, report.HasConflicts())
}

func TestDetectConflicts_S5_ThreeCoresProduceOneConflictWithAllCores(t *testing.T) {
	sets := make([]PerCoreWrites, 3)
	for i := range sets {
		ws := NewWriteSet()
		ws.Push(PendingWrite{Kind: WriteSetGlobal, Key: "gold", Value: IntValue(int64(i))})
		sets[i] = PerCoreWrites{Core: CoreId(i), Writes: ws}
	}

	report := DetectConflicts(sets, nil)
	require.Equal(t, 1, report.Len())
	assert.Equal(t, []CoreId{0, 1, 2}, report.Conflicts[0].Cores)
	assert.Len(t, report.Conflicts[0].Writes, 3)
}

func TestDetectConflicts_DefaultFilterExcludesIndependentSpawns(t *testing.T) {
	core0 := NewWriteSet()
	core0.Push(PendingWrite{Kind: WriteSpawnEntity, EntityKind: "nation"})
	core1 := NewWriteSet()
	core1.Push(PendingWrite{Kind: WriteSpawnEntity, EntityKind: "nation"})

	report := DetectConflicts([]PerCoreWrites{
		{Core: 0, Writes: core0},
		{Core: 1, Writes: core1},
	}, nil)
	assert.False(t, report.HasConflicts())

	reportAll := DetectConflicts([]PerCoreWrites{
		{Core: 0, Writes: core0},
		{Core: 1, Writes: core1},
	}, func(WriteTarget) bool { return true })
	assert.True(t, reportAll.HasConflicts())
}

func TestDetectConflicts_DistinctEntityPropertiesDoNotConflict(t *testing.T) {
	core0 := NewWriteSet()
	core0.Push(PendingWrite{Kind: WriteSetProperty, EntityId: 1, Key: "gold", Value: IntValue(1)})
	core1 := NewWriteSet()
	core1.Push(PendingWrite{Kind: WriteSetProperty, EntityId: 2, Key: "gold", Value: IntValue(1)})

	report := DetectConflicts([]PerCoreWrites{
		{Core: 0, Writes: core0},
		{Core: 1, Writes: core1},
	}, nil)
	assert.False(t, report.HasConflicts())
}
