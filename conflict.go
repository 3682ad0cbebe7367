package pulsive

import (
	"fmt"
	"sort"
)

// CoreId identifies one parallel Core within a tick (§4.5, §5).
type CoreId uint32

func (id CoreId) String() string { return fmt.Sprintf("core:%d", uint32(id)) }

// WriteTargetKind discriminates the variants of WriteTarget.
type WriteTargetKind int

const (
	TargetEntityProperty WriteTargetKind = iota
	TargetEntityFlag
	TargetGlobalProperty
	TargetSpawnEntity
	TargetDestroyEntity
)

// WriteTarget is the conflict-detection key a PendingWrite maps to:
// two writes conflict only if they resolve to an equal WriteTarget
// from two distinct Cores (§4.5).
type WriteTarget struct {
	kind     WriteTargetKind
	entityId EntityId
	property string
	flag     DefId
	defKind  DefId
}

// TargetFromPendingWrite extracts the conflict-detection key a write
// touches.
func TargetFromPendingWrite(w PendingWrite) WriteTarget {
	switch w.Kind {
	case WriteSetProperty, WriteModifyProperty:
		return WriteTarget{kind: TargetEntityProperty, entityId: w.EntityId, property: w.Key}
	case WriteSetGlobal, WriteModifyGlobal:
		return WriteTarget{kind: TargetGlobalProperty, property: w.Key}
	case WriteAddFlag, WriteRemoveFlag:
		return WriteTarget{kind: TargetEntityFlag, entityId: w.EntityId, flag: w.Flag}
	case WriteSpawnEntity:
		return WriteTarget{kind: TargetSpawnEntity, defKind: w.EntityKind}
	case WriteDestroyEntity:
		return WriteTarget{kind: TargetDestroyEntity, entityId: w.EntityId}
	default:
		return WriteTarget{}
	}
}

// coreWrite pairs a PendingWrite with the Core that produced it.
type coreWrite struct {
	core  CoreId
	write PendingWrite
}

// Conflict is one WriteTarget two or more Cores wrote to in the same
// tick, with every contributing write kept for diagnostics/resolution.
type Conflict struct {
	Target WriteTarget
	Cores  []CoreId // sorted ascending, deduplicated
	Writes []coreWrite
}

// CoreCount reports how many distinct Cores contributed to this
// conflict.
func (c Conflict) CoreCount() int { return len(c.Cores) }

func (c Conflict) String() string {
	switch c.Target.kind {
	case TargetEntityProperty:
		return fmt.Sprintf("write-write conflict on entity %s property %q between %s and %s",
			c.Target.entityId, c.Target.property, c.Cores[0], c.Cores[1])
	case TargetEntityFlag:
		return fmt.Sprintf("write-write conflict on entity %s flag %q between %s and %s",
			c.Target.entityId, c.Target.flag, c.Cores[0], c.Cores[1])
	case TargetGlobalProperty:
		return fmt.Sprintf("write-write conflict on global %q between %s and %s",
			c.Target.property, c.Cores[0], c.Cores[1])
	case TargetSpawnEntity:
		return fmt.Sprintf("write-write conflict: entity kind %q spawned by both %s and %s",
			c.Target.defKind, c.Cores[0], c.Cores[1])
	case TargetDestroyEntity:
		return fmt.Sprintf("write-write conflict: entity %s destroyed by both %s and %s",
			c.Target.entityId, c.Cores[0], c.Cores[1])
	default:
		return "write-write conflict"
	}
}

// ConflictReport is the complete result of detecting conflicts across
// a tick's per-Core WriteSets.
type ConflictReport struct {
	Conflicts []Conflict
}

// HasConflicts reports whether any conflict was found.
func (r *ConflictReport) HasConflicts() bool { return len(r.Conflicts) > 0 }

// Len reports the number of conflicts.
func (r *ConflictReport) Len() int { return len(r.Conflicts) }

// Summary renders a short human-readable description, used by
// UnresolvedConflicts.Error.
func (r *ConflictReport) Summary() string {
	if len(r.Conflicts) == 0 {
		return "no conflicts"
	}
	if len(r.Conflicts) == 1 {
		return r.Conflicts[0].String()
	}
	return fmt.Sprintf("%d conflicts (first: %s)", len(r.Conflicts), r.Conflicts[0].String())
}

// DefaultConflictFilter excludes SpawnEntity targets: independent
// spawns by distinct Cores are ordinarily harmless, since each Core
// mints its own fresh entity (§4.5).
func DefaultConflictFilter(target WriteTarget) bool {
	return target.kind != TargetSpawnEntity
}

// PerCoreWrites pairs a CoreId with the WriteSet it produced this
// tick, the input shape DetectConflicts consumes.
type PerCoreWrites struct {
	Core   CoreId
	Writes *WriteSet
}

// DetectConflicts finds every WriteTarget touched by two or more
// distinct Cores in writeSets. It runs in O(n) in the total number of
// writes. A nil filter behaves like DefaultConflictFilter; pass a
// filter that always returns true to report every conflict including
// spawns.
func DetectConflicts(writeSets []PerCoreWrites, filter func(WriteTarget) bool) *ConflictReport {
	if filter == nil {
		filter = DefaultConflictFilter
	}

	type bucket struct {
		target WriteTarget
		writes []coreWrite
		cores  map[CoreId]struct{}
	}
	buckets := make(map[WriteTarget]*bucket)
	var order []WriteTarget

	for _, cw := range writeSets {
		for _, w := range cw.Writes.Writes() {
			target := TargetFromPendingWrite(w)
			if !filter(target) {
				continue
			}
			b, ok := buckets[target]
			if !ok {
				b = &bucket{target: target, cores: make(map[CoreId]struct{})}
				buckets[target] = b
				order = append(order, target)
			}
			b.writes = append(b.writes, coreWrite{core: cw.Core, write: w})
			b.cores[cw.Core] = struct{}{}
		}
	}

	report := &ConflictReport{}
	for _, target := range order {
		b := buckets[target]
		if len(b.cores) <= 1 {
			continue
		}
		cores := make([]CoreId, 0, len(b.cores))
		for c := range b.cores {
			cores = append(cores, c)
		}
		sort.Slice(cores, func(i, j int) bool { return cores[i] < cores[j] })
		report.Conflicts = append(report.Conflicts, Conflict{
			Target: target,
			Cores:  cores,
			Writes: b.writes,
		})
	}

	sort.Slice(report.Conflicts, func(i, j int) bool {
		return report.Conflicts[i].Cores[0] < report.Conflicts[j].Cores[0]
	})

	return report
}
