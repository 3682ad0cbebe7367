package journal

import (
	"sort"

	"github.com/weng-chenghui/pulsive"
)

// Replayer reconstructs Model state and message sequences from a
// Journal's retained entries and snapshots (§3, §5). It never mutates
// the journal: replay is purely a read over what was already recorded.
type Replayer struct {
	j *Journal
}

// NewReplayer returns a Replayer over j.
func NewReplayer(j *Journal) *Replayer { return &Replayer{j: j} }

// StateAt returns the exact Model recorded by a Snapshot entry at
// tick, if one is still retained.
func (r *Replayer) StateAt(tick uint64) (*pulsive.Model, bool) {
	for _, e := range r.j.entries {
		if e.Kind == EntrySnapshot && e.Tick == tick {
			return r.j.GetSnapshot(e.SnapshotId)
		}
	}
	return nil, false
}

// snapshotTicks returns every tick with a still-retained snapshot, sorted.
func (r *Replayer) snapshotTicks() []uint64 {
	seen := make(map[uint64]bool)
	var ticks []uint64
	for _, e := range r.j.entries {
		if e.Kind != EntrySnapshot {
			continue
		}
		if _, ok := r.j.GetSnapshot(e.SnapshotId); !ok {
			continue
		}
		if !seen[e.Tick] {
			seen[e.Tick] = true
			ticks = append(ticks, e.Tick)
		}
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })
	return ticks
}

// Interpolate returns a Model for tick, numerically interpolated
// between the nearest retained snapshots before and at-or-after tick,
// following the engine's Float/Int linear-interpolation contract
// (spec §5): non-numeric properties and globals take the "after"
// snapshot's value unchanged. If tick exactly matches a retained
// snapshot, that snapshot's Model is returned as StateAt returns it.
// Returns (nil, false) if tick falls outside the retained snapshot
// range.
func (r *Replayer) Interpolate(tick uint64) (*pulsive.Model, bool) {
	ticks := r.snapshotTicks()
	var before, after uint64
	haveBefore, haveAfter := false, false
	for _, t := range ticks {
		if t == tick {
			return r.StateAt(tick)
		}
		if t < tick {
			before, haveBefore = t, true
		}
		if t > tick && !haveAfter {
			after, haveAfter = t, true
		}
	}
	if !haveBefore || !haveAfter {
		return nil, false
	}
	beforeModel, _ := r.StateAt(before)
	afterModel, _ := r.StateAt(after)
	if beforeModel == nil || afterModel == nil {
		return nil, false
	}
	alpha := float64(tick-before) / float64(after-before)
	return interpolateModel(beforeModel, afterModel, alpha), true
}

// InterpolateModels exposes the engine's Float/Int linear-interpolation
// contract (spec §5) for other packages — netcode's reconciler smooths
// a predicted Model toward an authoritative one the same way replay
// smooths between two retained snapshots.
func InterpolateModels(before, after *pulsive.Model, alpha float64) *pulsive.Model {
	return interpolateModel(before, after, alpha)
}

func interpolateModel(before, after *pulsive.Model, alpha float64) *pulsive.Model {
	out := after.Clone()

	globals := out.GlobalsMut()
	for _, key := range before.Globals().Keys() {
		bv, _ := before.Globals().Get(key)
		av, ok := after.Globals().Get(key)
		if !ok {
			continue
		}
		globals.Set(key, interpolateValue(bv, av, alpha))
	}

	store := out.EntitiesMut()
	for _, id := range before.Entities().Ids() {
		be, ok := before.Entities().Get(id)
		if !ok {
			continue
		}
		ae, ok := store.Get(id)
		if !ok {
			continue
		}
		for _, key := range be.Properties.Keys() {
			bv, _ := be.Properties.Get(key)
			av, ok := ae.Properties.Get(key)
			if !ok {
				continue
			}
			ae.Set(key, interpolateValue(bv, av, alpha))
		}
	}
	return out
}

func interpolateValue(before, after pulsive.Value, alpha float64) pulsive.Value {
	bn, bOk := before.AsNumber()
	an, aOk := after.AsNumber()
	if !bOk || !aOk {
		return after
	}
	if _, isInt := after.AsInt(); isInt {
		if _, wasInt := before.AsInt(); wasInt {
			return pulsive.IntValue(int64(bn + (an-bn)*alpha))
		}
	}
	return pulsive.FloatValue(bn + (an-bn)*alpha)
}

// Messages returns every recorded Message entry's Msg with
// fromTick <= tick <= toTick, in original (tick, seq) order.
func (r *Replayer) Messages(fromTick, toTick uint64) []pulsive.Msg {
	var out []pulsive.Msg
	for _, e := range r.j.entries {
		if e.Kind != EntryMessage {
			continue
		}
		if e.Tick < fromTick || e.Tick > toTick {
			continue
		}
		out = append(out, e.Msg)
	}
	return out
}
