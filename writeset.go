package pulsive

// PendingWriteKind discriminates the variants of PendingWrite.
type PendingWriteKind int

const (
	WriteSetProperty PendingWriteKind = iota
	WriteModifyProperty
	WriteSetGlobal
	WriteModifyGlobal
	WriteAddFlag
	WriteRemoveFlag
	WriteSpawnEntity
	WriteDestroyEntity
)

// PendingWrite is one already-evaluated mutation, recorded by a
// Collector instead of being applied directly, so a CoreGroup can
// detect conflicts across Cores before anything touches the
// authoritative Model (§4.3).
type PendingWrite struct {
	Kind PendingWriteKind

	EntityId EntityId
	Key      string
	Value    Value
	Op       ModifyOp
	Operand  float64
	Flag     DefId

	EntityKind DefId
	Properties *ValueMap
}

// WriteSetResult reports which entities a WriteSet's application
// spawned or destroyed, in application order.
type WriteSetResult struct {
	Spawned   []EntityId
	Destroyed []EntityId
}

// Merge appends other's contents onto r.
func (r *WriteSetResult) Merge(other WriteSetResult) {
	r.Spawned = append(r.Spawned, other.Spawned...)
	r.Destroyed = append(r.Destroyed, other.Destroyed...)
}

// WriteSet is an ordered collection of PendingWrites, produced during
// a tick's read/compute phase and applied atomically afterward (§4.3).
type WriteSet struct {
	writes []PendingWrite
}

// NewWriteSet returns an empty WriteSet.
func NewWriteSet() *WriteSet { return &WriteSet{} }

// Push appends a write.
func (ws *WriteSet) Push(w PendingWrite) { ws.writes = append(ws.writes, w) }

// Extend appends other's writes onto ws, in order.
func (ws *WriteSet) Extend(other *WriteSet) {
	ws.writes = append(ws.writes, other.writes...)
}

// Len reports the number of pending writes.
func (ws *WriteSet) Len() int { return len(ws.writes) }

// IsEmpty reports whether ws has no pending writes.
func (ws *WriteSet) IsEmpty() bool { return len(ws.writes) == 0 }

// Writes returns the underlying slice for read-only iteration.
func (ws *WriteSet) Writes() []PendingWrite { return ws.writes }

// Clear empties ws.
func (ws *WriteSet) Clear() { ws.writes = nil }

// MergeWriteSets concatenates several WriteSets in order, e.g. the
// per-Core WriteSets a CoreGroup collected this tick.
func MergeWriteSets(sets []*WriteSet) *WriteSet {
	merged := NewWriteSet()
	for _, ws := range sets {
		merged.Extend(ws)
	}
	return merged
}

// Apply applies every write in ws to m, in order, and reports which
// entities were spawned/destroyed. Writes against a missing entity or
// an invalid operand are silently skipped rather than erroring, since
// by the time Apply runs the writes have already survived conflict
// detection: this mirrors a message to a despawned entity being a
// harmless no-op (§4.3, §4.4).
func Apply(ws *WriteSet, m *Model) WriteSetResult {
	var result WriteSetResult
	entities := m.EntitiesMut()

	for _, w := range ws.writes {
		switch w.Kind {
		case WriteSetProperty:
			if ent, ok := entities.Get(w.EntityId); ok {
				ent.Set(w.Key, w.Value)
			}

		case WriteModifyProperty:
			if ent, ok := entities.Get(w.EntityId); ok {
				current, _ := ent.GetNumber(w.Key)
				ent.Set(w.Key, FloatValue(w.Op.Apply(current, w.Operand)))
			}

		case WriteSetGlobal:
			m.SetGlobal(w.Key, w.Value)

		case WriteModifyGlobal:
			current, _ := m.GetGlobal(w.Key).AsNumber()
			m.SetGlobal(w.Key, FloatValue(w.Op.Apply(current, w.Operand)))

		case WriteAddFlag:
			if ent, ok := entities.Get(w.EntityId); ok {
				ent.Flags.Add(w.Flag)
			}

		case WriteRemoveFlag:
			if ent, ok := entities.Get(w.EntityId); ok {
				ent.Flags.Remove(w.Flag)
			}

		case WriteSpawnEntity:
			ent := entities.Create(w.EntityKind)
			if w.Properties != nil {
				for _, key := range w.Properties.Keys() {
					v, _ := w.Properties.Get(key)
					ent.Set(key, v)
				}
			}
			result.Spawned = append(result.Spawned, ent.Id)

		case WriteDestroyEntity:
			if entities.Remove(w.EntityId) {
				result.Destroyed = append(result.Destroyed, w.EntityId)
			}
		}
	}

	return result
}
