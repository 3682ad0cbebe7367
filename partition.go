package pulsive

import "math"

// PartitionResult is the entity-id assignment a PartitionStrategy
// produced for a given core count. It is advisory only: nothing in
// Hub.Tick requires it, since every Core already reads the full
// Model. Handlers that want to avoid cross-core contention on the
// same entities can use it to shard ForEachEntity work by core id.
type PartitionResult struct {
	partitions []([]EntityId)
	coreCount  int
}

// CoreCount reports how many partitions this result has.
func (r PartitionResult) CoreCount() int { return r.coreCount }

// TotalEntities reports the total number of entities partitioned.
func (r PartitionResult) TotalEntities() int {
	total := 0
	for _, p := range r.partitions {
		total += len(p)
	}
	return total
}

// ForCore returns the entity ids assigned to core idx.
func (r PartitionResult) ForCore(idx int) []EntityId {
	if idx < 0 || idx >= len(r.partitions) {
		return nil
	}
	return r.partitions[idx]
}

// PartitionStrategyKind discriminates PartitionStrategy's variants.
type PartitionStrategyKind int

const (
	PartitionById PartitionStrategyKind = iota
	PartitionByOwner
	PartitionSpatialGrid
	PartitionCustom
)

// PartitionStrategy assigns entities to cores deterministically, so
// the same Model always partitions the same way regardless of
// execution order (§5 supplement, grounded on the original's
// partition hints).
type PartitionStrategy struct {
	kind PartitionStrategyKind

	ownerProperty string

	cellSize float64
	xProp    string
	yProp    string

	custom func(*Entity) int
}

// PartitionById assigns entities round-robin by EntityId.
func PartitionById() PartitionStrategy { return PartitionStrategy{kind: PartitionById} }

// PartitionByOwner groups every entity sharing the same value of
// property onto the same core.
func PartitionByOwner(property string) PartitionStrategy {
	return PartitionStrategy{kind: PartitionByOwner, ownerProperty: property}
}

// PartitionBySpatialGrid buckets entities by which cellSize-sized 2D
// grid cell their (xProp, yProp) position falls in.
func PartitionBySpatialGrid(cellSize float64, xProp, yProp string) PartitionStrategy {
	if cellSize <= 0 {
		panic("pulsive: spatial grid cell size must be positive")
	}
	return PartitionStrategy{kind: PartitionSpatialGrid, cellSize: cellSize, xProp: xProp, yProp: yProp}
}

// PartitionCustomFn wraps an arbitrary entity-to-core function.
func PartitionCustomFn(f func(*Entity) int) PartitionStrategy {
	return PartitionStrategy{kind: PartitionCustom, custom: f}
}

// Partition assigns every entity in store to one of coreCount cores.
func (s PartitionStrategy) Partition(store *EntityStore, coreCount int) PartitionResult {
	if coreCount < 1 {
		coreCount = 1
	}
	partitions := make([][]EntityId, coreCount)
	for _, id := range store.Ids() {
		ent, ok := store.Get(id)
		if !ok {
			continue
		}
		idx := s.AssignCore(ent, coreCount)
		partitions[idx] = append(partitions[idx], id)
	}
	return PartitionResult{partitions: partitions, coreCount: coreCount}
}

// AssignCore returns which core index (0..coreCount) entity should
// run on under this strategy.
func (s PartitionStrategy) AssignCore(entity *Entity, coreCount int) int {
	switch s.kind {
	case PartitionById:
		return int(uint64(entity.Id) % uint64(coreCount))

	case PartitionByOwner:
		v, ok := entity.Properties.Get(s.ownerProperty)
		if !ok {
			return 0
		}
		return int(hashValue(v) % uint64(coreCount))

	case PartitionSpatialGrid:
		x, _ := entity.GetNumber(s.xProp)
		y, _ := entity.GetNumber(s.yProp)
		cellX := int64(math.Floor(x / s.cellSize))
		cellY := int64(math.Floor(y / s.cellSize))
		return int(spatialHash(cellX, cellY) % uint64(coreCount))

	case PartitionCustom:
		if s.custom == nil {
			return 0
		}
		idx := s.custom(entity)
		if idx < 0 {
			idx = -idx
		}
		return idx % coreCount

	default:
		return 0
	}
}

// hashValue folds a Value into a stable partitioning key: ints, floats
// and bools go through hashSeed, the per-core RNG mixer; strings, refs
// and other kinds use an FNV-1a hash of their text.
func hashValue(v Value) uint64 {
	switch v.Kind() {
	case KindString:
		s, _ := v.AsString()
		return hashBytes(s)
	case KindInt:
		i, _ := v.AsInt()
		return hashSeed(uint64(i), 0, 0)
	case KindFloat:
		f, _ := v.AsFloat()
		return hashSeed(math.Float64bits(f), 0, 0)
	case KindBool:
		b, _ := v.AsBool()
		if b {
			return hashSeed(1, 0, 0)
		}
		return hashSeed(0, 0, 0)
	case KindEntityRef:
		ref, _ := v.AsEntityRef()
		return hashBytes(ref.String())
	default:
		return hashBytes(v.Text())
	}
}

func hashBytes(s string) uint64 {
	var h uint64 = 0xcbf29ce484222325
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 0x100000001b3
	}
	return h
}

func spatialHash(x, y int64) uint64 {
	return hashSeed(uint64(x), uint64(y), 0)
}
