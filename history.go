package pulsive

// DefaultHistoryCapacity is the default RingBuffer size: 128 frames,
// about two seconds of history at 60 ticks/second.
const DefaultHistoryCapacity = 128

// StateHistory is the interface a Hub uses to record and retrieve
// past Models for rollback and interpolation (§4.7).
type StateHistory interface {
	SaveState(tick uint64, model *Model)
	GetState(tick uint64) (*Model, bool)
	GetNearestBefore(tick uint64) (uint64, *Model, bool)
	GetNearestAfter(tick uint64) (uint64, *Model, bool)
	ClearBefore(tick uint64)
	Clear()
	Capacity() int
	Len() int
	TickRange() (uint64, uint64, bool)
}

type historySlot struct {
	tick   uint64
	model  *Model
	filled bool
}

// RingBuffer is a bounded, O(1)-insert StateHistory: once it holds
// capacity states, saving a new one evicts whichever slot the new
// tick's index collides with (§4.7).
type RingBuffer struct {
	slots    []historySlot
	capacity int
	count    int
}

// NewRingBuffer returns an empty RingBuffer able to hold capacity
// states. Capacity below 1 is treated as DefaultHistoryCapacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &RingBuffer{slots: make([]historySlot, capacity), capacity: capacity}
}

func (b *RingBuffer) index(tick uint64) int {
	return int(tick % uint64(b.capacity))
}

// SaveState records model's state at tick, evicting whatever
// previously occupied that tick's ring slot.
func (b *RingBuffer) SaveState(tick uint64, model *Model) {
	idx := b.index(tick)
	wasEmpty := !b.slots[idx].filled
	b.slots[idx] = historySlot{tick: tick, model: model.Clone(), filled: true}
	if wasEmpty && b.count < b.capacity {
		b.count++
	}
}

// GetState returns the exact state saved for tick, if its slot still
// holds that tick (it may have been evicted by a later tick sharing
// the same ring index).
func (b *RingBuffer) GetState(tick uint64) (*Model, bool) {
	slot := b.slots[b.index(tick)]
	if !slot.filled || slot.tick != tick {
		return nil, false
	}
	return slot.model, true
}

// GetNearestBefore returns the highest-ticked saved state at or
// before tick.
func (b *RingBuffer) GetNearestBefore(tick uint64) (uint64, *Model, bool) {
	var best historySlot
	found := false
	for _, s := range b.slots {
		if !s.filled || s.tick > tick {
			continue
		}
		if !found || s.tick > best.tick {
			best, found = s, true
		}
	}
	if !found {
		return 0, nil, false
	}
	return best.tick, best.model, true
}

// GetNearestAfter returns the lowest-ticked saved state at or after
// tick.
func (b *RingBuffer) GetNearestAfter(tick uint64) (uint64, *Model, bool) {
	var best historySlot
	found := false
	for _, s := range b.slots {
		if !s.filled || s.tick < tick {
			continue
		}
		if !found || s.tick < best.tick {
			best, found = s, true
		}
	}
	if !found {
		return 0, nil, false
	}
	return best.tick, best.model, true
}

// ClearBefore evicts every saved state strictly older than tick.
func (b *RingBuffer) ClearBefore(tick uint64) {
	for i, s := range b.slots {
		if s.filled && s.tick < tick {
			b.slots[i] = historySlot{}
			b.count--
		}
	}
}

// Clear evicts every saved state.
func (b *RingBuffer) Clear() {
	for i := range b.slots {
		b.slots[i] = historySlot{}
	}
	b.count = 0
}

// Capacity returns the maximum number of states this buffer can hold.
func (b *RingBuffer) Capacity() int { return b.capacity }

// Len returns the number of states currently saved.
func (b *RingBuffer) Len() int { return b.count }

// TickRange reports the oldest and newest saved ticks.
func (b *RingBuffer) TickRange() (uint64, uint64, bool) {
	var oldest, newest uint64
	found := false
	for _, s := range b.slots {
		if !s.filled {
			continue
		}
		if !found {
			oldest, newest, found = s.tick, s.tick, true
			continue
		}
		if s.tick < oldest {
			oldest = s.tick
		}
		if s.tick > newest {
			newest = s.tick
		}
	}
	return oldest, newest, found
}

// modelEpsilon is the tolerance this package's tests use when
// comparing an interpolated numeric property with its expected value,
// looser than Value.Equal's 1e-15 (§9 open question 3).
const modelEpsilon = 1e-6

// InterpolateNumber linearly interpolates a numeric property of the
// entity identified by id between two Models at factor t in [0, 1].
// Returns (0, false) if either Model lacks the entity or the
// property does not coerce to a number in both.
func InterpolateNumber(from, to *Model, id EntityId, property string, t float64) (float64, bool) {
	fromEnt, ok := from.Entities().Get(id)
	if !ok {
		return 0, false
	}
	toEnt, ok := to.Entities().Get(id)
	if !ok {
		return 0, false
	}
	a, ok := fromEnt.GetNumber(property)
	if !ok {
		return 0, false
	}
	b, ok := toEnt.GetNumber(property)
	if !ok {
		return 0, false
	}
	if t <= 0 {
		return a, true
	}
	if t >= 1 {
		return b, true
	}
	return a + (b-a)*t, true
}
