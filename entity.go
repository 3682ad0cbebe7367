package pulsive

// FlagSet is a small unordered set of DefIds, used for an entity's
// active flags (§3). It is deliberately simpler than ValueMap: flag
// membership has no meaningful order.
type FlagSet struct {
	flags map[DefId]struct{}
}

// NewFlagSet returns an empty FlagSet.
func NewFlagSet() *FlagSet {
	return &FlagSet{flags: make(map[DefId]struct{})}
}

// Has reports whether flag is set.
func (f *FlagSet) Has(flag DefId) bool {
	if f == nil {
		return false
	}
	_, ok := f.flags[flag]
	return ok
}

// Add sets flag, returning true if it was not already set.
func (f *FlagSet) Add(flag DefId) bool {
	if _, ok := f.flags[flag]; ok {
		return false
	}
	f.flags[flag] = struct{}{}
	return true
}

// Remove clears flag, returning true if it had been set.
func (f *FlagSet) Remove(flag DefId) bool {
	if _, ok := f.flags[flag]; !ok {
		return false
	}
	delete(f.flags, flag)
	return true
}

// List returns every set flag, in no particular order. Used by
// storage/journal marshalling, which need to enumerate a flag set.
func (f *FlagSet) List() []DefId {
	out := make([]DefId, 0, len(f.flags))
	for flag := range f.flags {
		out = append(out, flag)
	}
	return out
}

// Clone returns an independent copy of f.
func (f *FlagSet) Clone() *FlagSet {
	out := NewFlagSet()
	for k := range f.flags {
		out.flags[k] = struct{}{}
	}
	return out
}

// Entity is a dynamic entity instance: a stable id, an immutable kind,
// an ordered property map, and a flag set (§3). An entity never
// changes its Id or Kind after creation.
type Entity struct {
	Id         EntityId
	Kind       DefId
	Properties *ValueMap
	Flags      *FlagSet
}

// NewEntity constructs an entity of the given kind with empty
// properties and flags.
func NewEntity(id EntityId, kind DefId) *Entity {
	return &Entity{
		Id:         id,
		Kind:       kind,
		Properties: NewValueMap(),
		Flags:      NewFlagSet(),
	}
}

// Get reads a property, returning Null if absent.
func (e *Entity) Get(key string) Value {
	if v, ok := e.Properties.Get(key); ok {
		return v
	}
	return Null()
}

// GetOr reads a property, returning def if absent.
func (e *Entity) GetOr(key string, def Value) Value {
	if v, ok := e.Properties.Get(key); ok {
		return v
	}
	return def
}

// Set writes a property.
func (e *Entity) Set(key string, v Value) {
	e.Properties.Set(key, v)
}

// GetNumber reads a property as a float64, if it coerces.
func (e *Entity) GetNumber(key string) (float64, bool) {
	v, ok := e.Properties.Get(key)
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

// ModifyNumber adds delta to a numeric property, defaulting the
// current value to 0 if absent or non-numeric.
func (e *Entity) ModifyNumber(key string, delta float64) {
	current, _ := e.GetNumber(key)
	e.Set(key, FloatValue(current+delta))
}

// Clone returns a deep copy of e.
func (e *Entity) Clone() *Entity {
	return &Entity{
		Id:         e.Id,
		Kind:       e.Kind,
		Properties: e.Properties.Clone(),
		Flags:      e.Flags.Clone(),
	}
}
