package pulsive

// EntityStore owns every live Entity, indexed by id and by kind
// (spec §3). Iteration order of ByKind equals creation order of
// surviving entities of that kind — this is why removal only unlinks
// from byKind rather than compacting the primary map.
type EntityStore struct {
	entities map[EntityId]*Entity
	order    []EntityId
	nextId   uint64
	byKind   map[DefId][]EntityId
}

// NewEntityStore returns an empty store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		entities: make(map[EntityId]*Entity),
		byKind:   make(map[DefId][]EntityId),
	}
}

// Create mints a fresh EntityId, unique within this store, and
// registers a new entity of kind.
func (s *EntityStore) Create(kind DefId) *Entity {
	s.nextId++
	id := EntityId(s.nextId)
	ent := NewEntity(id, kind)
	s.entities[id] = ent
	s.order = append(s.order, id)
	s.byKind[kind] = append(s.byKind[kind], id)
	return ent
}

// Get looks up an entity by id.
func (s *EntityStore) Get(id EntityId) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// GetMut is an alias of Get kept for readability at call sites that
// intend to mutate the returned entity (Go has no separate mutable
// borrow, but this documents intent the way the source's get_mut does).
func (s *EntityStore) GetMut(id EntityId) (*Entity, bool) {
	return s.Get(id)
}

// Remove deletes an entity by id, unlinking it from the kind index.
// Removing a missing id is a no-op and returns false.
func (s *EntityStore) Remove(id EntityId) bool {
	ent, ok := s.entities[id]
	if !ok {
		return false
	}
	delete(s.entities, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	ids := s.byKind[ent.Kind]
	for i, kid := range ids {
		if kid == id {
			s.byKind[ent.Kind] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return true
}

// ByKind returns the surviving entities of kind, in creation order.
func (s *EntityStore) ByKind(kind DefId) []*Entity {
	ids := s.byKind[kind]
	out := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Ids returns every live EntityId, in creation order.
func (s *EntityStore) Ids() []EntityId {
	out := make([]EntityId, len(s.order))
	copy(out, s.order)
	return out
}

// Len reports the number of live entities.
func (s *EntityStore) Len() int { return len(s.entities) }

// Resolve looks up the EntityId an EntityRef names in this store.
func (s *EntityStore) Resolve(ref EntityRef) (EntityId, bool) {
	return ref.Resolve(s)
}

// ResolveEntity resolves ref directly to its Entity.
func (s *EntityStore) ResolveEntity(ref EntityRef) (*Entity, bool) {
	id, ok := s.Resolve(ref)
	if !ok {
		return nil, false
	}
	return s.Get(id)
}

// Clone returns a deep copy of the store, including every entity.
func (s *EntityStore) Clone() *EntityStore {
	out := &EntityStore{
		entities: make(map[EntityId]*Entity, len(s.entities)),
		order:    append([]EntityId(nil), s.order...),
		nextId:   s.nextId,
		byKind:   make(map[DefId][]EntityId, len(s.byKind)),
	}
	for id, e := range s.entities {
		out.entities[id] = e.Clone()
	}
	for k, ids := range s.byKind {
		out.byKind[k] = append([]EntityId(nil), ids...)
	}
	return out
}
