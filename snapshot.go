package pulsive

// Snapshot is a thread-shareable, read-only view over a Model captured
// at one instant (§3, §4.7). Reads through a Snapshot are identical to
// reading the original Model right after the capture; further
// mutation of the originating Model never changes a live Snapshot,
// because any such mutation privatizes its own copy of the shared
// entity store / globals first.
type Snapshot struct {
	entities *sharedStore
	globals  *sharedGlobals
	time     Clock
	rng      *Rng
	actorIds []ActorId
	actors   map[ActorId]ActorContext
	version  uint64
}

// Entities returns the entity store as it stood at capture time.
func (s *Snapshot) Entities() *EntityStore { return s.entities.store }

// Globals returns the globals map as it stood at capture time.
func (s *Snapshot) Globals() *ValueMap { return s.globals.m }

// Time returns the clock as it stood at capture time.
func (s *Snapshot) Time() Clock { return s.time }

// Rng returns the RNG state as it stood at capture time. Callers that
// advance this Rng do not affect the Model the Snapshot was taken from.
func (s *Snapshot) Rng() *Rng { return s.rng }

// Version returns the Model's commit version at capture time.
func (s *Snapshot) Version() uint64 { return s.version }

// GetActor reads an actor context as it stood at capture time.
func (s *Snapshot) GetActor(id ActorId) (ActorContext, bool) {
	c, ok := s.actors[id]
	return c, ok
}

// ToModel materializes a fully owned, independently mutable Model from
// this Snapshot by privatizing its shared handles.
func (s *Snapshot) ToModel() *Model {
	actors := make(map[ActorId]ActorContext, len(s.actors))
	for id, c := range s.actors {
		actors[id] = c.clone()
	}
	return &Model{
		entities: newSharedStore(s.entities.store.Clone()),
		globals:  newSharedGlobals(s.globals.m.Clone()),
		Time:     s.time.Clone(),
		Rng:      s.rng.Clone(),
		actorIds: append([]ActorId(nil), s.actorIds...),
		actors:   actors,
		version:  s.version,
	}
}
