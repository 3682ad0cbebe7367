package pulsive

// sharedStore is a reference-counted handle to an EntityStore, giving
// a Model O(1) snapshot creation: cloning the Model only bumps this
// handle's refcount. A mutating accessor must privatize first (copy
// the store if shared) before writing, mirroring Arc::make_mut in the
// source this spec was distilled from.
type sharedStore struct {
	refs  *int
	store *EntityStore
}

func newSharedStore(s *EntityStore) *sharedStore {
	n := 1
	return &sharedStore{refs: &n, store: s}
}

// alias returns a new handle to the same underlying store, bumping
// the shared refcount. This is what Snapshot and Model.Clone call.
func (h *sharedStore) alias() *sharedStore {
	*h.refs++
	return &sharedStore{refs: h.refs, store: h.store}
}

// makeMut returns a handle this caller may mutate freely: if the
// store is aliased elsewhere, it is cloned first and the caller's
// handle is repointed at the private copy.
func (h *sharedStore) makeMut() *EntityStore {
	if *h.refs > 1 {
		*h.refs--
		n := 1
		h.refs = &n
		h.store = h.store.Clone()
	}
	return h.store
}

type sharedGlobals struct {
	refs *int
	m    *ValueMap
}

func newSharedGlobals(m *ValueMap) *sharedGlobals {
	n := 1
	return &sharedGlobals{refs: &n, m: m}
}

func (h *sharedGlobals) alias() *sharedGlobals {
	*h.refs++
	return &sharedGlobals{refs: h.refs, m: h.m}
}

func (h *sharedGlobals) makeMut() *ValueMap {
	if *h.refs > 1 {
		*h.refs--
		n := 1
		h.refs = &n
		h.m = h.m.Clone()
	}
	return h.m
}

// ActorContext is the per-actor state the Model tracks (e.g. a
// connected player's session bookkeeping). It is intentionally small
// and opaque to the engine core: callers attach whatever they need.
type ActorContext struct {
	Id         ActorId
	Properties *ValueMap
}

// NewActorContext returns an empty context for id.
func NewActorContext(id ActorId) ActorContext {
	return ActorContext{Id: id, Properties: NewValueMap()}
}

func (c ActorContext) clone() ActorContext {
	return ActorContext{Id: c.Id, Properties: c.Properties.Clone()}
}

// Model is the complete simulation state at one moment (§3). Entities
// and globals are held by shared ownership so a Snapshot is O(1);
// every other field is deep-cloned on Clone/Snapshot.
type Model struct {
	entities *sharedStore
	globals  *sharedGlobals
	Time     Clock
	Rng      *Rng
	actorIds []ActorId
	actors   map[ActorId]ActorContext
	version  uint64
}

// NewModel returns an empty Model seeded deterministically at 12345,
// matching the source's default.
func NewModel() *Model {
	return NewModelWithSeed(12345)
}

// NewModelWithSeed returns an empty Model with the given RNG seed.
func NewModelWithSeed(seed uint64) *Model {
	return &Model{
		entities: newSharedStore(NewEntityStore()),
		globals:  newSharedGlobals(NewValueMap()),
		Time:     NewClock(),
		Rng:      NewRng(seed),
		actors:   make(map[ActorId]ActorContext),
	}
}

// Entities returns the entity store for reading.
func (m *Model) Entities() *EntityStore { return m.entities.store }

// EntitiesMut returns the entity store, privatizing it first if it is
// currently shared with a live Snapshot.
func (m *Model) EntitiesMut() *EntityStore { return m.entities.makeMut() }

// Globals returns the globals map for reading.
func (m *Model) Globals() *ValueMap { return m.globals.m }

// GlobalsMut returns the globals map, privatizing it first if shared.
func (m *Model) GlobalsMut() *ValueMap { return m.globals.makeMut() }

// GetGlobal reads a global, returning Null if absent.
func (m *Model) GetGlobal(key string) Value {
	if v, ok := m.globals.m.Get(key); ok {
		return v
	}
	return Null()
}

// SetGlobal writes a global, copy-on-write.
func (m *Model) SetGlobal(key string, v Value) {
	m.globals.makeMut().Set(key, v)
}

// AddActor registers an actor context, in insertion order.
func (m *Model) AddActor(ctx ActorContext) {
	if _, exists := m.actors[ctx.Id]; !exists {
		m.actorIds = append(m.actorIds, ctx.Id)
	}
	m.actors[ctx.Id] = ctx
}

// GetActor reads an actor context.
func (m *Model) GetActor(id ActorId) (ActorContext, bool) {
	c, ok := m.actors[id]
	return c, ok
}

// Actors returns every actor context, in insertion order.
func (m *Model) Actors() []ActorContext {
	out := make([]ActorContext, 0, len(m.actorIds))
	for _, id := range m.actorIds {
		out = append(out, m.actors[id])
	}
	return out
}

// AdvanceTick advances the clock by one.
func (m *Model) AdvanceTick() {
	m.Time.Advance()
}

// CurrentTick returns the clock's current tick.
func (m *Model) CurrentTick() uint64 {
	return m.Time.Tick
}

// Version returns the Model's commit version, bumped by Hub.tick.
func (m *Model) Version() uint64 { return m.version }

// SetVersion is used by Hub after a successful commit.
func (m *Model) SetVersion(v uint64) { m.version = v }

// Clone returns a Model that shares the same entity store and globals
// handles (O(1)) until one of them is mutated, at which point it is
// privatized independently of m.
func (m *Model) Clone() *Model {
	actors := make(map[ActorId]ActorContext, len(m.actors))
	for id, c := range m.actors {
		actors[id] = c.clone()
	}
	return &Model{
		entities: m.entities.alias(),
		globals:  m.globals.alias(),
		Time:     m.Time.Clone(),
		Rng:      m.Rng.Clone(),
		actorIds: append([]ActorId(nil), m.actorIds...),
		actors:   actors,
		version:  m.version,
	}
}

// Snapshot captures an O(1) read-only view of m at this instant.
func (m *Model) Snapshot() *Snapshot {
	actors := make(map[ActorId]ActorContext, len(m.actors))
	for id, c := range m.actors {
		actors[id] = c.clone()
	}
	return &Snapshot{
		entities: m.entities.alias(),
		globals:  m.globals.alias(),
		time:     m.Time,
		rng:      m.Rng.Clone(),
		actorIds: append([]ActorId(nil), m.actorIds...),
		actors:   actors,
		version:  m.version,
	}
}
