package pulsive

// Core is a thin wrapper bundling one Runtime with its own private
// Model view inside a CoreGroup (§5). It never touches another Core's
// Model: a Hub hands it a Snapshot-derived Model at the start of each
// tick and only ever reads back the WriteSet/EffectResult it produced.
type Core struct {
	Id      CoreId
	Runtime *Runtime
	Model   *Model

	baseSeed uint64
}

// NewCore returns a Core with an empty Runtime and Model, identified
// by id, deriving its per-tick RNG from baseSeed (§4.6, §9).
func NewCore(id CoreId, baseSeed uint64) *Core {
	return &Core{Id: id, Runtime: NewRuntime(), Model: NewModel(), baseSeed: baseSeed}
}

// LoadModel privatizes model into this Core's own working copy and
// reseeds its RNG deterministically from (baseSeed, id, current tick),
// so replaying the same tick on the same core always draws the same
// random sequence regardless of how many other cores ran alongside it.
func (c *Core) LoadModel(model *Model) {
	c.Model = model.Clone()
	c.reseedRng()
}

func (c *Core) reseedRng() {
	tick := c.Model.CurrentTick()
	c.Model.Rng = RngFromState(hashSeed(c.baseSeed, uint64(c.Id), tick))
}

// Tick advances this Core's local clock by one and drains its
// Runtime's message queue against its own Model, returning the
// WriteSet and EffectResult produced. It never mutates any Model
// another Core can observe.
func (c *Core) Tick() UpdateResult {
	return c.Runtime.Tick(c.Model)
}

// CurrentTick reports this Core's local clock.
func (c *Core) CurrentTick() uint64 { return c.Model.CurrentTick() }
