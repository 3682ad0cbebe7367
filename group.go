package pulsive

import "sync"

// GroupId identifies a CoreGroup within a Hub.
type GroupId uint32

// CoreGroup is the abstraction a Hub drives: it never touches an
// individual Core directly, only this interface, which lets different
// execution strategies (all cores on the same tick, eventually a
// pipelined or asynchronous group) plug into the same Hub (§5).
type CoreGroup interface {
	Id() GroupId
	Tick() uint64
	CoreCount() int
	LoadModel(model *Model)
	ExecuteTick() []UpdateResult
	CoreIds() []CoreId
	AdvanceTick()
	OnEvent(h EventHandler)
	OnTick(h TickHandler)
	Send(msg Msg)
	ScheduleMsg(msg Msg, delayTicks, currentTick uint64)
}

// TickSyncGroup is the canonical CoreGroup: every Core in it is
// always at the same tick, loads the same snapshot, and is barrier-
// synchronized before the Hub advances. A single core runs inline
// with zero goroutine overhead; two or more run concurrently and are
// joined before ExecuteTick returns, the same fan-out/fan-in shape
// the teacher's worldRuntime uses for its per-shard workers.
type TickSyncGroup struct {
	id        GroupId
	tick      uint64
	cores     []*Core
	baseSeed  uint64
	partition *PartitionStrategy
}

// NewTickSyncGroup returns a group of count cores sharing baseSeed,
// assigned CoreIds startId, startId+1, ... so a Hub with several
// groups can keep every Core's id globally unique.
func NewTickSyncGroup(id GroupId, startId CoreId, count int, baseSeed uint64) *TickSyncGroup {
	cores := make([]*Core, count)
	for i := 0; i < count; i++ {
		cores[i] = NewCore(startId+CoreId(i), baseSeed)
	}
	return &TickSyncGroup{id: id, cores: cores, baseSeed: baseSeed}
}

// WithPartition assigns strategy to every Core in the group, indexed by
// its position so ForEachEntity and per-kind TickHandler dispatch only
// touch the shard of entities that core owns (§5 supplement). Entities
// not captured by any core under a SpatialGrid/Custom strategy simply
// go unvisited by ForEachEntity on any core, the same tradeoff a real
// spatial partition makes outside this engine.
func (g *TickSyncGroup) WithPartition(strategy PartitionStrategy) *TickSyncGroup {
	g.partition = &strategy
	for i, c := range g.cores {
		c.Runtime.SetPartition(g.partition, i, len(g.cores))
	}
	return g
}

func (g *TickSyncGroup) Id() GroupId    { return g.id }
func (g *TickSyncGroup) Tick() uint64   { return g.tick }
func (g *TickSyncGroup) CoreCount() int { return len(g.cores) }

// CoreIds returns every Core's id, in registration order.
func (g *TickSyncGroup) CoreIds() []CoreId {
	ids := make([]CoreId, len(g.cores))
	for i, c := range g.cores {
		ids[i] = c.Id
	}
	return ids
}

// LoadModel hands every Core in the group its own privatized copy of
// model, so no Core can observe another Core's in-flight mutations
// during the tick (§5 snapshot isolation).
func (g *TickSyncGroup) LoadModel(model *Model) {
	for _, c := range g.cores {
		c.LoadModel(model)
	}
}

// ExecuteTick runs every Core's tick, in parallel once there is more
// than one, and returns their UpdateResults in CoreId order.
func (g *TickSyncGroup) ExecuteTick() []UpdateResult {
	results := make([]UpdateResult, len(g.cores))
	if len(g.cores) <= 1 {
		if len(g.cores) == 1 {
			results[0] = g.cores[0].Tick()
		}
		return results
	}

	var wg sync.WaitGroup
	wg.Add(len(g.cores))
	for i, c := range g.cores {
		go func(i int, c *Core) {
			defer wg.Done()
			results[i] = c.Tick()
		}(i, c)
	}
	wg.Wait()
	return results
}

// AdvanceTick bumps the group's own tick counter. Each Core derives
// its RNG from the Model's tick at the next LoadModel call, not from
// this counter, so this only needs to track group-level bookkeeping.
func (g *TickSyncGroup) AdvanceTick() { g.tick++ }

// OnEvent registers an event handler on every Core's Runtime.
func (g *TickSyncGroup) OnEvent(h EventHandler) {
	for _, c := range g.cores {
		c.Runtime.OnEvent(h)
	}
}

// OnTick registers a tick handler on every Core's Runtime.
func (g *TickSyncGroup) OnTick(h TickHandler) {
	for _, c := range g.cores {
		c.Runtime.OnTick(h)
	}
}

// Send enqueues msg on every Core's Runtime, used to redeliver events
// emitted during a committed tick.
func (g *TickSyncGroup) Send(msg Msg) {
	for _, c := range g.cores {
		c.Runtime.Send(msg)
	}
}

// ScheduleMsg schedules msg on every Core's Runtime.
func (g *TickSyncGroup) ScheduleMsg(msg Msg, delayTicks, currentTick uint64) {
	for _, c := range g.cores {
		c.Runtime.Schedule(msg, delayTicks, currentTick)
	}
}
