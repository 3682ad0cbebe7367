package pulsive

import "sort"

// scheduledMsg pairs a message with the tick it becomes due.
type scheduledMsg struct {
	tick uint64
	msg  Msg
}

// UpdateResult is everything one Runtime.Tick call produced: the
// WriteSet to commit, and every side effect raised along the way
// (§4.2, §4.4).
type UpdateResult struct {
	Writes *WriteSet
	Result *EffectResult
}

// Runtime drives the Elm-style message loop for a single Core: a
// queue of pending messages, a min-heap of scheduled future messages,
// and the priority-sorted handler tables script loading registers
// into (§4.4). A Runtime never holds a Model; each Tick call is
// handed the Model view to read and a Collector to record writes
// into, which is what lets the same Runtime run against any Core's
// private snapshot.
type Runtime struct {
	queue        []Msg
	scheduled    []scheduledMsg
	eventHandlers []EventHandler
	tickHandlers  []TickHandler
	nextSeq       int

	partition      *PartitionStrategy
	partitionIndex int
	partitionCount int
}

// SetPartition assigns which shard of entities, under strategy, this
// Runtime's ForEachEntity effects and per-kind TickHandlers are allowed
// to dispatch against, letting a TickSyncGroup split entity work across
// cores instead of every core re-walking every entity (§5 supplement).
// Passing a nil strategy disables filtering; every core then sees every
// entity, which is the default.
func (r *Runtime) SetPartition(strategy *PartitionStrategy, index, count int) {
	r.partition = strategy
	r.partitionIndex = index
	r.partitionCount = count
}

// NewRuntime returns an empty Runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// OnEvent registers an event handler, keeping the table sorted by
// descending priority, ties broken by registration order.
func (r *Runtime) OnEvent(h EventHandler) {
	h.seq = r.nextSeq
	r.nextSeq++
	r.eventHandlers = append(r.eventHandlers, h)
	sort.SliceStable(r.eventHandlers, func(i, j int) bool {
		if r.eventHandlers[i].Priority != r.eventHandlers[j].Priority {
			return r.eventHandlers[i].Priority > r.eventHandlers[j].Priority
		}
		return r.eventHandlers[i].seq < r.eventHandlers[j].seq
	})
}

// OnTick registers a tick handler, keeping the table sorted the same
// way as OnEvent.
func (r *Runtime) OnTick(h TickHandler) {
	h.seq = r.nextSeq
	r.nextSeq++
	r.tickHandlers = append(r.tickHandlers, h)
	sort.SliceStable(r.tickHandlers, func(i, j int) bool {
		if r.tickHandlers[i].Priority != r.tickHandlers[j].Priority {
			return r.tickHandlers[i].Priority > r.tickHandlers[j].Priority
		}
		return r.tickHandlers[i].seq < r.tickHandlers[j].seq
	})
}

// Send enqueues a message for immediate processing on the next Tick.
func (r *Runtime) Send(msg Msg) {
	r.queue = append(r.queue, msg)
}

// Schedule enqueues msg to become due delayTicks after currentTick.
func (r *Runtime) Schedule(msg Msg, delayTicks, currentTick uint64) {
	r.scheduled = append(r.scheduled, scheduledMsg{tick: currentTick + delayTicks, msg: msg})
	sort.SliceStable(r.scheduled, func(i, j int) bool { return r.scheduled[i].tick < r.scheduled[j].tick })
}

// Tick advances model's clock by one, moves any now-due scheduled
// messages onto the queue, enqueues the synthetic Tick message, and
// drains the queue to completion, recording every write into a single
// Collector bound to model so later messages in this tick observe
// earlier ones' writes (§4.4, §9 open question 2). Events raised by
// EmitEvent effects are not put back on this queue: they are returned
// in the result's EmittedEvents, and a Hub sends them to its groups
// after the tick commits, so they dispatch on the following tick.
func (r *Runtime) Tick(model *Model) UpdateResult {
	model.AdvanceTick()
	current := model.CurrentTick()

	var due []scheduledMsg
	var remaining []scheduledMsg
	for _, s := range r.scheduled {
		if s.tick <= current {
			due = append(due, s)
		} else {
			remaining = append(remaining, s)
		}
	}
	r.scheduled = remaining
	for _, s := range due {
		r.queue = append(r.queue, s.msg)
	}

	r.Send(TickMsg(current))

	return r.ProcessQueue(model)
}

// ProcessQueue drains every queued message against a single Collector,
// returning the accumulated WriteSet and EffectResult.
func (r *Runtime) ProcessQueue(model *Model) UpdateResult {
	collector := NewCollector(model)
	collector.Partition = r.partition
	collector.PartitionIndex = r.partitionIndex
	collector.PartitionCount = r.partitionCount

	for len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.dispatch(collector, model, msg)
	}

	return UpdateResult{Writes: collector.Writes, Result: collector.Result}
}

func (r *Runtime) dispatch(collector *Collector, model *Model, msg Msg) {
	switch msg.Kind {
	case MsgTick:
		for _, h := range r.tickHandlers {
			r.runTickHandler(collector, model, h, msg)
		}
	case MsgEvent, MsgScheduledEvent, MsgCommand:
		if !msg.HasEvent {
			return
		}
		for _, h := range r.eventHandlers {
			if h.EventId != msg.EventId {
				continue
			}
			r.runEventHandler(collector, model, h, msg)
		}
	}
}

func (r *Runtime) runTickHandler(collector *Collector, model *Model, h TickHandler, msg Msg) {
	if h.HasTarget {
		for _, ent := range model.Entities().ByKind(h.TargetKind) {
			if !collector.ownsEntity(ent) {
				continue
			}
			if h.Condition != nil {
				ctx := &EvalContext{
					Entities: model.Entities(), Globals: model.Globals(),
					Params: msg.Params, Rng: model.Rng, Target: ent,
				}
				v, err := h.Condition.Eval(ctx)
				if err != nil || !v.Truthy() {
					continue
				}
			}
			collector.Collect(h.Effects, RefOf(ent.Id), msg.Params)
		}
		return
	}

	if h.Condition != nil {
		ctx := &EvalContext{Entities: model.Entities(), Globals: model.Globals(), Params: msg.Params, Rng: model.Rng}
		v, err := h.Condition.Eval(ctx)
		if err != nil || !v.Truthy() {
			return
		}
	}
	collector.Collect(h.Effects, GlobalRef(), msg.Params)
}

func (r *Runtime) runEventHandler(collector *Collector, model *Model, h EventHandler, msg Msg) {
	if h.Condition != nil {
		targetEnt, _ := model.Entities().ResolveEntity(msg.Target)
		ctx := &EvalContext{
			Entities: model.Entities(), Globals: model.Globals(),
			Params: msg.Params, Rng: model.Rng, Target: targetEnt,
		}
		v, err := h.Condition.Eval(ctx)
		if err != nil || !v.Truthy() {
			return
		}
	}
	collector.Collect(h.Effects, msg.Target, msg.Params)
}
