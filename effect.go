package pulsive

// ModifyOp names the arithmetic used by ModifyProperty/ModifyGlobal.
type ModifyOp int

const (
	OpSet ModifyOp = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMin
	OpMax
)

// Apply folds operand into current. Div by zero leaves current
// unchanged rather than producing Inf/NaN (§4.3).
func (op ModifyOp) Apply(current, operand float64) float64 {
	switch op {
	case OpSet:
		return operand
	case OpAdd:
		return current + operand
	case OpSub:
		return current - operand
	case OpMul:
		return current * operand
	case OpDiv:
		if operand != 0 {
			return current / operand
		}
		return current
	case OpMin:
		if operand < current {
			return operand
		}
		return current
	case OpMax:
		if operand > current {
			return operand
		}
		return current
	default:
		return current
	}
}

// LogLevel is the severity of a Log effect.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

// NamedExpr pairs a property/param key with the expression that
// computes its value, used wherever an effect sets several keys at
// once (SpawnEntity's initial properties, event params).
type NamedExpr struct {
	Key   string
	Value Expr
}

// WeightedEffects pairs a weight expression with the effect branch it
// selects, used by RandomChoice.
type WeightedEffects struct {
	Weight  Expr
	Effects []Effect
}

// EffectKind discriminates the variants of Effect.
type EffectKind int

const (
	EffSetProperty EffectKind = iota
	EffModifyProperty
	EffSetEntityProperty
	EffModifyEntityProperty
	EffSetGlobal
	EffModifyGlobal
	EffAddFlag
	EffRemoveFlag
	EffAddEntityFlag
	EffRemoveEntityFlag
	EffSpawnEntity
	EffDestroyTarget
	EffDestroyEntity
	EffEmitEvent
	EffScheduleEvent
	EffIf
	EffSequence
	EffForEachEntity
	EffRandomChoice
	EffLog
	EffNotify
)

// Effect is the total AST for writes and side effects (§4.2). Effect
// evaluation never mutates a Model directly: the Collector walks this
// tree read-only and records PendingWrites into a WriteSet instead, so
// the same tree can run safely against a snapshot on any Core.
type Effect struct {
	kind EffectKind

	property string
	value    Expr
	op       ModifyOp
	target   EntityRef
	hasTgt   bool

	flag DefId

	entKind    DefId
	properties []NamedExpr

	event      DefId
	evTarget   EntityRef
	params     []NamedExpr
	delayTicks Expr

	condition Expr
	then      []Effect
	els       []Effect

	forKind   DefId
	filter    Expr
	hasFilter bool
	effects   []Effect

	choices []WeightedEffects

	level LogLevel
	msg   Expr

	notifyKind DefId
	title      Expr
}

func SetProperty(property string, value Expr) Effect {
	return Effect{kind: EffSetProperty, property: property, value: value}
}
func ModifyProperty(property string, op ModifyOp, value Expr) Effect {
	return Effect{kind: EffModifyProperty, property: property, op: op, value: value}
}
func SetEntityProperty(target EntityRef, property string, value Expr) Effect {
	return Effect{kind: EffSetEntityProperty, target: target, property: property, value: value}
}
func ModifyEntityProperty(target EntityRef, property string, op ModifyOp, value Expr) Effect {
	return Effect{kind: EffModifyEntityProperty, target: target, property: property, op: op, value: value}
}
func SetGlobal(property string, value Expr) Effect {
	return Effect{kind: EffSetGlobal, property: property, value: value}
}
func ModifyGlobal(property string, op ModifyOp, value Expr) Effect {
	return Effect{kind: EffModifyGlobal, property: property, op: op, value: value}
}
func AddFlag(flag DefId) Effect    { return Effect{kind: EffAddFlag, flag: flag} }
func RemoveFlag(flag DefId) Effect { return Effect{kind: EffRemoveFlag, flag: flag} }
func AddEntityFlag(target EntityRef, flag DefId) Effect {
	return Effect{kind: EffAddEntityFlag, target: target, flag: flag}
}
func RemoveEntityFlag(target EntityRef, flag DefId) Effect {
	return Effect{kind: EffRemoveEntityFlag, target: target, flag: flag}
}
func SpawnEntity(kind DefId, properties ...NamedExpr) Effect {
	return Effect{kind: EffSpawnEntity, entKind: kind, properties: properties}
}
func DestroyTarget() Effect                 { return Effect{kind: EffDestroyTarget} }
func DestroyEntity(target EntityRef) Effect { return Effect{kind: EffDestroyEntity, target: target} }
func EmitEvent(event DefId, target EntityRef, params ...NamedExpr) Effect {
	return Effect{kind: EffEmitEvent, event: event, evTarget: target, params: params}
}
func ScheduleEvent(event DefId, target EntityRef, delayTicks Expr, params ...NamedExpr) Effect {
	return Effect{kind: EffScheduleEvent, event: event, evTarget: target, delayTicks: delayTicks, params: params}
}
func IfEffect(condition Expr, then []Effect, els []Effect) Effect {
	return Effect{kind: EffIf, condition: condition, then: then, els: els}
}
func Sequence(effects ...Effect) Effect { return Effect{kind: EffSequence, effects: effects} }
func ForEachEntity(kind DefId, filter Expr, hasFilter bool, effects ...Effect) Effect {
	return Effect{kind: EffForEachEntity, forKind: kind, filter: filter, hasFilter: hasFilter, effects: effects}
}
func RandomChoice(choices ...WeightedEffects) Effect {
	return Effect{kind: EffRandomChoice, choices: choices}
}
func Log(level LogLevel, msg Expr) Effect { return Effect{kind: EffLog, level: level, msg: msg} }
func Notify(kind DefId, title, msg Expr, target EntityRef) Effect {
	return Effect{kind: EffNotify, notifyKind: kind, title: title, msg: msg, target: target}
}

// LoggedMessage is one Log effect's evaluated output.
type LoggedMessage struct {
	Level   LogLevel
	Message string
}

// EmittedEvent is one EmitEvent effect's evaluated output, to be
// redelivered as an Event Msg once the owning tick's writes commit.
type EmittedEvent struct {
	Event  DefId
	Target EntityRef
	Params *ValueMap
}

// ScheduledEventWrite is one ScheduleEvent effect's evaluated output.
type ScheduledEventWrite struct {
	Event      DefId
	Target     EntityRef
	DelayTicks uint64
	Params     *ValueMap
}

// Notification is one Notify effect's evaluated output.
type Notification struct {
	Kind    DefId
	Title   string
	Message string
	Target  EntityRef
}

// EffectResult accumulates every side effect a handler's effects
// produced in addition to the writes recorded into a WriteSet (§4.2).
type EffectResult struct {
	EmittedEvents   []EmittedEvent
	ScheduledEvents []ScheduledEventWrite
	Logs            []LoggedMessage
	Notifications   []Notification
}

// NewEffectResult returns an empty EffectResult.
func NewEffectResult() *EffectResult { return &EffectResult{} }

// Merge appends other's contents onto r, preserving order.
func (r *EffectResult) Merge(other *EffectResult) {
	r.EmittedEvents = append(r.EmittedEvents, other.EmittedEvents...)
	r.ScheduledEvents = append(r.ScheduledEvents, other.ScheduledEvents...)
	r.Logs = append(r.Logs, other.Logs...)
	r.Notifications = append(r.Notifications, other.Notifications...)
}

// Collector walks an Effect tree read-only against a Model snapshot,
// recording every mutation as a PendingWrite instead of applying it,
// so the same pass is safe to run concurrently on any Core's view of
// the Model (§4.2, §4.3).
type Collector struct {
	Model  *Model
	Writes *WriteSet
	Result *EffectResult
	// localEntities holds this collection pass's private clones of the
	// existing entities it has set a property or flag on, so later
	// effects in the same pass read those writes before the WriteSet
	// commits them. Entities spawned in this pass are not tracked here.
	localEntities map[EntityId]*Entity
	nextLocalId   EntityId

	// Partition, when non-nil, restricts ForEachEntity and per-kind
	// TickHandler dispatch to the entities PartitionStrategy.AssignCore
	// assigns to PartitionIndex out of PartitionCount total shards (§5
	// supplement). A Runtime without a partition set leaves this nil,
	// so every entity is owned by every core, the historical behavior.
	Partition      *PartitionStrategy
	PartitionIndex int
	PartitionCount int
}

// ownsEntity reports whether this pass is allowed to dispatch against
// ent under the active partition. Always true when no partition is set.
func (c *Collector) ownsEntity(ent *Entity) bool {
	if c.Partition == nil {
		return true
	}
	return c.Partition.AssignCore(ent, c.PartitionCount) == c.PartitionIndex
}

// NewCollector returns a Collector that records writes intended for m
// without ever mutating m.
func NewCollector(m *Model) *Collector {
	return &Collector{
		Model:         m,
		Writes:        NewWriteSet(),
		Result:        NewEffectResult(),
		localEntities: make(map[EntityId]*Entity),
	}
}

// Collect walks effects under the given target/params binding,
// recording every write and side effect produced.
func (c *Collector) Collect(effects []Effect, target EntityRef, params *ValueMap) {
	for _, eff := range effects {
		c.collectOne(eff, target, params)
	}
}

func (c *Collector) evalCtx(target EntityRef, params *ValueMap) (*EvalContext, *Entity) {
	ent, _ := c.resolveEntity(target)
	ctx := &EvalContext{
		Entities: c.Model.Entities(),
		Globals:  c.Model.Globals(),
		Params:   params,
		Rng:      c.Model.Rng,
		Target:   ent,
	}
	return ctx, ent
}

// resolveEntity resolves ref, preferring this pass's own local view of
// an entity it has already spawned or modified over the Model's.
func (c *Collector) resolveEntity(ref EntityRef) (*Entity, bool) {
	if ref.Kind() == RefEntity {
		if e, ok := c.localEntities[ref.id]; ok {
			return e, true
		}
	}
	e, ok := c.Model.Entities().ResolveEntity(ref)
	if ok {
		return e, true
	}
	return nil, false
}

func (c *Collector) numberProperty(ent *Entity, key string) float64 {
	if ent == nil {
		return 0
	}
	if local, ok := c.localEntities[ent.Id]; ok {
		f, _ := local.GetNumber(key)
		return f
	}
	f, _ := ent.GetNumber(key)
	return f
}

func (c *Collector) trackLocalSet(id EntityId, key string, v Value) {
	local, ok := c.localEntities[id]
	if !ok {
		if ent, ok2 := c.Model.Entities().Get(id); ok2 {
			local = ent.Clone()
		} else {
			local = NewEntity(id, "")
		}
		c.localEntities[id] = local
	}
	local.Set(key, v)
}

func (c *Collector) trackLocalFlag(id EntityId, flag DefId, add bool) {
	local, ok := c.localEntities[id]
	if !ok {
		if ent, ok2 := c.Model.Entities().Get(id); ok2 {
			local = ent.Clone()
		} else {
			local = NewEntity(id, "")
		}
		c.localEntities[id] = local
	}
	if add {
		local.Flags.Add(flag)
	} else {
		local.Flags.Remove(flag)
	}
}

func (c *Collector) evalParams(list []NamedExpr, target EntityRef, params *ValueMap) *ValueMap {
	out := NewValueMap()
	ctx, _ := c.evalCtx(target, params)
	for _, ne := range list {
		v, err := ne.Value.Eval(ctx)
		if err != nil {
			continue
		}
		out.Set(ne.Key, v)
	}
	return out
}

func (c *Collector) collectOne(eff Effect, target EntityRef, params *ValueMap) {
	switch eff.kind {
	case EffSetProperty:
		c.setProperty(target, eff.property, eff.value, target, params)

	case EffModifyProperty:
		c.modifyProperty(target, eff.property, eff.op, eff.value, target, params)

	case EffSetEntityProperty:
		c.setProperty(eff.target, eff.property, eff.value, target, params)

	case EffModifyEntityProperty:
		c.modifyProperty(eff.target, eff.property, eff.op, eff.value, target, params)

	case EffSetGlobal:
		ctx, _ := c.evalCtx(target, params)
		v, err := eff.value.Eval(ctx)
		if err != nil {
			return
		}
		c.Writes.Push(PendingWrite{Kind: WriteSetGlobal, Key: eff.property, Value: v})

	case EffModifyGlobal:
		ctx, _ := c.evalCtx(target, params)
		v, err := eff.value.Eval(ctx)
		if err != nil {
			return
		}
		operand, ok := v.AsNumber()
		if !ok {
			return
		}
		c.Writes.Push(PendingWrite{Kind: WriteModifyGlobal, Key: eff.property, Op: eff.op, Operand: operand})

	case EffAddFlag:
		id, ok := c.Model.Entities().Resolve(target)
		if !ok {
			return
		}
		c.trackLocalFlag(id, eff.flag, true)
		c.Writes.Push(PendingWrite{Kind: WriteAddFlag, EntityId: id, Flag: eff.flag})

	case EffRemoveFlag:
		id, ok := c.Model.Entities().Resolve(target)
		if !ok {
			return
		}
		c.trackLocalFlag(id, eff.flag, false)
		c.Writes.Push(PendingWrite{Kind: WriteRemoveFlag, EntityId: id, Flag: eff.flag})

	case EffAddEntityFlag:
		id, ok := c.Model.Entities().Resolve(eff.target)
		if !ok {
			return
		}
		c.trackLocalFlag(id, eff.flag, true)
		c.Writes.Push(PendingWrite{Kind: WriteAddFlag, EntityId: id, Flag: eff.flag})

	case EffRemoveEntityFlag:
		id, ok := c.Model.Entities().Resolve(eff.target)
		if !ok {
			return
		}
		c.trackLocalFlag(id, eff.flag, false)
		c.Writes.Push(PendingWrite{Kind: WriteRemoveFlag, EntityId: id, Flag: eff.flag})

	case EffSpawnEntity:
		props := c.evalParams(eff.properties, target, params)
		c.Writes.Push(PendingWrite{Kind: WriteSpawnEntity, EntityKind: eff.entKind, Properties: props})

	case EffDestroyTarget:
		id, ok := c.Model.Entities().Resolve(target)
		if !ok {
			return
		}
		delete(c.localEntities, id)
		c.Writes.Push(PendingWrite{Kind: WriteDestroyEntity, EntityId: id})

	case EffDestroyEntity:
		id, ok := c.Model.Entities().Resolve(eff.target)
		if !ok {
			return
		}
		delete(c.localEntities, id)
		c.Writes.Push(PendingWrite{Kind: WriteDestroyEntity, EntityId: id})

	case EffEmitEvent:
		evaluated := c.evalParams(eff.params, target, params)
		c.Result.EmittedEvents = append(c.Result.EmittedEvents, EmittedEvent{
			Event: eff.event, Target: eff.evTarget, Params: evaluated,
		})

	case EffScheduleEvent:
		ctx, _ := c.evalCtx(target, params)
		v, err := eff.delayTicks.Eval(ctx)
		if err != nil {
			return
		}
		delay, ok := v.AsInt()
		if !ok || delay < 0 {
			return
		}
		evaluated := c.evalParams(eff.params, target, params)
		c.Result.ScheduledEvents = append(c.Result.ScheduledEvents, ScheduledEventWrite{
			Event: eff.event, Target: eff.evTarget, DelayTicks: uint64(delay), Params: evaluated,
		})

	case EffIf:
		ctx, _ := c.evalCtx(target, params)
		v, err := eff.condition.Eval(ctx)
		branch := eff.els
		if err == nil && v.Truthy() {
			branch = eff.then
		}
		c.Collect(branch, target, params)

	case EffSequence:
		c.Collect(eff.effects, target, params)

	case EffForEachEntity:
		for _, ent := range c.Model.Entities().ByKind(eff.forKind) {
			if !c.ownsEntity(ent) {
				continue
			}
			if eff.hasFilter {
				ctx := &EvalContext{
					Entities: c.Model.Entities(), Globals: c.Model.Globals(),
					Params: params, Rng: c.Model.Rng, Target: ent,
				}
				v, err := eff.filter.Eval(ctx)
				if err != nil || !v.Truthy() {
					continue
				}
			}
			c.Collect(eff.effects, RefOf(ent.Id), params)
		}

	case EffRandomChoice:
		weights := make([]float64, len(eff.choices))
		ctx, _ := c.evalCtx(target, params)
		for i, choice := range eff.choices {
			v, err := choice.Weight.Eval(ctx)
			if err != nil {
				weights[i] = 0
				continue
			}
			f, _ := v.AsNumber()
			weights[i] = f
		}
		idx, ok := c.Model.Rng.WeightedIndex(weights)
		if !ok {
			return
		}
		c.Collect(eff.choices[idx].Effects, target, params)

	case EffLog:
		ctx, _ := c.evalCtx(target, params)
		v, err := eff.msg.Eval(ctx)
		if err != nil {
			return
		}
		c.Result.Logs = append(c.Result.Logs, LoggedMessage{Level: eff.level, Message: v.Text()})

	case EffNotify:
		ctx, _ := c.evalCtx(target, params)
		titleVal, err := eff.title.Eval(ctx)
		title := ""
		if err == nil {
			title = titleVal.Text()
		}
		msgVal, err := eff.msg.Eval(ctx)
		message := ""
		if err == nil {
			message = msgVal.Text()
		}
		c.Result.Notifications = append(c.Result.Notifications, Notification{
			Kind: eff.notifyKind, Title: title, Message: message, Target: eff.target,
		})
	}
}

func (c *Collector) setProperty(resolveRef EntityRef, property string, value Expr, evalTarget EntityRef, params *ValueMap) {
	id, ok := c.Model.Entities().Resolve(resolveRef)
	if !ok {
		return
	}
	ctx, _ := c.evalCtx(evalTarget, params)
	v, err := value.Eval(ctx)
	if err != nil {
		return
	}
	c.trackLocalSet(id, property, v)
	c.Writes.Push(PendingWrite{Kind: WriteSetProperty, EntityId: id, Key: property, Value: v})
}

func (c *Collector) modifyProperty(resolveRef EntityRef, property string, op ModifyOp, value Expr, evalTarget EntityRef, params *ValueMap) {
	id, ok := c.Model.Entities().Resolve(resolveRef)
	if !ok {
		return
	}
	ctx, _ := c.evalCtx(evalTarget, params)
	v, err := value.Eval(ctx)
	if err != nil {
		return
	}
	operand, ok := v.AsNumber()
	if !ok {
		return
	}
	ent, _ := c.Model.Entities().Get(id)
	current := c.numberProperty(ent, property)
	next := op.Apply(current, operand)
	c.trackLocalSet(id, property, FloatValue(next))
	c.Writes.Push(PendingWrite{Kind: WriteModifyProperty, EntityId: id, Key: property, Op: op, Operand: operand})
}
