package pulsive

// MsgKind discriminates the kind of a Msg (§3).
type MsgKind int

const (
	MsgTick MsgKind = iota
	MsgCommand
	MsgEvent
	MsgScheduledEvent
	MsgEntitySpawned
	MsgEntityDestroyed
	MsgPropertyChanged
	MsgFlagAdded
	MsgFlagRemoved
	MsgCustom
)

// Msg is one message flowing through a Runtime's queue (§3).
type Msg struct {
	Kind      MsgKind
	CustomDef DefId // set only when Kind == MsgCustom
	EventId   DefId
	HasEvent  bool
	Target    EntityRef
	Params    *ValueMap
	Actor     ActorId
	HasActor  bool
	Tick      uint64
}

// NewMsg returns a bare message of the given kind with no target and
// an empty parameter map.
func NewMsg(kind MsgKind) Msg {
	return Msg{Kind: kind, Target: NoneRef(), Params: NewValueMap()}
}

// TickMsg builds the synthetic Tick message for a given tick.
func TickMsg(tick uint64) Msg {
	m := NewMsg(MsgTick)
	m.Tick = tick
	return m
}

// EventMsg builds an Event message.
func EventMsg(eventId DefId, target EntityRef, tick uint64) Msg {
	m := NewMsg(MsgEvent)
	m.EventId = eventId
	m.HasEvent = true
	m.Target = target
	m.Tick = tick
	return m
}

// CommandMsg builds a Command message, always attributed to an actor.
func CommandMsg(actionId DefId, target EntityRef, actor ActorId, tick uint64) Msg {
	m := NewMsg(MsgCommand)
	m.EventId = actionId
	m.HasEvent = true
	m.Target = target
	m.Actor = actor
	m.HasActor = true
	m.Tick = tick
	return m
}

// ScheduledEventMsg builds a ScheduledEvent message, as produced when a
// scheduled delay elapses.
func ScheduledEventMsg(eventId DefId, target EntityRef, tick uint64) Msg {
	m := NewMsg(MsgScheduledEvent)
	m.EventId = eventId
	m.HasEvent = true
	m.Target = target
	m.Tick = tick
	return m
}

// WithParam returns a copy of m with key set in its parameter map.
func (m Msg) WithParam(key string, v Value) Msg {
	params := m.Params.Clone()
	params.Set(key, v)
	m.Params = params
	return m
}

// WithActor returns a copy of m attributed to actor.
func (m Msg) WithActor(actor ActorId) Msg {
	m.Actor = actor
	m.HasActor = true
	return m
}

// Param reads a parameter, returning Null if absent.
func (m Msg) Param(key string) Value {
	if m.Params == nil {
		return Null()
	}
	if v, ok := m.Params.Get(key); ok {
		return v
	}
	return Null()
}

// EventHandler reacts to Event, ScheduledEvent, and Command messages
// whose EventId matches (§3).
type EventHandler struct {
	EventId   DefId
	Condition *Expr // nil means "always true"
	Effects   []Effect
	Priority  int32
	seq       int // registration order, for stable priority ties
}

// TickHandler runs once per Tick message, either globally or once per
// surviving entity of TargetKind (§3).
type TickHandler struct {
	Id         string
	Condition  *Expr
	TargetKind DefId
	HasTarget  bool
	Effects    []Effect
	Priority   int32
	seq        int
}
