package pulsive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRuntime_S1_SingleTickGlobalModifier grounds scenario S1: a
// condition-less TickHandler increments a global every tick.
func TestRuntime_S1_SingleTickGlobalModifier(t *testing.T) {
	m := NewModel()
	m.SetGlobal("count", FloatValue(0))

	rt := NewRuntime()
	rt.OnTick(TickHandler{
		Id:      "incrementer",
		Effects: []Effect{ModifyGlobal("count", OpAdd, LitFloat(1))},
	})

	for i := 0; i < 3; i++ {
		result := rt.Tick(m)
		Apply(result.Writes, m)
	}

	f, _ := m.GetGlobal("count").AsFloat()
	assert.Equal(t, 3.0, f)
	assert.Equal(t, uint64(3), m.CurrentTick())
}

// TestRuntime_S2_PerKindModifier grounds scenario S2: a TickHandler
// scoped to a TargetKind runs once per surviving entity of that kind.
func TestRuntime_S2_PerKindModifier(t *testing.T) {
	m := NewModel()
	store := m.EntitiesMut()

	a := store.Create("nation")
	a.Set("gold", FloatValue(100))
	a.Set("income", FloatValue(10))
	a.Set("expenses", FloatValue(8))

	b := store.Create("nation")
	b.Set("gold", FloatValue(80))
	b.Set("income", FloatValue(12))
	b.Set("expenses", FloatValue(10))

	rt := NewRuntime()
	rt.OnTick(TickHandler{
		Id:         "income-tick",
		TargetKind: "nation",
		HasTarget:  true,
		Effects: []Effect{
			ModifyProperty("gold", OpAdd, Sub(Property("income"), Property("expenses"))),
		},
	})

	for i := 0; i < 5; i++ {
		result := rt.Tick(m)
		Apply(result.Writes, m)
	}

	aLive, _ := m.Entities().Get(a.Id)
	bLive, _ := m.Entities().Get(b.Id)
	goldA, _ := aLive.GetNumber("gold")
	goldB, _ := bLive.GetNumber("gold")
	assert.Equal(t, 110.0, goldA)
	assert.Equal(t, 90.0, goldB)
}

// TestRuntime_S3_EventDispatch grounds scenario S3: sending an Event
// message whose id matches a registered EventHandler applies that
// handler's effects against the event's target and params.
func TestRuntime_S3_EventDispatch(t *testing.T) {
	m := NewModel()
	ent := m.EntitiesMut().Create("nation")
	ent.Set("gold", FloatValue(100))

	rt := NewRuntime()
	rt.OnEvent(EventHandler{
		EventId: "add_gold",
		Effects: []Effect{ModifyProperty("gold", OpAdd, Param("amount"))},
	})

	msg := EventMsg("add_gold", RefOf(ent.Id), 0).WithParam("amount", FloatValue(50))
	rt.Send(msg)
	result := rt.ProcessQueue(m)
	Apply(result.Writes, m)

	live, _ := m.Entities().Get(ent.Id)
	gold, _ := live.GetNumber("gold")
	assert.Equal(t, 150.0, gold)
}

// TestRuntime_S4_ScheduledEventFiresAtDueTick grounds scenario S4: a
// message scheduled delay_ticks=3 at tick 0 does not dispatch on
// ticks 1-2 and dispatches exactly once on tick 3.
func TestRuntime_S4_ScheduledEventFiresAtDueTick(t *testing.T) {
	m := NewModel()

	var fired int
	rt := NewRuntime()
	rt.OnEvent(EventHandler{
		EventId: "foo",
		Effects: []Effect{SetGlobal("fired", LitInt(1))},
	})

	rt.Schedule(EventMsg("foo", GlobalRef(), 0), 3, 0)

	for tick := uint64(1); tick <= 2; tick++ {
		result := rt.Tick(m)
		Apply(result.Writes, m)
		v := m.GetGlobal("fired")
		assert.True(t, v.IsNull(), "event must not fire before its due tick")
	}

	result := rt.Tick(m)
	Apply(result.Writes, m)
	v, ok := m.GetGlobal("fired").AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(1), v)
	fired++
	assert.Equal(t, 1, fired)
}

func TestRuntime_HandlersRunInPriorityOrderTiesBrokenByRegistration(t *testing.T) {
	m := NewModel()
	m.SetGlobal("log", StringValue(""))

	rt := NewRuntime()
	rt.OnTick(TickHandler{Id: "low", Priority: 0, Effects: []Effect{SetGlobal("log", Concat(Global("log"), LitString("low")))}})
	rt.OnTick(TickHandler{Id: "high", Priority: 10, Effects: []Effect{SetGlobal("log", Concat(Global("log"), LitString("high")))}})

	result := rt.Tick(m)
	Apply(result.Writes, m)

	s, _ := m.GetGlobal("log").AsString()
	assert.Equal(t, "highlow", s)
}

func TestRuntime_ConditionFalseSkipsHandler(t *testing.T) {
	m := NewModel()
	m.SetGlobal("count", FloatValue(0))

	cond := Gt(Global("count"), LitFloat(100))
	rt := NewRuntime()
	rt.OnTick(TickHandler{
		Id:        "gated",
		Condition: &cond,
		Effects:   []Effect{ModifyGlobal("count", OpAdd, LitFloat(1))},
	})

	result := rt.Tick(m)
	Apply(result.Writes, m)

	f, _ := m.GetGlobal("count").AsFloat()
	assert.Equal(t, 0.0, f)
}

func TestRuntime_MessagesEnqueuedMidTickDrainWithinSameTick(t *testing.T) {
	m := NewModel()
	m.SetGlobal("chain", FloatValue(0))

	rt := NewRuntime()
	rt.OnEvent(EventHandler{
		EventId: "step1",
		Effects: []Effect{
			ModifyGlobal("chain", OpAdd, LitFloat(1)),
			EmitEvent("step2", GlobalRef()),
		},
	})
	rt.OnEvent(EventHandler{
		EventId: "step2",
		Effects: []Effect{ModifyGlobal("chain", OpAdd, LitFloat(10))},
	})

	rt.Send(EventMsg("step1", GlobalRef(), 0))
	result := rt.ProcessQueue(m)
	Apply(result.Writes, m)

	// step2 is only redelivered by a Hub once this tick's writes commit,
	// so within a single ProcessQueue call it does not run yet.
	f, _ := m.GetGlobal("chain").AsFloat()
	assert.Equal(t, 1.0, f)
	require.Len(t, result.Result.EmittedEvents, 1)
	assert.Equal(t, DefId("step2"), result.Result.EmittedEvents[0].Event)
}
