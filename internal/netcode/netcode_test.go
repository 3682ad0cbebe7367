package netcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weng-chenghui/pulsive"
)

func TestInputBuffer_PushAndAcknowledge(t *testing.T) {
	b := NewInputBuffer(10)
	require.NoError(t, b.Push(1, pulsive.TickMsg(1)))
	require.NoError(t, b.Push(2, pulsive.TickMsg(2)))
	require.NoError(t, b.Push(3, pulsive.TickMsg(3)))
	assert.Equal(t, 3, b.Len())

	oldest, ok := b.OldestUnacknowledgedTick()
	require.True(t, ok)
	assert.Equal(t, uint64(1), oldest)

	b.Acknowledge(2)
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, uint64(2), b.LastAcknowledgedTick())
	oldest, ok = b.OldestUnacknowledgedTick()
	require.True(t, ok)
	assert.Equal(t, uint64(3), oldest)
}

func TestInputBuffer_FullReturnsError(t *testing.T) {
	b := NewInputBuffer(2)
	require.NoError(t, b.Push(1, pulsive.TickMsg(1)))
	require.NoError(t, b.Push(2, pulsive.TickMsg(2)))
	assert.ErrorIs(t, b.Push(3, pulsive.TickMsg(3)), ErrInputBufferFull)
}

func TestInputBuffer_InputsAfter(t *testing.T) {
	b := NewInputBuffer(10)
	for tick := uint64(1); tick <= 4; tick++ {
		require.NoError(t, b.Push(tick, pulsive.TickMsg(tick)))
	}
	after := b.InputsAfter(2)
	require.Len(t, after, 2)
	assert.Equal(t, uint64(3), after[0].Tick)
	assert.Equal(t, uint64(4), after[1].Tick)
}

func addGoldHandler() pulsive.EventHandler {
	return pulsive.EventHandler{
		EventId: "add_gold",
		Effects: []pulsive.Effect{pulsive.ModifyProperty("gold", pulsive.OpAdd, pulsive.LitFloat(10))},
	}
}

func TestPredictor_PredictAppliesLocallyAndBuffers(t *testing.T) {
	model := pulsive.NewModel()
	ent := model.EntitiesMut().Create("nation")

	runtime := pulsive.NewRuntime()
	runtime.OnEvent(addGoldHandler())

	p := NewPredictor(pulsive.NewRingBuffer(16), 0)
	msg := pulsive.CommandMsg("add_gold", pulsive.RefOf(ent.Id), pulsive.ActorId(1), model.CurrentTick())

	require.NoError(t, p.Predict(model, runtime, msg))

	got, _ := model.Entities().Get(ent.Id)
	gold, _ := got.GetNumber("gold")
	assert.Equal(t, 10.0, gold)
	assert.Equal(t, 1, p.PendingInputs())
	assert.Equal(t, uint64(1), p.PredictedTick())
}

func TestPredictor_ReconcileServerAhead(t *testing.T) {
	model := pulsive.NewModel()
	runtime := pulsive.NewRuntime()
	p := NewPredictor(pulsive.NewRingBuffer(16), 0)

	for i := 0; i < 3; i++ {
		p.Advance(model, runtime)
	}
	assert.Equal(t, uint64(3), p.PredictedTick())

	serverState := pulsive.NewModel()
	reconciled := p.Reconcile(model, runtime, serverState, 5)
	assert.False(t, reconciled)
	assert.Equal(t, uint64(5), p.PredictedTick())
}

func TestPredictor_ReconcileReplaysBufferedInputs(t *testing.T) {
	model := pulsive.NewModel()
	ent := model.EntitiesMut().Create("nation")
	baseline := model.Clone()

	runtime := pulsive.NewRuntime()
	runtime.OnEvent(addGoldHandler())

	p := NewPredictor(pulsive.NewRingBuffer(16), 0)

	msg := pulsive.CommandMsg("add_gold", pulsive.RefOf(ent.Id), pulsive.ActorId(1), model.CurrentTick())
	require.NoError(t, p.Predict(model, runtime, msg)) // buffered at tick 0, local gold -> 10
	require.NoError(t, p.Predict(model, runtime, msg)) // buffered at tick 1, local gold -> 20

	// The server authoritatively confirms only the first command (tick 0).
	serverState := baseline.Clone()
	serverEnt, _ := serverState.Entities().Get(ent.Id)
	serverEnt.Set("gold", pulsive.FloatValue(10))

	reconciled := p.Reconcile(model, runtime, serverState, 0)
	assert.True(t, reconciled)

	got, _ := model.Entities().Get(ent.Id)
	gold, _ := got.GetNumber("gold")
	assert.Equal(t, 20.0, gold, "server's 10 plus the replayed tick-1 input (the only buffered entry strictly after tick 0)")
}

func TestReconciler_SaveStateAndRollback(t *testing.T) {
	history := pulsive.NewRingBuffer(16)
	r := NewReconciler(history)

	model := pulsive.NewModel()
	model.SetGlobal("value", pulsive.IntValue(100))
	r.SaveState(5, model)

	model.SetGlobal("value", pulsive.IntValue(200))
	r.SaveState(10, model)

	target := pulsive.NewModel()
	actual, err := r.Rollback(target, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), actual)
	assert.Equal(t, int64(100), mustInt(t, target.GetGlobal("value")))
}

func TestReconciler_ApplyCorrectionClearsEarlierHistory(t *testing.T) {
	history := pulsive.NewRingBuffer(16)
	r := NewReconciler(history)

	model := pulsive.NewModel()
	r.SaveState(1, model)
	r.SaveState(2, model)

	serverState := pulsive.NewModel()
	serverState.SetGlobal("corrected", pulsive.BoolValue(true))
	r.ApplyCorrection(model, serverState, 2)

	assert.Equal(t, uint64(2), r.LastServerTick())
	v, _ := model.GetGlobal("corrected").AsBool()
	assert.True(t, v)
	_, ok := history.GetState(1)
	assert.False(t, ok, "history before the corrected tick must be cleared")
}

func TestEncodeDecodeInput_RoundTrips(t *testing.T) {
	msg := pulsive.CommandMsg("add_gold", pulsive.RefOf(pulsive.EntityId(7)), pulsive.ActorId(3), 42)
	msg = msg.WithParam("amount", pulsive.FloatValue(5))

	frame, err := EncodeInput(42, msg)
	require.NoError(t, err)
	assert.Equal(t, FrameInput, frame.Kind)
	assert.Equal(t, uint64(42), frame.Tick)

	decoded, err := DecodeInput(frame)
	require.NoError(t, err)
	assert.Equal(t, pulsive.MsgCommand, decoded.Kind)
	assert.Equal(t, pulsive.DefId("add_gold"), decoded.EventId)
	assert.Equal(t, pulsive.ActorId(3), decoded.Actor)
	amount, _ := decoded.Param("amount").AsFloat()
	assert.Equal(t, 5.0, amount)

	resolvedId, ok := decoded.Target.Resolve(nil)
	assert.False(t, ok, "Resolve needs a live store; String-round-trip preserves the id only via Target.String()")
	_ = resolvedId
	assert.Equal(t, "entity:7", decoded.Target.String())
}

func mustInt(t *testing.T, v pulsive.Value) int64 {
	t.Helper()
	i, ok := v.AsInt()
	require.True(t, ok)
	return i
}
