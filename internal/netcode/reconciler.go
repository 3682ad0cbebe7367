package netcode

import (
	"fmt"

	"github.com/weng-chenghui/pulsive"
	"github.com/weng-chenghui/pulsive/internal/journal"
)

// errStateNotFound reports that no retained history entry covers the
// requested tick, even approximately.
func errStateNotFound(tick uint64) error {
	return fmt.Errorf("netcode: no retained state at or before tick %d", tick)
}

// Reconciler applies server corrections directly against a
// pulsive.StateHistory, without a Predictor's input-buffer bookkeeping
// — the lighter-weight half of pulsive-netcode's reconciliation.rs, for
// a host that manages its own prediction loop but still wants rollback
// and smoothing primitives.
type Reconciler struct {
	history        pulsive.StateHistory
	lastServerTick uint64
}

// NewReconciler returns a Reconciler backed by history.
func NewReconciler(history pulsive.StateHistory) *Reconciler {
	return &Reconciler{history: history}
}

// ApplyCorrection replaces model's contents with serverState's,
// clearing history before serverTick.
func (r *Reconciler) ApplyCorrection(model *pulsive.Model, serverState *pulsive.Model, serverTick uint64) {
	*model = *serverState.Clone()
	r.history.ClearBefore(serverTick)
	r.lastServerTick = serverTick
}

// Rollback restores model to the state retained at targetTick, falling
// back to the nearest earlier retained state. Returns the tick actually
// restored.
func (r *Reconciler) Rollback(model *pulsive.Model, targetTick uint64) (uint64, error) {
	if state, ok := r.history.GetState(targetTick); ok {
		*model = *state.Clone()
		return targetTick, nil
	}
	if actual, state, ok := r.history.GetNearestBefore(targetTick); ok {
		*model = *state.Clone()
		return actual, nil
	}
	return 0, errStateNotFound(targetTick)
}

// RollbackAndReplay rolls model back to targetTick, then replays inputs
// against runtime in order.
func (r *Reconciler) RollbackAndReplay(model *pulsive.Model, runtime *pulsive.Runtime, targetTick uint64, inputs []pulsive.Msg) error {
	if _, err := r.Rollback(model, targetTick); err != nil {
		return err
	}
	for _, input := range inputs {
		runtime.Send(input)
		result := runtime.ProcessQueue(model)
		pulsive.Apply(result.Writes, model)
	}
	return nil
}

// SaveState records model's current state at tick.
func (r *Reconciler) SaveState(tick uint64, model *pulsive.Model) {
	r.history.SaveState(tick, model)
}

// LastServerTick reports the most recent tick ApplyCorrection recorded.
func (r *Reconciler) LastServerTick() uint64 { return r.lastServerTick }

// History exposes the underlying StateHistory.
func (r *Reconciler) History() pulsive.StateHistory { return r.history }

// Smooth returns an interpolated Model between the two nearest retained
// states bracketing tick, for visually easing a correction over several
// frames instead of snapping — reusing the engine's Float/Int
// linear-interpolation contract (§5) the journal replay layer also
// relies on. Returns (nil, false) if tick isn't bracketed by two
// retained states.
func (r *Reconciler) Smooth(tick uint64) (*pulsive.Model, bool) {
	beforeTick, before, ok := r.history.GetNearestBefore(tick)
	if !ok {
		return nil, false
	}
	afterTick, after, ok := r.history.GetNearestAfter(tick)
	if !ok || afterTick == beforeTick {
		return before, ok
	}
	alpha := float64(tick-beforeTick) / float64(afterTick-beforeTick)
	return journal.InterpolateModels(before, after, alpha), true
}
