package netcode

import "github.com/weng-chenghui/pulsive"

// Predictor runs client-side prediction: it applies inputs to a local
// Model immediately, ahead of server confirmation, and records enough
// history to roll back and replay once an authoritative snapshot
// arrives (pulsive-netcode's prediction.rs). It is generic over any
// pulsive.StateHistory implementation, a RingBuffer by default;
// journal.Journal does not implement that interface.
type Predictor struct {
	history       pulsive.StateHistory
	buffer        *InputBuffer
	lastServerTick uint64
	predictedTick  uint64
}

// NewPredictor returns a Predictor backed by history, buffering up to
// inputCapacity unacknowledged inputs (<= 0 uses
// DefaultInputBufferCapacity).
func NewPredictor(history pulsive.StateHistory, inputCapacity int) *Predictor {
	return &Predictor{history: history, buffer: NewInputBuffer(inputCapacity)}
}

// Predict saves model's current state, buffers input for later replay,
// and applies it immediately via runtime so the local player sees an
// instant response.
func (p *Predictor) Predict(model *pulsive.Model, runtime *pulsive.Runtime, input pulsive.Msg) error {
	p.history.SaveState(p.predictedTick, model)
	if err := p.buffer.Push(p.predictedTick, input); err != nil {
		return err
	}
	runtime.Send(input)
	result := runtime.ProcessQueue(model)
	pulsive.Apply(result.Writes, model)
	p.predictedTick++
	return nil
}

// Advance runs one full tick (including the synthetic Tick message)
// with no new local input, for frames where the player provided none.
func (p *Predictor) Advance(model *pulsive.Model, runtime *pulsive.Runtime) {
	p.history.SaveState(p.predictedTick, model)
	result := runtime.Tick(model)
	pulsive.Apply(result.Writes, model)
	p.predictedTick++
}

// Reconcile folds an authoritative snapshot in. If the server is at or
// ahead of our prediction, its state is simply adopted. Otherwise the
// local model rolls back to the server's tick and replays every
// buffered input generated since, returning whether a rollback
// happened.
func (p *Predictor) Reconcile(model *pulsive.Model, runtime *pulsive.Runtime, serverState *pulsive.Model, serverTick uint64) bool {
	p.buffer.Acknowledge(serverTick)
	p.lastServerTick = serverTick

	if serverTick >= p.predictedTick {
		*model = *serverState.Clone()
		p.predictedTick = serverTick
		return false
	}

	*model = *serverState.Clone()
	p.history.ClearBefore(serverTick)

	for _, in := range p.buffer.InputsAfter(serverTick) {
		p.history.SaveState(in.Tick, model)
		runtime.Send(in.Msg)
		result := runtime.ProcessQueue(model)
		pulsive.Apply(result.Writes, model)
	}

	if newest, ok := p.buffer.NewestTick(); ok {
		p.predictedTick = newest + 1
	} else {
		p.predictedTick = serverTick
	}
	return true
}

// PredictedTick reports how far ahead of the server this Predictor's
// local model has run.
func (p *Predictor) PredictedTick() uint64 { return p.predictedTick }

// LastServerTick reports the most recent tick Reconcile was told the
// server had confirmed.
func (p *Predictor) LastServerTick() uint64 { return p.lastServerTick }

// PredictionFrames reports how many ticks of unconfirmed prediction are
// currently outstanding.
func (p *Predictor) PredictionFrames() uint64 {
	if p.predictedTick < p.lastServerTick {
		return 0
	}
	return p.predictedTick - p.lastServerTick
}

// PendingInputs reports how many predicted inputs are still
// unacknowledged.
func (p *Predictor) PendingInputs() int { return p.buffer.Len() }

// Reset discards all history and buffered input, returning the
// Predictor to its initial state.
func (p *Predictor) Reset() {
	p.history.Clear()
	p.buffer.Clear()
	p.lastServerTick = 0
	p.predictedTick = 0
}
