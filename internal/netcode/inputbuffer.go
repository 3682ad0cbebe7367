package netcode

import (
	"fmt"

	"github.com/weng-chenghui/pulsive"
)

// BufferedInput pairs a predicted Msg with the tick it was generated at.
type BufferedInput struct {
	Tick uint64
	Msg  pulsive.Msg
}

// DefaultInputBufferCapacity is the input buffer size a client uses
// when it has no stronger opinion (pulsive-netcode's input_buffer.rs
// default).
const DefaultInputBufferCapacity = 256

// ErrInputBufferFull reports that InputBuffer.Push was called while
// already at capacity: the caller is predicting faster than the server
// is acknowledging and must reconcile before predicting further.
var ErrInputBufferFull = fmt.Errorf("netcode: input buffer full")

// InputBuffer holds inputs sent to the server but not yet acknowledged,
// used for client-side prediction and reconciliation (oldest first).
type InputBuffer struct {
	inputs               []BufferedInput
	capacity             int
	lastAcknowledgedTick uint64
}

// NewInputBuffer returns an empty InputBuffer. capacity <= 0 uses
// DefaultInputBufferCapacity.
func NewInputBuffer(capacity int) *InputBuffer {
	if capacity <= 0 {
		capacity = DefaultInputBufferCapacity
	}
	return &InputBuffer{capacity: capacity}
}

// Push records a predicted input at tick. Returns ErrInputBufferFull if
// the buffer is already at capacity.
func (b *InputBuffer) Push(tick uint64, msg pulsive.Msg) error {
	if len(b.inputs) >= b.capacity {
		return ErrInputBufferFull
	}
	b.inputs = append(b.inputs, BufferedInput{Tick: tick, Msg: msg})
	return nil
}

// Acknowledge records that the server has confirmed state through tick,
// dropping every buffered input at or before it.
func (b *InputBuffer) Acknowledge(tick uint64) {
	b.lastAcknowledgedTick = tick
	i := 0
	for i < len(b.inputs) && b.inputs[i].Tick <= tick {
		i++
	}
	b.inputs = b.inputs[i:]
}

// InputsAfter returns every buffered input generated strictly after
// tick, oldest first — what a Reconciler replays once the local state
// has been rolled back to the server's authoritative snapshot.
func (b *InputBuffer) InputsAfter(tick uint64) []BufferedInput {
	var out []BufferedInput
	for _, in := range b.inputs {
		if in.Tick > tick {
			out = append(out, in)
		}
	}
	return out
}

// OldestUnacknowledgedTick reports the tick of the oldest buffered
// input, if any.
func (b *InputBuffer) OldestUnacknowledgedTick() (uint64, bool) {
	if len(b.inputs) == 0 {
		return 0, false
	}
	return b.inputs[0].Tick, true
}

// NewestTick reports the tick of the most recently buffered input, if
// any.
func (b *InputBuffer) NewestTick() (uint64, bool) {
	if len(b.inputs) == 0 {
		return 0, false
	}
	return b.inputs[len(b.inputs)-1].Tick, true
}

// LastAcknowledgedTick reports the tick most recently passed to
// Acknowledge.
func (b *InputBuffer) LastAcknowledgedTick() uint64 { return b.lastAcknowledgedTick }

// Len reports how many inputs are currently buffered.
func (b *InputBuffer) Len() int { return len(b.inputs) }

// IsFull reports whether the buffer has reached capacity.
func (b *InputBuffer) IsFull() bool { return len(b.inputs) >= b.capacity }

// Capacity reports the buffer's maximum size.
func (b *InputBuffer) Capacity() int { return b.capacity }

// Clear discards every buffered input and resets acknowledgement.
func (b *InputBuffer) Clear() {
	b.inputs = nil
	b.lastAcknowledgedTick = 0
}
