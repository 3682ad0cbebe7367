package netcode

import (
	"encoding/json"
	"fmt"

	"github.com/weng-chenghui/pulsive"
)

// wireMsg is the JSON shape a predicted Command or Event crosses the
// wire as. Msg itself holds private EntityRef/Value internals and
// can't marshal directly, so this is the flat, host-bridge-style DTO
// netcode owns for its own wire format.
type wireMsg struct {
	Kind     string                 `json:"kind"`
	EventId  string                 `json:"event_id,omitempty"`
	Target   string                 `json:"target,omitempty"`
	Actor    int64                  `json:"actor,omitempty"`
	HasActor bool                   `json:"has_actor,omitempty"`
	Tick     uint64                 `json:"tick"`
	Params   map[string]interface{} `json:"params,omitempty"`
}

func msgKindName(k pulsive.MsgKind) string {
	switch k {
	case pulsive.MsgTick:
		return "tick"
	case pulsive.MsgCommand:
		return "command"
	case pulsive.MsgEvent:
		return "event"
	case pulsive.MsgScheduledEvent:
		return "scheduled_event"
	default:
		return "custom"
	}
}

// EncodeInput renders msg as a Frame carrying a predicted input,
// ready to Send over a Transport.
func EncodeInput(tick uint64, msg pulsive.Msg) (Frame, error) {
	w := wireMsg{
		Kind:     msgKindName(msg.Kind),
		EventId:  string(msg.EventId),
		Target:   msg.Target.String(),
		Actor:    int64(msg.Actor),
		HasActor: msg.HasActor,
		Tick:     msg.Tick,
		Params:   paramsToWire(msg.Params),
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return Frame{}, fmt.Errorf("netcode: encode input: %w", err)
	}
	return Frame{Kind: FrameInput, Tick: tick, Input: raw}, nil
}

// DecodeInput inverts EncodeInput, reconstructing the original Msg
// (Command and Event only — Tick/ScheduledEvent never cross the wire
// as predicted client input).
func DecodeInput(f Frame) (pulsive.Msg, error) {
	var w wireMsg
	if err := json.Unmarshal(f.Input, &w); err != nil {
		return pulsive.Msg{}, fmt.Errorf("netcode: decode input: %w", err)
	}
	target := parseEntityRef(w.Target)
	var msg pulsive.Msg
	switch w.Kind {
	case "command":
		msg = pulsive.CommandMsg(pulsive.DefId(w.EventId), target, pulsive.ActorId(w.Actor), w.Tick)
	default:
		msg = pulsive.EventMsg(pulsive.DefId(w.EventId), target, w.Tick)
	}
	msg.Params = wireToParams(w.Params)
	return msg, nil
}
