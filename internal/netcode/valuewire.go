package netcode

import (
	"strconv"
	"strings"

	"github.com/weng-chenghui/pulsive"
)

// parseEntityRef inverts EntityRef.String() ("entity:%d" / "global" /
// "bydef:%s" / "none"), so a wire-encoded target can round-trip without
// a netcode->storage package dependency for one small parser.
func parseEntityRef(s string) pulsive.EntityRef {
	switch {
	case s == "global":
		return pulsive.GlobalRef()
	case s == "none" || s == "":
		return pulsive.NoneRef()
	case strings.HasPrefix(s, "entity:"):
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "entity:"), 10, 64)
		if err != nil {
			return pulsive.NoneRef()
		}
		return pulsive.RefOf(pulsive.EntityId(n))
	case strings.HasPrefix(s, "bydef:"):
		return pulsive.ByDefRef(pulsive.DefId(strings.TrimPrefix(s, "bydef:")))
	default:
		return pulsive.NoneRef()
	}
}

// valueToWire flattens a Value to something encoding/json can marshal,
// for the small, flat parameter maps a predicted Command/Event carries.
// Nested List/Map values are out of scope: commands sent over the wire
// carry scalar arguments.
func valueToWire(v pulsive.Value) interface{} {
	switch v.Kind() {
	case pulsive.KindBool:
		b, _ := v.AsBool()
		return b
	case pulsive.KindInt:
		i, _ := v.AsInt()
		return i
	case pulsive.KindFloat:
		f, _ := v.AsFloat()
		return f
	case pulsive.KindString:
		s, _ := v.AsString()
		return s
	case pulsive.KindEntityRef:
		ref, _ := v.AsEntityRef()
		return ref.String()
	default:
		return nil
	}
}

func wireToValue(raw interface{}) pulsive.Value {
	switch v := raw.(type) {
	case nil:
		return pulsive.Null()
	case bool:
		return pulsive.BoolValue(v)
	case float64:
		return pulsive.FloatValue(v)
	case string:
		return pulsive.StringValue(v)
	default:
		return pulsive.Null()
	}
}

func paramsToWire(params *pulsive.ValueMap) map[string]interface{} {
	out := make(map[string]interface{})
	if params == nil {
		return out
	}
	for _, k := range params.Keys() {
		v, _ := params.Get(k)
		out[k] = valueToWire(v)
	}
	return out
}

func wireToParams(raw map[string]interface{}) *pulsive.ValueMap {
	m := pulsive.NewValueMap()
	for k, v := range raw {
		m.Set(k, wireToValue(v))
	}
	return m
}
