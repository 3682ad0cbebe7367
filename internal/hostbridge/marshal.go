// Package hostbridge marshals engine values to and from a GUI host's
// native dynamic types and exposes the Engine facade a host embeds
// (§6): initialise, CRUD on entities, globals, ticking, commands,
// events, and save/load, each mutating call returning a dictionary
// summarising the resulting UpdateResult.
package hostbridge

import (
	"fmt"

	"github.com/weng-chenghui/pulsive"
)

// valueToHost marshals v to a host-native dynamic value. Contracts
// (§6): lossless for Null/Bool/Int/Float/String; EntityRef marshals as
// its underlying integer id (0 if it no longer resolves); List/Map
// recurse.
func valueToHost(v pulsive.Value, store *pulsive.EntityStore) interface{} {
	switch v.Kind() {
	case pulsive.KindNull:
		return nil
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
		id, ok := store.Resolve(ref)
		if !ok {
			return uint64(0)
		}
		return uint64(id)
	case pulsive.KindList:
		items, _ := v.AsList()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = valueToHost(item, store)
		}
		return out
	case pulsive.KindMap:
		m, _ := v.AsMap()
		out := make(map[string]interface{})
		if m != nil {
			for _, k := range m.Keys() {
				val, _ := m.Get(k)
				out[k] = valueToHost(val, store)
			}
		}
		return out
	default:
		return nil
	}
}

// hostToValue decodes a host-native dynamic value (as produced by a
// JSON/scripting-language bridge: nil, bool, any numeric type,
// string, []interface{}, map[string]interface{}) into a Value.
func hostToValue(raw interface{}) pulsive.Value {
	switch v := raw.(type) {
	case nil:
		return pulsive.Null()
	case bool:
		return pulsive.BoolValue(v)
	case int:
		return pulsive.IntValue(int64(v))
	case int64:
		return pulsive.IntValue(v)
	case uint64:
		return pulsive.IntValue(int64(v))
	case float64:
		return pulsive.FloatValue(v)
	case float32:
		return pulsive.FloatValue(float64(v))
	case string:
		return pulsive.StringValue(v)
	case []interface{}:
		items := make([]pulsive.Value, len(v))
		for i, item := range v {
			items[i] = hostToValue(item)
		}
		return pulsive.ListValue(items)
	case map[string]interface{}:
		m := pulsive.NewValueMap()
		for _, k := range sortedKeys(v) {
			m.Set(k, hostToValue(v[k]))
		}
		return pulsive.MapValue(m)
	default:
		return pulsive.Null()
	}
}

// sortedKeys gives host-native map decoding a deterministic key order,
// since Go map iteration order is randomized and ValueMap's order is
// otherwise meaningful.
func sortedKeys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// valueMapToHost marshals an entire ValueMap to a host-native map,
// preserving key order is impossible in a plain Go map — a host bridge
// reading this back is expected to tolerate that, per §6's "String->Value
// <-> host-native map" contract (only the scalar leaf values round-trip
// losslessly, not map ordering).
func valueMapToHost(m *pulsive.ValueMap, store *pulsive.EntityStore) map[string]interface{} {
	out := make(map[string]interface{})
	if m == nil {
		return out
	}
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out[k] = valueToHost(v, store)
	}
	return out
}

func entityToHost(e *pulsive.Entity, store *pulsive.EntityStore) map[string]interface{} {
	flags := make([]string, 0)
	for _, f := range e.Flags.List() {
		flags = append(flags, string(f))
	}
	return map[string]interface{}{
		"id":         uint64(e.Id),
		"kind":       string(e.Kind),
		"properties": valueMapToHost(e.Properties, store),
		"flags":      flags,
	}
}

func logLevelName(l pulsive.LogLevel) string {
	switch l {
	case pulsive.LogDebug:
		return "debug"
	case pulsive.LogInfo:
		return "info"
	case pulsive.LogWarn:
		return "warn"
	case pulsive.LogError:
		return "error"
	default:
		return fmt.Sprintf("level_%d", int(l))
	}
}
