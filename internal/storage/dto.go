package storage

import (
	"strconv"
	"strings"

	"github.com/weng-chenghui/pulsive"
)

// valueDTO is the JSON-friendly mirror of pulsive.Value used for
// persistence; pulsive.Value's fields are private by design (§3), so
// storage round-trips through its exported constructors/accessors
// rather than reflecting into it directly.
type valueDTO struct {
	Kind string      `json:"kind"`
	B    bool        `json:"b,omitempty"`
	I    int64       `json:"i,omitempty"`
	F    float64     `json:"f,omitempty"`
	S    string      `json:"s,omitempty"`
	Ref  string      `json:"ref,omitempty"`
	List []valueDTO  `json:"list,omitempty"`
	Map  []kvDTO     `json:"map,omitempty"`
}

type kvDTO struct {
	Key string   `json:"key"`
	Val valueDTO `json:"val"`
}

func valueToDTO(v pulsive.Value) valueDTO {
	switch v.Kind() {
	case pulsive.KindNull:
		return valueDTO{Kind: "null"}
	case pulsive.KindBool:
		b, _ := v.AsBool()
		return valueDTO{Kind: "bool", B: b}
	case pulsive.KindInt:
		i, _ := v.AsInt()
		return valueDTO{Kind: "int", I: i}
	case pulsive.KindFloat:
		f, _ := v.AsFloat()
		return valueDTO{Kind: "float", F: f}
	case pulsive.KindString:
		s, _ := v.AsString()
		return valueDTO{Kind: "string", S: s}
	case pulsive.KindEntityRef:
		ref, _ := v.AsEntityRef()
		return valueDTO{Kind: "entity_ref", Ref: ref.String()}
	case pulsive.KindList:
		items, _ := v.AsList()
		dto := make([]valueDTO, len(items))
		for i, it := range items {
			dto[i] = valueToDTO(it)
		}
		return valueDTO{Kind: "list", List: dto}
	case pulsive.KindMap:
		m, _ := v.AsMap()
		var kvs []kvDTO
		if m != nil {
			for _, k := range m.Keys() {
				val, _ := m.Get(k)
				kvs = append(kvs, kvDTO{Key: k, Val: valueToDTO(val)})
			}
		}
		return valueDTO{Kind: "map", Map: kvs}
	default:
		return valueDTO{Kind: "null"}
	}
}

func dtoToValue(d valueDTO) pulsive.Value {
	switch d.Kind {
	case "bool":
		return pulsive.BoolValue(d.B)
	case "int":
		return pulsive.IntValue(d.I)
	case "float":
		return pulsive.FloatValue(d.F)
	case "string":
		return pulsive.StringValue(d.S)
	case "entity_ref":
		return pulsive.EntityRefValue(parseEntityRef(d.Ref))
	case "list":
		items := make([]pulsive.Value, len(d.List))
		for i, it := range d.List {
			items[i] = dtoToValue(it)
		}
		return pulsive.ListValue(items)
	case "map":
		m := pulsive.NewValueMap()
		for _, kv := range d.Map {
			m.Set(kv.Key, dtoToValue(kv.Val))
		}
		return pulsive.MapValue(m)
	default:
		return pulsive.Null()
	}
}

// parseEntityRef inverts EntityRef.String(), the only public surface an
// EntityRef exposes (its fields are private), so a stored ref can be
// reconstructed without reaching into pulsive internals.
func parseEntityRef(s string) pulsive.EntityRef {
	switch {
	case s == "global":
		return pulsive.GlobalRef()
	case strings.HasPrefix(s, "entity:"):
		n, _ := strconv.ParseUint(strings.TrimPrefix(s, "entity:"), 10, 64)
		return pulsive.RefOf(pulsive.EntityId(n))
	case strings.HasPrefix(s, "bydef:"):
		return pulsive.ByDefRef(pulsive.DefId(strings.TrimPrefix(s, "bydef:")))
	default:
		return pulsive.NoneRef()
	}
}

// entityDTO is the persisted shape of a pulsive.Entity.
type entityDTO struct {
	Id         uint64   `json:"id"`
	Kind       string   `json:"kind"`
	Properties []kvDTO  `json:"properties"`
	Flags      []string `json:"flags"`
}

func entityToDTO(e *pulsive.Entity) entityDTO {
	var props []kvDTO
	for _, k := range e.Properties.Keys() {
		v, _ := e.Properties.Get(k)
		props = append(props, kvDTO{Key: k, Val: valueToDTO(v)})
	}
	var flags []string
	for _, f := range e.Flags.List() {
		flags = append(flags, string(f))
	}
	return entityDTO{Id: uint64(e.Id), Kind: string(e.Kind), Properties: props, Flags: flags}
}

func dtoToEntity(d entityDTO) *pulsive.Entity {
	e := pulsive.NewEntity(pulsive.EntityId(d.Id), pulsive.DefId(d.Kind))
	for _, kv := range d.Properties {
		e.Set(kv.Key, dtoToValue(kv.Val))
	}
	for _, f := range d.Flags {
		e.Flags.Add(pulsive.DefId(f))
	}
	return e
}

// clockDTO is the persisted shape of a pulsive.Clock.
type clockDTO struct {
	Tick        uint64 `json:"tick"`
	Speed       int    `json:"speed"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Day         int    `json:"day"`
	TicksPerDay uint32 `json:"ticks_per_day"`
}

func clockToDTO(c pulsive.Clock) clockDTO {
	return clockDTO{
		Tick:        c.Tick,
		Speed:       int(c.Speed),
		Year:        c.StartDate.Year,
		Month:       c.StartDate.Month,
		Day:         c.StartDate.Day,
		TicksPerDay: c.TicksPerDay,
	}
}

func dtoToClock(d clockDTO) pulsive.Clock {
	return pulsive.Clock{
		Tick:        d.Tick,
		Speed:       pulsive.Speed(d.Speed),
		StartDate:   pulsive.Timestamp{Year: d.Year, Month: d.Month, Day: d.Day},
		TicksPerDay: d.TicksPerDay,
	}
}
