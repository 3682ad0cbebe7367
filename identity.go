package pulsive

import "fmt"

// EntityId is an opaque identifier minted by an EntityStore. The zero
// value never names a real entity.
type EntityId uint64

func (id EntityId) String() string {
	return fmt.Sprintf("entity:%d", uint64(id))
}

// DefId is a short interned string naming a script-defined concept:
// an entity kind, a flag, an event, or a command.
type DefId string

// ActorId identifies the author of a Msg. The reserved value 0 means
// "system" — no human or script actor originated the message.
type ActorId int64

// SystemActor is the reserved ActorId meaning "system".
const SystemActor ActorId = 0

// EntityRefKind discriminates the variants of an EntityRef.
type EntityRefKind int

const (
	RefNone EntityRefKind = iota
	RefEntity
	RefGlobal
	RefByDef
)

// EntityRef is a tagged reference to an entity, or to the pseudo-target
// "globals", or to "none". Resolution against an EntityStore is total.
type EntityRef struct {
	kind EntityRefKind
	id   EntityId
	def  DefId
}

// NoneRef is the empty EntityRef.
func NoneRef() EntityRef { return EntityRef{kind: RefNone} }

// RefOf builds an EntityRef naming a concrete entity.
func RefOf(id EntityId) EntityRef { return EntityRef{kind: RefEntity, id: id} }

// GlobalRef is the EntityRef naming the globals pseudo-target.
func GlobalRef() EntityRef { return EntityRef{kind: RefGlobal} }

// ByDefRef builds an EntityRef naming the first surviving entity of
// kind def.
func ByDefRef(def DefId) EntityRef { return EntityRef{kind: RefByDef, def: def} }

// Kind reports which variant this ref is.
func (r EntityRef) Kind() EntityRefKind { return r.kind }

// Resolve looks up the concrete EntityId this ref names in store, if
// any. None and Global never resolve to an entity.
func (r EntityRef) Resolve(store *EntityStore) (EntityId, bool) {
	switch r.kind {
	case RefEntity:
		if store == nil {
			return 0, false
		}
		if _, ok := store.Get(r.id); !ok {
			return 0, false
		}
		return r.id, true
	case RefByDef:
		if store == nil {
			return 0, false
		}
		for _, e := range store.ByKind(r.def) {
			return e.Id, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func (r EntityRef) String() string {
	switch r.kind {
	case RefEntity:
		return r.id.String()
	case RefGlobal:
		return "global"
	case RefByDef:
		return fmt.Sprintf("bydef:%s", r.def)
	default:
		return "none"
	}
}
