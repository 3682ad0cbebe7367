// Package storage persists a Model to disk through a buntdb-backed
// key-value Store, matching the engine's external storage contract
// (§6): save/load/delete by entity, bulk and by-kind reads, and
// whole-Clock/Globals/Rng/Model save-load, every operation wrapped in
// a single buntdb transaction.
package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"

	"github.com/weng-chenghui/pulsive"
)

const entityKindIndex = "entity_kind"

const (
	keyGlobals = "model:globals"
	keyClock   = "model:clock"
	keyRng     = "model:rng"
)

// Store wraps a buntdb database file holding one simulation's state.
type Store struct {
	db *buntdb.DB
}

// Open opens (creating if absent) the buntdb file at path and installs
// the secondary index entities_by_kind relies on.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "storage: open %s", path)
	}
	if err := db.CreateIndex(entityKindIndex, "entity:*", buntdb.IndexJSON("kind")); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "storage: create index")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error { return s.db.Close() }

func entityKey(id pulsive.EntityId) string {
	return fmt.Sprintf("entity:%d", uint64(id))
}

// SaveEntity persists a single entity.
func (s *Store) SaveEntity(e *pulsive.Entity) error {
	data, err := json.Marshal(entityToDTO(e))
	if err != nil {
		return fmt.Errorf("storage: marshal entity: %w", err)
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(entityKey(e.Id), string(data), nil)
		return err
	})
}

// LoadEntity reads a single entity by id.
func (s *Store) LoadEntity(id pulsive.EntityId) (*pulsive.Entity, error) {
	var ent *pulsive.Entity
	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(entityKey(id))
		if err == buntdb.ErrNotFound {
			return pulsive.ErrEntityNotFound
		}
		if err != nil {
			return err
		}
		var dto entityDTO
		if err := json.Unmarshal([]byte(val), &dto); err != nil {
			return fmt.Errorf("storage: unmarshal entity %d: %w", id, err)
		}
		ent = dtoToEntity(dto)
		return nil
	})
	return ent, err
}

// DeleteEntity removes a single entity by id.
func (s *Store) DeleteEntity(id pulsive.EntityId) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(entityKey(id))
		if err == buntdb.ErrNotFound {
			return pulsive.ErrEntityNotFound
		}
		return err
	})
}

// LoadAllEntities reads every stored entity.
func (s *Store) LoadAllEntities() ([]*pulsive.Entity, error) {
	var out []*pulsive.Entity
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("entity:*", func(key, value string) bool {
			var dto entityDTO
			if json.Unmarshal([]byte(value), &dto) == nil {
				out = append(out, dtoToEntity(dto))
			}
			return true
		})
	})
	return out, err
}

// EntitiesByKind reads every stored entity of kind, using the
// entity_kind buntdb.IndexJSON secondary index rather than a full scan.
func (s *Store) EntitiesByKind(kind pulsive.DefId) ([]*pulsive.Entity, error) {
	pivot := fmt.Sprintf(`{"kind":%q}`, string(kind))
	var out []*pulsive.Entity
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendEqual(entityKindIndex, pivot, func(key, value string) bool {
			var dto entityDTO
			if json.Unmarshal([]byte(value), &dto) == nil {
				out = append(out, dtoToEntity(dto))
			}
			return true
		})
	})
	return out, err
}

// CountEntitiesByKind counts stored entities of kind without decoding
// their full payload.
func (s *Store) CountEntitiesByKind(kind pulsive.DefId) (int, error) {
	pivot := fmt.Sprintf(`{"kind":%q}`, string(kind))
	count := 0
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendEqual(entityKindIndex, pivot, func(key, value string) bool {
			count++
			return true
		})
	})
	return count, err
}

// EntitiesWithFlag reads every stored entity carrying flag. Flags have
// no buntdb secondary index (array containment isn't one of IndexJSON's
// comparators), so this is a full scan filtered in Go.
func (s *Store) EntitiesWithFlag(flag pulsive.DefId) ([]*pulsive.Entity, error) {
	var out []*pulsive.Entity
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("entity:*", func(key, value string) bool {
			var dto entityDTO
			if json.Unmarshal([]byte(value), &dto) != nil {
				return true
			}
			for _, f := range dto.Flags {
				if f == string(flag) {
					out = append(out, dtoToEntity(dto))
					break
				}
			}
			return true
		})
	})
	return out, err
}

// SaveGlobals persists the whole globals map under one key, preserving
// insertion order.
func (s *Store) SaveGlobals(m *pulsive.ValueMap) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		return setGlobalsTx(tx, m)
	})
}

// LoadGlobals reads back a previously saved globals map. Returns an
// empty map if none was ever saved.
func (s *Store) LoadGlobals() (*pulsive.ValueMap, error) {
	var out *pulsive.ValueMap
	err := s.db.View(func(tx *buntdb.Tx) error {
		kvs, err := getGlobalsTx(tx)
		if err != nil {
			return err
		}
		out = pulsive.NewValueMap()
		for _, kv := range kvs {
			out.Set(kv.Key, dtoToValue(kv.Val))
		}
		return nil
	})
	return out, err
}

func setGlobalsTx(tx *buntdb.Tx, m *pulsive.ValueMap) error {
	var kvs []kvDTO
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		kvs = append(kvs, kvDTO{Key: k, Val: valueToDTO(v)})
	}
	data, err := json.Marshal(kvs)
	if err != nil {
		return fmt.Errorf("storage: marshal globals: %w", err)
	}
	_, _, err = tx.Set(keyGlobals, string(data), nil)
	return err
}

func getGlobalsTx(tx *buntdb.Tx) ([]kvDTO, error) {
	val, err := tx.Get(keyGlobals)
	if err == buntdb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var kvs []kvDTO
	if err := json.Unmarshal([]byte(val), &kvs); err != nil {
		return nil, fmt.Errorf("storage: unmarshal globals: %w", err)
	}
	return kvs, nil
}

// SaveClock persists the simulation clock.
func (s *Store) SaveClock(c pulsive.Clock) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		return setClockTx(tx, c)
	})
}

// LoadClock reads back a previously saved clock, or a fresh paused
// clock if none was ever saved.
func (s *Store) LoadClock() (pulsive.Clock, error) {
	var out pulsive.Clock
	err := s.db.View(func(tx *buntdb.Tx) error {
		c, err := getClockTx(tx)
		out = c
		return err
	})
	return out, err
}

func setClockTx(tx *buntdb.Tx, c pulsive.Clock) error {
	data, err := json.Marshal(clockToDTO(c))
	if err != nil {
		return fmt.Errorf("storage: marshal clock: %w", err)
	}
	_, _, err = tx.Set(keyClock, string(data), nil)
	return err
}

func getClockTx(tx *buntdb.Tx) (pulsive.Clock, error) {
	val, err := tx.Get(keyClock)
	if err == buntdb.ErrNotFound {
		return pulsive.NewClock(), nil
	}
	if err != nil {
		return pulsive.Clock{}, err
	}
	var dto clockDTO
	if err := json.Unmarshal([]byte(val), &dto); err != nil {
		return pulsive.Clock{}, fmt.Errorf("storage: unmarshal clock: %w", err)
	}
	return dtoToClock(dto), nil
}

// SaveRng persists the RNG's raw state.
func (s *Store) SaveRng(r *pulsive.Rng) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		return setRngTx(tx, r)
	})
}

// LoadRng reads back a previously saved RNG, or a freshly seeded one
// (seed 1) if none was ever saved.
func (s *Store) LoadRng() (*pulsive.Rng, error) {
	var out *pulsive.Rng
	err := s.db.View(func(tx *buntdb.Tx) error {
		r, err := getRngTx(tx)
		out = r
		return err
	})
	return out, err
}

func setRngTx(tx *buntdb.Tx, r *pulsive.Rng) error {
	data, err := json.Marshal(struct {
		State uint64 `json:"state"`
	}{State: r.State()})
	if err != nil {
		return fmt.Errorf("storage: marshal rng: %w", err)
	}
	_, _, err = tx.Set(keyRng, string(data), nil)
	return err
}

func getRngTx(tx *buntdb.Tx) (*pulsive.Rng, error) {
	val, err := tx.Get(keyRng)
	if err == buntdb.ErrNotFound {
		return pulsive.NewRng(1), nil
	}
	if err != nil {
		return nil, err
	}
	var dto struct {
		State uint64 `json:"state"`
	}
	if err := json.Unmarshal([]byte(val), &dto); err != nil {
		return nil, fmt.Errorf("storage: unmarshal rng: %w", err)
	}
	return pulsive.RngFromState(dto.State), nil
}

// SaveModel marshals the full Model — every entity, globals, clock, and
// rng state — in one buntdb transaction, replacing whatever was
// previously stored.
func (s *Store) SaveModel(m *pulsive.Model) error {
	if err := s.saveModelTx(m); err != nil {
		return errors.Wrap(err, "storage: save model")
	}
	return nil
}

func (s *Store) saveModelTx(m *pulsive.Model) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var keys []string
		if err := tx.AscendKeys("entity:*", func(key, value string) bool {
			keys = append(keys, key)
			return true
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if _, err := tx.Delete(k); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		for _, id := range m.Entities().Ids() {
			ent, ok := m.Entities().Get(id)
			if !ok {
				continue
			}
			data, err := json.Marshal(entityToDTO(ent))
			if err != nil {
				return fmt.Errorf("storage: marshal entity: %w", err)
			}
			if _, _, err := tx.Set(entityKey(ent.Id), string(data), nil); err != nil {
				return err
			}
		}
		if err := setGlobalsTx(tx, m.Globals()); err != nil {
			return err
		}
		if err := setClockTx(tx, m.Time); err != nil {
			return err
		}
		return setRngTx(tx, m.Rng)
	})
}

// LoadModel rebuilds a Model from a previously saved SaveModel call.
//
// Entities are replayed through EntityStore.Create in ascending
// original-id order, since EntityStore exposes no "insert at id"
// primitive: this reproduces the original ids exactly when entity
// creation had no gaps (nothing was ever deleted) before the save. A
// model saved after deleting an entity will load with renumbered ids
// from that point on.
func (s *Store) LoadModel() (*pulsive.Model, error) {
	model := pulsive.NewModelWithSeed(1)
	err := s.db.View(func(tx *buntdb.Tx) error {
		type stored struct {
			id  uint64
			dto entityDTO
		}
		var all []stored
		if err := tx.AscendKeys("entity:*", func(key, value string) bool {
			var dto entityDTO
			if json.Unmarshal([]byte(value), &dto) == nil {
				all = append(all, stored{id: dto.Id, dto: dto})
			}
			return true
		}); err != nil {
			return err
		}
		sort.Slice(all, func(i, j int) bool { return all[i].id < all[j].id })

		store := model.EntitiesMut()
		for _, s := range all {
			ent := store.Create(pulsive.DefId(s.dto.Kind))
			for _, kv := range s.dto.Properties {
				ent.Set(kv.Key, dtoToValue(kv.Val))
			}
			for _, f := range s.dto.Flags {
				ent.Flags.Add(pulsive.DefId(f))
			}
		}

		kvs, err := getGlobalsTx(tx)
		if err != nil {
			return err
		}
		globals := model.GlobalsMut()
		for _, kv := range kvs {
			globals.Set(kv.Key, dtoToValue(kv.Val))
		}

		clock, err := getClockTx(tx)
		if err != nil {
			return err
		}
		model.Time = clock

		rng, err := getRngTx(tx)
		if err != nil {
			return err
		}
		model.Rng = rng
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "storage: load model")
	}
	return model, nil
}
