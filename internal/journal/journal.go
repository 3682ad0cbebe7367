// Package journal records an ordered log of messages, tick boundaries,
// snapshots, and metadata, and provides replay and export over that
// log (§3, §6). A Journal is bounded by its entry and snapshot
// retention limits and does not implement pulsive.StateHistory; the
// RingBuffer in history.go is the StateHistory implementation.
package journal

import (
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/weng-chenghui/pulsive"
)

// EntryKind discriminates the variants of a journal Entry.
type EntryKind int

const (
	EntryMessage EntryKind = iota
	EntryTickBoundary
	EntrySnapshot
	EntryMetadata
)

// Entry is one record in the journal. Which fields are meaningful
// depends on Kind, mirroring the tagged-union shape spec.md §3 names:
// Message{tick,seq,msg}, TickBoundary{tick}, Snapshot{tick,snapshot_id},
// Metadata{tick,key,value}.
type Entry struct {
	Kind       EntryKind
	Tick       uint64
	Seq        int
	Msg        pulsive.Msg
	SnapshotId uuid.UUID
	Key        string
	Value      string
}

// snapshotRecord is what the snapshot LRU cache holds per retained id.
type snapshotRecord struct {
	Tick  uint64
	Model *pulsive.Model
}

// DefaultMaxEntries and DefaultMaxSnapshots bound a Journal's retention
// when NewJournal is given zero for either.
const (
	DefaultMaxEntries   = 10000
	DefaultMaxSnapshots = 64
)

// Journal is an ordered, append-only log of Entry values plus a
// bounded cache of the Model snapshots those entries reference.
// Retention is configurable: entries beyond MaxEntries are dropped
// from the front: snapshots beyond MaxSnapshots are evicted
// least-recently-used by the backing LRU cache.
type Journal struct {
	entries     []Entry
	snapshots   *lru.Cache[uuid.UUID, snapshotRecord]
	snapshotIds []uuid.UUID

	maxEntries  int
	seq         int
	currentTick uint64
	haveTick    bool
}

// NewJournal returns an empty Journal. maxEntries/maxSnapshots of 0 or
// less fall back to DefaultMaxEntries/DefaultMaxSnapshots.
func NewJournal(maxEntries, maxSnapshots int) (*Journal, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxSnapshots <= 0 {
		maxSnapshots = DefaultMaxSnapshots
	}
	cache, err := lru.New[uuid.UUID, snapshotRecord](maxSnapshots)
	if err != nil {
		return nil, fmt.Errorf("journal: new snapshot cache: %w", err)
	}
	return &Journal{snapshots: cache, maxEntries: maxEntries}, nil
}

func (j *Journal) append(e Entry) {
	j.entries = append(j.entries, e)
	if len(j.entries) > j.maxEntries {
		j.entries = j.entries[len(j.entries)-j.maxEntries:]
	}
}

// onTick resets Seq to 0 and records a TickBoundary entry whenever tick
// advances past the journal's last observed tick (§3: "seq resets to 0
// at each new tick boundary").
func (j *Journal) onTick(tick uint64) {
	if j.haveTick && tick == j.currentTick {
		return
	}
	j.currentTick = tick
	j.haveTick = true
	j.seq = 0
	j.append(Entry{Kind: EntryTickBoundary, Tick: tick})
}

// RecordMessage appends a Message entry for msg at tick, assigning it
// the next sequence number within that tick.
func (j *Journal) RecordMessage(tick uint64, msg pulsive.Msg) {
	j.onTick(tick)
	j.append(Entry{Kind: EntryMessage, Tick: tick, Seq: j.seq, Msg: msg})
	j.seq++
}

// RecordMetadata appends a free-form key/value Metadata entry at tick.
func (j *Journal) RecordMetadata(tick uint64, key, value string) {
	j.onTick(tick)
	j.append(Entry{Kind: EntryMetadata, Tick: tick, Key: key, Value: value})
}

// RecordSnapshot clones model, retains it under a fresh uuid in the
// snapshot cache, and appends a Snapshot entry referencing that id.
func (j *Journal) RecordSnapshot(tick uint64, model *pulsive.Model) uuid.UUID {
	j.onTick(tick)
	id := uuid.New()
	j.snapshots.Add(id, snapshotRecord{Tick: tick, Model: model.Clone()})
	j.snapshotIds = append(j.snapshotIds, id)
	j.append(Entry{Kind: EntrySnapshot, Tick: tick, SnapshotId: id})
	return id
}

// GetSnapshot returns the retained Model for id, if it hasn't been
// evicted by the LRU cache's capacity bound.
func (j *Journal) GetSnapshot(id uuid.UUID) (*pulsive.Model, bool) {
	rec, ok := j.snapshots.Get(id)
	if !ok {
		return nil, false
	}
	return rec.Model, true
}

// Entries returns every retained entry, oldest first.
func (j *Journal) Entries() []Entry {
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Len reports the number of retained entries.
func (j *Journal) Len() int { return len(j.entries) }

// SnapshotCount reports how many snapshots are currently retained
// (bounded by the LRU cache's capacity, so this can be less than the
// number of Snapshot entries ever recorded).
func (j *Journal) SnapshotCount() int { return j.snapshots.Len() }

// TickRange reports the lowest and highest tick any retained entry
// names, or (0, 0, false) if the journal is empty.
func (j *Journal) TickRange() (uint64, uint64, bool) {
	if len(j.entries) == 0 {
		return 0, 0, false
	}
	lo, hi := j.entries[0].Tick, j.entries[0].Tick
	for _, e := range j.entries {
		if e.Tick < lo {
			lo = e.Tick
		}
		if e.Tick > hi {
			hi = e.Tick
		}
	}
	return lo, hi, true
}
