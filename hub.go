package pulsive

import (
	"runtime"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// MaxCores reports how many worker cores this process could usefully
// run, mirroring the teacher's shard-count clamp.
func MaxCores() int { return runtime.NumCPU() }

// ResolutionPolicy decides how a Hub handles conflicts its
// ConflictReport found (§4.5, §9 open question 1).
type ResolutionPolicy int

const (
	// Abort refuses to commit the tick at all; the caller must retry
	// or intervene. Tick returns UnresolvedConflicts.
	Abort ResolutionPolicy = iota
	// LastWriteWins commits every write in ascending CoreId order, so
	// for a conflicted target the highest-CoreId write lands last.
	LastWriteWins
	// PreferLowestCore discards every conflicting write except those
	// from the lowest CoreId touching that target, so one core's
	// intent survives untouched rather than being partially overwritten.
	PreferLowestCore
)

// HubConfig configures a Hub's execution model.
type HubConfig struct {
	// CoreCount is the number of worker cores per group. Clamped to
	// [1, MaxCores()].
	CoreCount int
	// GlobalSeed is the base seed every Core's per-tick RNG derives
	// from via hashSeed(GlobalSeed, coreId, tick) (§4.6).
	GlobalSeed uint64
	// Resolution is the policy applied when DetectConflicts finds
	// write-write conflicts across cores in the same tick.
	Resolution ResolutionPolicy
	// ConflictFilter overrides DefaultConflictFilter when set.
	ConflictFilter func(WriteTarget) bool
}

func resolutionName(p ResolutionPolicy) string {
	switch p {
	case Abort:
		return "abort"
	case LastWriteWins:
		return "last_write_wins"
	default:
		return "prefer_lowest_core"
	}
}

// WithCoreCount clamps n to [1, MaxCores()] and returns it.
func WithCoreCount(n int) int {
	if n < 1 {
		return 1
	}
	if max := MaxCores(); n > max {
		return max
	}
	return n
}

// NewHubConfig returns a single-core HubConfig with the given seed,
// defaulting resolution to PreferLowestCore (§9 open question 1).
func NewHubConfig(seed uint64) HubConfig {
	return HubConfig{CoreCount: 1, GlobalSeed: seed, Resolution: PreferLowestCore}
}

// hubMetrics holds the optional Prometheus instrumentation a Hub
// reports through, following cklxx-elephant.ai's
// NewContextMetricsWithRegisterer(reg) constructor-injection pattern.
type hubMetrics struct {
	ticks       prometheus.Counter
	conflicts   prometheus.Counter
	writesApplied prometheus.Counter
}

func newHubMetrics(reg prometheus.Registerer) *hubMetrics {
	m := &hubMetrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsive_hub_ticks_total",
			Help: "Total ticks committed by the Hub.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsive_hub_conflicts_total",
			Help: "Total write-write conflicts detected across all ticks.",
		}),
		writesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsive_hub_writes_applied_total",
			Help: "Total PendingWrites applied to the authoritative Model.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ticks, m.conflicts, m.writesApplied)
	}
	return m
}

// Hub owns the single authoritative Model and every CoreGroup that
// reads snapshots of it, applying each tick's merged WriteSet once
// every group's cores have finished (§5).
type Hub struct {
	model       *Model
	groups      map[GroupId]CoreGroup
	order       []GroupId
	nextId      CoreId
	config      HubConfig
	metrics     *hubMetrics
	lastEffects *EffectResult
	log         zerolog.Logger
}

// NewHub returns an empty Hub seeded by config, with no groups yet.
// The Hub logs nothing until WithLogger attaches a zerolog.Logger;
// the zero value of zerolog.Logger discards everything it's given.
func NewHub(config HubConfig) *Hub {
	return &Hub{model: NewModelWithSeed(config.GlobalSeed), groups: make(map[GroupId]CoreGroup), config: config}
}

// WithMetrics attaches Prometheus instrumentation registered against
// reg. Passing nil disables registration while still counting in
// memory.
func (h *Hub) WithMetrics(reg prometheus.Registerer) *Hub {
	h.metrics = newHubMetrics(reg)
	return h
}

// WithLogger attaches a structured logger. Tick boundaries log at
// debug, conflict reports and resolution decisions at warn.
func (h *Hub) WithLogger(log zerolog.Logger) *Hub {
	h.log = log
	return h
}

// Model returns the authoritative Model for reading.
func (h *Hub) Model() *Model { return h.model }

// SetModel replaces the Hub's authoritative Model outright. Used by a
// host bridge's Load operation to restore a Model reloaded from
// persistent storage rather than rebuilding the Hub from scratch.
func (h *Hub) SetModel(model *Model) {
	h.model = model
}

// LastEffects returns the merged logs, notifications, and emitted/
// scheduled events every handler raised during the most recent Tick
// call, for a host bridge to fold into its UpdateResult summary (§6).
// Returns an empty, non-nil EffectResult before the first Tick.
func (h *Hub) LastEffects() *EffectResult {
	if h.lastEffects == nil {
		return NewEffectResult()
	}
	return h.lastEffects
}

// CreateCoreRng derives the Rng a Core with the given id observes while
// processing tick, using the exact same hashSeed(GlobalSeed, coreId,
// tick) law Core.reseedRng applies internally (§4.6, §9). Exposing it
// here lets a caller predict or audit a core's per-tick draws without
// running the tick itself.
func (h *Hub) CreateCoreRng(core CoreId, tick uint64) *Rng {
	return RngFromState(hashSeed(h.config.GlobalSeed, uint64(core), tick))
}

// AddTickSyncGroup creates and registers a TickSyncGroup of
// h.config.CoreCount cores, returning its GroupId.
func (h *Hub) AddTickSyncGroup() GroupId {
	id := GroupId(len(h.order))
	count := WithCoreCount(h.config.CoreCount)
	group := NewTickSyncGroup(id, h.nextId, count, h.config.GlobalSeed)
	h.nextId += CoreId(count)
	h.groups[id] = group
	h.order = append(h.order, id)
	return id
}

// AddGroup registers a caller-supplied CoreGroup under its own Id().
func (h *Hub) AddGroup(group CoreGroup) {
	h.groups[group.Id()] = group
	h.order = append(h.order, group.Id())
}

// Group looks up a registered group.
func (h *Hub) Group(id GroupId) (CoreGroup, bool) {
	g, ok := h.groups[id]
	return g, ok
}

// SetPartition assigns strategy to the TickSyncGroup registered under
// id, so its cores shard ForEachEntity/per-kind TickHandler dispatch
// instead of every core re-walking every entity. Reports false if id
// doesn't name a TickSyncGroup (a caller-supplied CoreGroup has no
// partitioning contract).
func (h *Hub) SetPartition(id GroupId, strategy PartitionStrategy) bool {
	group, ok := h.groups[id]
	if !ok {
		return false
	}
	tsg, ok := group.(*TickSyncGroup)
	if !ok {
		return false
	}
	tsg.WithPartition(strategy)
	return true
}

// OnEvent registers an event handler on every group's cores.
func (h *Hub) OnEvent(eh EventHandler) {
	for _, id := range h.order {
		h.groups[id].OnEvent(eh)
	}
}

// OnTick registers a tick handler on every group's cores.
func (h *Hub) OnTick(th TickHandler) {
	for _, id := range h.order {
		h.groups[id].OnTick(th)
	}
}

// Tick runs one simulation step: every group loads the current
// authoritative snapshot, executes in parallel, and the Hub merges
// the resulting WriteSets — detecting conflicts, applying the
// configured ResolutionPolicy, then committing atomically and
// bumping the Model's version and clock (§4.5, §5).
func (h *Hub) Tick() (WriteSetResult, error) {
	if len(h.order) == 0 {
		return WriteSetResult{}, ErrNoGroups
	}

	tick := h.model.CurrentTick()
	h.log.Debug().Uint64("tick", tick).Int("groups", len(h.order)).Msg("tick start")

	snapshot := h.model.Clone()
	var perCore []PerCoreWrites
	var allResults []UpdateResult

	for _, id := range h.order {
		group := h.groups[id]
		group.LoadModel(snapshot)
		results := group.ExecuteTick()
		allResults = append(allResults, results...)
		for i, coreId := range group.CoreIds() {
			perCore = append(perCore, PerCoreWrites{Core: coreId, Writes: results[i].Writes})
		}
		group.AdvanceTick()
	}

	filter := h.config.ConflictFilter
	if filter == nil {
		filter = DefaultConflictFilter
	}
	report := DetectConflicts(perCore, filter)

	if h.metrics != nil {
		h.metrics.ticks.Inc()
		if report.HasConflicts() {
			h.metrics.conflicts.Add(float64(report.Len()))
		}
	}

	if report.HasConflicts() {
		h.log.Warn().Uint64("tick", tick).Int("conflicts", report.Len()).Str("policy", resolutionName(h.config.Resolution)).Msg("conflict report")
	}

	resolved, err := h.resolve(perCore, report)
	if err != nil {
		h.log.Warn().Uint64("tick", tick).Err(err).Msg("resolution failed")
		return WriteSetResult{}, err
	}

	merged := MergeWriteSets(writeSetsOf(resolved))
	h.model.AdvanceTick()
	result := Apply(merged, h.model)
	h.model.SetVersion(h.model.Version() + 1)

	if h.metrics != nil {
		h.metrics.writesApplied.Add(float64(merged.Len()))
	}

	mergedEffects := NewEffectResult()
	for _, ur := range allResults {
		h.redeliver(ur.Result)
		mergedEffects.Merge(ur.Result)
	}
	h.lastEffects = mergedEffects

	h.log.Debug().Uint64("tick", tick).Int("writes", merged.Len()).Msg("tick committed")

	return result, nil
}

// redeliver turns this tick's emitted/scheduled events back into Msgs
// queued for the NEXT tick on every group's cores, since those
// effects are only visible once their WriteSet has committed.
func (h *Hub) redeliver(result *EffectResult) {
	if result == nil {
		return
	}
	for _, ev := range result.EmittedEvents {
		msg := EventMsg(ev.Event, ev.Target, h.model.CurrentTick())
		msg.Params = ev.Params
		h.sendToAll(msg)
	}
	for _, ev := range result.ScheduledEvents {
		msg := ScheduledEventMsg(ev.Event, ev.Target, h.model.CurrentTick()+ev.DelayTicks)
		msg.Params = ev.Params
		h.scheduleToAll(msg, ev.DelayTicks)
	}
}

func (h *Hub) sendToAll(msg Msg) {
	for _, id := range h.order {
		h.groups[id].Send(msg)
	}
}

func (h *Hub) scheduleToAll(msg Msg, delayTicks uint64) {
	for _, id := range h.order {
		h.groups[id].ScheduleMsg(msg, delayTicks, h.model.CurrentTick())
	}
}

// resolve applies h.config.Resolution to a conflicted tick, returning
// the per-core writes that should actually be merged and applied.
func (h *Hub) resolve(perCore []PerCoreWrites, report *ConflictReport) ([]PerCoreWrites, error) {
	if !report.HasConflicts() {
		return perCore, nil
	}

	switch h.config.Resolution {
	case Abort:
		return nil, &UnresolvedConflicts{Report: report}

	case LastWriteWins:
		sorted := append([]PerCoreWrites(nil), perCore...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Core < sorted[j].Core })
		return sorted, nil

	case PreferLowestCore:
		excluded := make(map[WriteTarget]map[CoreId]bool)
		for _, conflict := range report.Conflicts {
			lowest := conflict.Cores[0]
			skip := make(map[CoreId]bool, len(conflict.Cores)-1)
			for _, c := range conflict.Cores {
				if c != lowest {
					skip[c] = true
				}
			}
			excluded[conflict.Target] = skip
		}
		out := make([]PerCoreWrites, 0, len(perCore))
		for _, cw := range perCore {
			filtered := NewWriteSet()
			for _, w := range cw.Writes.Writes() {
				target := TargetFromPendingWrite(w)
				if skip, ok := excluded[target]; ok && skip[cw.Core] {
					continue
				}
				filtered.Push(w)
			}
			out = append(out, PerCoreWrites{Core: cw.Core, Writes: filtered})
		}
		return out, nil

	default:
		return perCore, nil
	}
}

func writeSetsOf(perCore []PerCoreWrites) []*WriteSet {
	out := make([]*WriteSet, len(perCore))
	sorted := append([]PerCoreWrites(nil), perCore...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Core < sorted[j].Core })
	for i, cw := range sorted {
		out[i] = cw.Writes
	}
	return out
}
