package hostbridge

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/weng-chenghui/pulsive"
	"github.com/weng-chenghui/pulsive/internal/storage"
)

// Engine is the facade a GUI host embeds (§6): one Hub with a single
// TickSyncGroup, plus optional buntdb-backed persistence.
type Engine struct {
	hub     *pulsive.Hub
	groupId pulsive.GroupId
	store   *storage.Store
}

// NewEngine constructs an uninitialised Engine. Initialise or
// InitialiseInMemory must run before any other call.
func NewEngine() *Engine {
	return &Engine{}
}

// Initialise sets up the Hub and, if dbPath is non-empty, opens
// persistent storage at dbPath (dataDir is accepted for host API
// parity but unused: buntdb addresses a single file, not a directory).
func (e *Engine) Initialise(config pulsive.HubConfig, dataDir, dbPath string) error {
	e.hub = pulsive.NewHub(config)
	e.groupId = e.hub.AddTickSyncGroup()
	if dbPath == "" {
		return nil
	}
	store, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("hostbridge: initialise: %w", err)
	}
	e.store = store
	return nil
}

// InitialiseInMemory is Initialise with no persistence backing at all.
func (e *Engine) InitialiseInMemory(config pulsive.HubConfig) error {
	e.hub = pulsive.NewHub(config)
	e.groupId = e.hub.AddTickSyncGroup()
	return nil
}

func (e *Engine) requireHub() error {
	if e.hub == nil {
		return fmt.Errorf("hostbridge: engine not initialised")
	}
	return nil
}

// createEntityInput is what CreateEntity's host-native map decodes into.
type createEntityInput struct {
	Kind       string                 `mapstructure:"kind"`
	Properties map[string]interface{} `mapstructure:"properties"`
}

// CreateEntity spawns an entity of the kind/properties raw describes.
func (e *Engine) CreateEntity(raw map[string]interface{}) (map[string]interface{}, error) {
	if err := e.requireHub(); err != nil {
		return nil, err
	}
	var input createEntityInput
	if err := mapstructure.Decode(raw, &input); err != nil {
		return nil, fmt.Errorf("hostbridge: decode create_entity: %w", err)
	}
	if input.Kind == "" {
		return nil, pulsive.ErrMissingField
	}
	ent := e.hub.Model().EntitiesMut().Create(pulsive.DefId(input.Kind))
	for k, v := range input.Properties {
		ent.Set(k, hostToValue(v))
	}
	return entityToHost(ent, e.hub.Model().Entities()), nil
}

// GetEntity reads an entity by id.
func (e *Engine) GetEntity(id uint64) (map[string]interface{}, error) {
	if err := e.requireHub(); err != nil {
		return nil, err
	}
	ent, ok := e.hub.Model().Entities().Get(pulsive.EntityId(id))
	if !ok {
		return nil, pulsive.ErrEntityNotFound
	}
	return entityToHost(ent, e.hub.Model().Entities()), nil
}

// SetEntityProperty writes a single property on an existing entity.
func (e *Engine) SetEntityProperty(id uint64, key string, raw interface{}) (map[string]interface{}, error) {
	if err := e.requireHub(); err != nil {
		return nil, err
	}
	ent, ok := e.hub.Model().EntitiesMut().Get(pulsive.EntityId(id))
	if !ok {
		return nil, pulsive.ErrEntityNotFound
	}
	ent.Set(key, hostToValue(raw))
	return entityToHost(ent, e.hub.Model().Entities()), nil
}

// DeleteEntity removes an entity by id.
func (e *Engine) DeleteEntity(id uint64) (map[string]interface{}, error) {
	if err := e.requireHub(); err != nil {
		return nil, err
	}
	if !e.hub.Model().EntitiesMut().Remove(pulsive.EntityId(id)) {
		return nil, pulsive.ErrEntityNotFound
	}
	return map[string]interface{}{"destroyed_ids": []uint64{id}}, nil
}

// QueryEntitiesByKind returns every surviving entity of kind.
func (e *Engine) QueryEntitiesByKind(kind string) ([]map[string]interface{}, error) {
	if err := e.requireHub(); err != nil {
		return nil, err
	}
	store := e.hub.Model().Entities()
	ents := store.ByKind(pulsive.DefId(kind))
	out := make([]map[string]interface{}, len(ents))
	for i, ent := range ents {
		out[i] = entityToHost(ent, store)
	}
	return out, nil
}

// GetGlobal reads a global, host-native.
func (e *Engine) GetGlobal(key string) (interface{}, error) {
	if err := e.requireHub(); err != nil {
		return nil, err
	}
	return valueToHost(e.hub.Model().GetGlobal(key), e.hub.Model().Entities()), nil
}

// SetGlobal writes a global.
func (e *Engine) SetGlobal(key string, raw interface{}) (map[string]interface{}, error) {
	if err := e.requireHub(); err != nil {
		return nil, err
	}
	e.hub.Model().SetGlobal(key, hostToValue(raw))
	return map[string]interface{}{"key": key}, nil
}

// GetTick returns the current tick counter.
func (e *Engine) GetTick() (uint64, error) {
	if err := e.requireHub(); err != nil {
		return 0, err
	}
	return e.hub.Model().CurrentTick(), nil
}

// GetDate returns the current in-simulation date as a string.
func (e *Engine) GetDate() (string, error) {
	if err := e.requireHub(); err != nil {
		return "", err
	}
	return e.hub.Model().Time.CurrentDate().String(), nil
}

// GetSpeed returns the current clock speed name.
func (e *Engine) GetSpeed() (string, error) {
	if err := e.requireHub(); err != nil {
		return "", err
	}
	return speedName(e.hub.Model().Time.Speed), nil
}

// SetSpeed assigns the clock speed by name.
func (e *Engine) SetSpeed(name string) error {
	if err := e.requireHub(); err != nil {
		return err
	}
	speed, ok := speedFromName(name)
	if !ok {
		return fmt.Errorf("hostbridge: unknown speed %q", name)
	}
	e.hub.Model().Time.SetSpeed(speed)
	return nil
}

// ToggleSpeed flips pause on/off, returning the resulting speed name.
func (e *Engine) ToggleSpeed(previous string) (string, error) {
	if err := e.requireHub(); err != nil {
		return "", err
	}
	prevSpeed, _ := speedFromName(previous)
	result := e.hub.Model().Time.TogglePause(prevSpeed)
	return speedName(result), nil
}

// updateResultToHost flattens a WriteSetResult and the Hub's
// LastEffects into the spawned ids / destroyed ids / logs /
// notifications dictionary that Tick returns. The other mutating calls
// return their own smaller results (the entity, the key, a queued
// flag, the destroyed id) or only an error.
func updateResultToHost(r pulsive.WriteSetResult, effects *pulsive.EffectResult) map[string]interface{} {
	logs := make([]string, 0, len(effects.Logs))
	for _, l := range effects.Logs {
		logs = append(logs, fmt.Sprintf("[%s] %s", logLevelName(l.Level), l.Message))
	}
	notifications := make([]map[string]interface{}, 0, len(effects.Notifications))
	for _, n := range effects.Notifications {
		notifications = append(notifications, map[string]interface{}{
			"kind":    string(n.Kind),
			"title":   n.Title,
			"message": n.Message,
			"target":  n.Target.String(),
		})
	}
	spawned := make([]uint64, len(r.Spawned))
	for i, id := range r.Spawned {
		spawned[i] = uint64(id)
	}
	destroyed := make([]uint64, len(r.Destroyed))
	for i, id := range r.Destroyed {
		destroyed[i] = uint64(id)
	}
	return map[string]interface{}{
		"spawned_ids":   spawned,
		"destroyed_ids": destroyed,
		"logs":          logs,
		"notifications": notifications,
	}
}

// Tick advances the simulation by one tick.
func (e *Engine) Tick() (map[string]interface{}, error) {
	if err := e.requireHub(); err != nil {
		return nil, err
	}
	result, err := e.hub.Tick()
	if err != nil {
		return nil, err
	}
	return updateResultToHost(result, e.hub.LastEffects()), nil
}

// sendCommandInput is what SendCommand's raw params map decodes into.
type sendCommandInput struct {
	Target int64                  `mapstructure:"target"`
	Actor  int64                  `mapstructure:"actor"`
	Params map[string]interface{} `mapstructure:"params"`
}

// SendCommand queues a Command message attributed to an actor, to take
// effect on the next Tick.
func (e *Engine) SendCommand(actionId string, raw map[string]interface{}) (map[string]interface{}, error) {
	if err := e.requireHub(); err != nil {
		return nil, err
	}
	var input sendCommandInput
	if err := mapstructure.Decode(raw, &input); err != nil {
		return nil, fmt.Errorf("hostbridge: decode send_command: %w", err)
	}
	msg := pulsive.CommandMsg(pulsive.DefId(actionId), pulsive.RefOf(pulsive.EntityId(input.Target)),
		pulsive.ActorId(input.Actor), e.hub.Model().CurrentTick())
	for k, v := range input.Params {
		msg = msg.WithParam(k, hostToValue(v))
	}
	group, ok := e.hub.Group(e.groupId)
	if !ok {
		return nil, pulsive.ErrGroupNotFound
	}
	group.Send(msg)
	return map[string]interface{}{"queued": true}, nil
}

// EmitEvent queues an Event message, to take effect on the next Tick.
func (e *Engine) EmitEvent(eventId string, raw map[string]interface{}) (map[string]interface{}, error) {
	if err := e.requireHub(); err != nil {
		return nil, err
	}
	var input sendCommandInput
	if err := mapstructure.Decode(raw, &input); err != nil {
		return nil, fmt.Errorf("hostbridge: decode emit_event: %w", err)
	}
	msg := pulsive.EventMsg(pulsive.DefId(eventId), pulsive.RefOf(pulsive.EntityId(input.Target)), e.hub.Model().CurrentTick())
	for k, v := range input.Params {
		msg = msg.WithParam(k, hostToValue(v))
	}
	group, ok := e.hub.Group(e.groupId)
	if !ok {
		return nil, pulsive.ErrGroupNotFound
	}
	group.Send(msg)
	return map[string]interface{}{"queued": true}, nil
}

// Save persists the current Model to the configured storage.Store.
func (e *Engine) Save() error {
	if err := e.requireHub(); err != nil {
		return err
	}
	if e.store == nil {
		return fmt.Errorf("hostbridge: save: no storage configured")
	}
	return e.store.SaveModel(e.hub.Model())
}

// Load replaces the Hub's authoritative Model with one reloaded from
// the configured storage.Store.
func (e *Engine) Load() error {
	if err := e.requireHub(); err != nil {
		return err
	}
	if e.store == nil {
		return fmt.Errorf("hostbridge: load: no storage configured")
	}
	model, err := e.store.LoadModel()
	if err != nil {
		return err
	}
	e.hub.SetModel(model)
	return nil
}

func speedName(s pulsive.Speed) string {
	switch s {
	case pulsive.SpeedPaused:
		return "paused"
	case pulsive.SpeedVerySlow:
		return "very_slow"
	case pulsive.SpeedSlow:
		return "slow"
	case pulsive.SpeedNormal:
		return "normal"
	case pulsive.SpeedFast:
		return "fast"
	case pulsive.SpeedVeryFast:
		return "very_fast"
	default:
		return "paused"
	}
}

func speedFromName(name string) (pulsive.Speed, bool) {
	switch name {
	case "paused":
		return pulsive.SpeedPaused, true
	case "very_slow":
		return pulsive.SpeedVerySlow, true
	case "slow":
		return pulsive.SpeedSlow, true
	case "normal":
		return pulsive.SpeedNormal, true
	case "fast":
		return pulsive.SpeedFast, true
	case "very_fast":
		return pulsive.SpeedVeryFast, true
	default:
		return pulsive.SpeedPaused, false
	}
}
