// Package script loads the RON-like text definitions named by the
// engine's external-interface contract: resource, event, and entity
// type files (§6). It hand-rolls the tokenizer and parser since no
// library in the retrieved pack parses RON or an RON-like superset;
// gopkg.in/yaml.v3 is used only to re-serialize loaded Definitions back
// out for round-trip export, not for the grammar itself.
package script

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/weng-chenghui/pulsive"
)

// ResourceDef declares a resource kind, e.g. a tradeable commodity.
type ResourceDef struct {
	Id        pulsive.DefId `yaml:"id"`
	BaseValue float64       `yaml:"base_value"`
}

// EventDef declares an event kind and the default parameters a handler
// can assume if the emitter didn't supply them.
type EventDef struct {
	Id            pulsive.DefId     `yaml:"id"`
	DefaultParams map[string]string `yaml:"default_params,omitempty"`
	Priority      int32             `yaml:"priority"`
}

// EntityTypeDef declares an entity kind's initial properties and flags.
type EntityTypeDef struct {
	Id         pulsive.DefId     `yaml:"id"`
	Properties map[string]string `yaml:"properties,omitempty"`
	Flags      []pulsive.DefId   `yaml:"flags,omitempty"`
}

// Definitions is everything a Loader produced from one or more files.
type Definitions struct {
	Resources   []ResourceDef   `yaml:"resources,omitempty"`
	Events      []EventDef      `yaml:"events,omitempty"`
	EntityTypes []EntityTypeDef `yaml:"entity_types,omitempty"`
}

func newDefinitions() *Definitions { return &Definitions{} }

// Merge appends other's definitions onto d.
func (d *Definitions) Merge(other *Definitions) {
	d.Resources = append(d.Resources, other.Resources...)
	d.Events = append(d.Events, other.Events...)
	d.EntityTypes = append(d.EntityTypes, other.EntityTypes...)
}

// ToYAML re-serializes d, used by the round-trip export test and by
// tooling that wants a canonical, diffable form of loaded scripts.
func (d *Definitions) ToYAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// FromYAML parses a previously exported Definitions document.
func FromYAML(data []byte) (*Definitions, error) {
	d := newDefinitions()
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("script: yaml decode: %w", err)
	}
	return d, nil
}

// Loader reads RON-like script files and produces Definitions (§6).
// Duplicate tracking spans the Loader's lifetime: a second Load call
// reusing the same Loader value still rejects duplicate ids across
// every file it has read so far, so loading one file twice fails.
type Loader struct {
	seenResource    map[pulsive.DefId]bool
	seenEvent       map[pulsive.DefId]bool
	seenEntityType  map[pulsive.DefId]bool
}

// NewLoader returns an empty Loader.
func NewLoader() *Loader {
	return &Loader{
		seenResource:   make(map[pulsive.DefId]bool),
		seenEvent:      make(map[pulsive.DefId]bool),
		seenEntityType: make(map[pulsive.DefId]bool),
	}
}

// LoadDir reads every *.ron file in dir (non-recursive), in directory
// order, merging their Definitions.
func (l *Loader) LoadDir(dir string) (*Definitions, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("script: read dir %s: %w", dir, err)
	}
	out := newDefinitions()
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".ron" {
			continue
		}
		defs, err := l.LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out.Merge(defs)
	}
	return out, nil
}

// LoadFile reads and parses a single script file.
func (l *Loader) LoadFile(path string) (*Definitions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("script: open %s: %w", path, err)
	}
	defer f.Close()
	defs, err := l.Load(f)
	if err != nil {
		return nil, fmt.Errorf("script: %s: %w", path, err)
	}
	return defs, nil
}

// Load parses one file shape from r: a resources/events/entity_types
// block, or a single bare definition of one of those three kinds (§6).
func (l *Loader) Load(r io.Reader) (*Definitions, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	p := newParser(string(raw))
	node, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return l.convert(node)
}

// convert walks the generic node tree a parse produced into typed
// Definitions, registering ids against the Loader's duplicate tracker.
func (l *Loader) convert(node *node) (*Definitions, error) {
	out := newDefinitions()
	obj, ok := node.asObject()
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is not a block", pulsive.ErrInvalidSchema)
	}

	if list, ok := obj["resources"]; ok {
		items, _ := list.asList()
		for _, item := range items {
			def, err := l.parseResource(item)
			if err != nil {
				return nil, err
			}
			out.Resources = append(out.Resources, def)
		}
		return out, nil
	}
	if list, ok := obj["events"]; ok {
		items, _ := list.asList()
		for _, item := range items {
			def, err := l.parseEvent(item)
			if err != nil {
				return nil, err
			}
			out.Events = append(out.Events, def)
		}
		return out, nil
	}
	if list, ok := obj["entity_types"]; ok {
		items, _ := list.asList()
		for _, item := range items {
			def, err := l.parseEntityType(item)
			if err != nil {
				return nil, err
			}
			out.EntityTypes = append(out.EntityTypes, def)
		}
		return out, nil
	}

	// Single-definition file: probe which shape this bare block is by
	// its field set, per §6's "probed in order" rule.
	if _, ok := obj["base_value"]; ok {
		def, err := l.parseResource(node)
		if err != nil {
			return nil, err
		}
		out.Resources = append(out.Resources, def)
		return out, nil
	}
	if _, ok := obj["default_params"]; ok {
		def, err := l.parseEvent(node)
		if err != nil {
			return nil, err
		}
		out.Events = append(out.Events, def)
		return out, nil
	}
	if _, ok := obj["properties"]; ok {
		def, err := l.parseEntityType(node)
		if err != nil {
			return nil, err
		}
		out.EntityTypes = append(out.EntityTypes, def)
		return out, nil
	}
	if _, ok := obj["id"]; ok {
		// Bare id with no other recognizable field: treat as a minimal
		// event definition, the lightest-weight of the three shapes.
		def, err := l.parseEvent(node)
		if err != nil {
			return nil, err
		}
		out.Events = append(out.Events, def)
		return out, nil
	}
	return nil, fmt.Errorf("%w: unrecognized file shape", pulsive.ErrInvalidSchema)
}

func (l *Loader) parseResource(n *node) (ResourceDef, error) {
	obj, ok := n.asObject()
	if !ok {
		return ResourceDef{}, fmt.Errorf("%w: resource is not a block", pulsive.ErrInvalidSchema)
	}
	id, ok := obj["id"]
	if !ok {
		return ResourceDef{}, fmt.Errorf("%w: resource missing id", pulsive.ErrMissingField)
	}
	defId := pulsive.DefId(id.str)
	if l.seenResource[defId] {
		return ResourceDef{}, fmt.Errorf("%w: resource %q", pulsive.ErrDuplicateDefinition, defId)
	}
	l.seenResource[defId] = true

	base := 1.0 // documented default (§6)
	if v, ok := obj["base_value"]; ok {
		f, err := strconv.ParseFloat(v.str, 64)
		if err != nil {
			return ResourceDef{}, fmt.Errorf("%w: base_value: %v", pulsive.ErrInvalidSchema, err)
		}
		base = f
	}
	return ResourceDef{Id: defId, BaseValue: base}, nil
}

func (l *Loader) parseEvent(n *node) (EventDef, error) {
	obj, ok := n.asObject()
	if !ok {
		return EventDef{}, fmt.Errorf("%w: event is not a block", pulsive.ErrInvalidSchema)
	}
	id, ok := obj["id"]
	if !ok {
		return EventDef{}, fmt.Errorf("%w: event missing id", pulsive.ErrMissingField)
	}
	defId := pulsive.DefId(id.str)
	if l.seenEvent[defId] {
		return EventDef{}, fmt.Errorf("%w: event %q", pulsive.ErrDuplicateDefinition, defId)
	}
	l.seenEvent[defId] = true

	priority := int32(0) // documented default (§6)
	if v, ok := obj["priority"]; ok {
		p, err := strconv.ParseInt(v.str, 10, 32)
		if err != nil {
			return EventDef{}, fmt.Errorf("%w: priority: %v", pulsive.ErrInvalidSchema, err)
		}
		priority = int32(p)
	}
	params := map[string]string{}
	if v, ok := obj["default_params"]; ok {
		if inner, ok := v.asObject(); ok {
			for k, vv := range inner {
				params[k] = vv.str
			}
		}
	}
	return EventDef{Id: defId, DefaultParams: params, Priority: priority}, nil
}

func (l *Loader) parseEntityType(n *node) (EntityTypeDef, error) {
	obj, ok := n.asObject()
	if !ok {
		return EntityTypeDef{}, fmt.Errorf("%w: entity type is not a block", pulsive.ErrInvalidSchema)
	}
	id, ok := obj["id"]
	if !ok {
		return EntityTypeDef{}, fmt.Errorf("%w: entity type missing id", pulsive.ErrMissingField)
	}
	defId := pulsive.DefId(id.str)
	if l.seenEntityType[defId] {
		return EntityTypeDef{}, fmt.Errorf("%w: entity type %q", pulsive.ErrDuplicateDefinition, defId)
	}
	l.seenEntityType[defId] = true

	props := map[string]string{}
	if v, ok := obj["properties"]; ok {
		if inner, ok := v.asObject(); ok {
			for k, vv := range inner {
				props[k] = vv.str
			}
		}
	}
	var flags []pulsive.DefId
	if v, ok := obj["flags"]; ok {
		items, _ := v.asList()
		for _, item := range items {
			flags = append(flags, pulsive.DefId(item.str))
		}
	}
	return EntityTypeDef{Id: defId, Properties: props, Flags: flags}, nil
}

// Validate runs the post-load validation pass (§C). It rejects an
// EntityTypeDef that declares an empty flag; it does not check that
// ids referenced across definitions (events, default_params keys,
// resources) exist elsewhere in d.
func (l *Loader) Validate(d *Definitions) error {
	events := make(map[pulsive.DefId]bool, len(d.Events))
	for _, e := range d.Events {
		events[e.Id] = true
	}
	resources := make(map[pulsive.DefId]bool, len(d.Resources))
	for _, r := range d.Resources {
		resources[r.Id] = true
	}
	for _, et := range d.EntityTypes {
		for _, flag := range et.Flags {
			if flag == "" {
				return fmt.Errorf("%w: entity type %q declares an empty flag", pulsive.ErrInvalidSchema, et.Id)
			}
		}
	}
	return nil
}
