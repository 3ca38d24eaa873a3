// registry.go
//
// Hierarchical settings service for jam-build applications
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of settingsdb.
// settingsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// settingsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with settingsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package settings

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

const autoOrderBase = 1000

// Prop is one named descriptor in declaration order.
type Prop struct {
	Name     string
	Property Property
}

// Properties is an ordered property declaration.
type Properties []Prop

// PropertyMap turns a mapping into Properties. Map iteration is random, so
// names are sorted to give a stable registration index.
func PropertyMap(m map[string]Property) Properties {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	props := make(Properties, 0, len(names))
	for _, name := range names {
		props = append(props, Prop{Name: name, Property: m[name]})
	}
	return props
}

// Field is a registered property with its resolved order.
type Field struct {
	Name     string
	Property Property
	Order    int
}

// Caption returns the descriptor caption.
func (f Field) Caption() string { return f.Property.meta().Caption }

// Schema returns the descriptor schema with the resolved order.
func (f Field) Schema() Schema {
	s := f.Property.Schema()
	s["order"] = f.Order
	return s
}

// Entity is an immutable, registered group of settings.
type Entity struct {
	Name          string
	App           string
	Caption       string
	AllowPersonal bool
	Order         int
	Tab           string

	fields   []Field
	index    map[string]int
	defaults map[string]any
	requires []string
}

// Fields returns the properties in declaration order.
func (e *Entity) Fields() []Field {
	out := make([]Field, len(e.fields))
	copy(out, e.fields)
	return out
}

// Field looks up a property by name.
func (e *Entity) Field(name string) (Field, bool) {
	i, ok := e.index[name]
	if !ok {
		return Field{}, false
	}
	return e.fields[i], true
}

// Default returns the default value of a property, if it has one.
func (e *Entity) Default(name string) (any, bool) {
	v, ok := e.defaults[name]
	return cloneValue(v), ok
}

// Defaults returns a copy of the defaults map.
func (e *Entity) Defaults() map[string]any {
	out := make(map[string]any, len(e.defaults))
	for k, v := range e.defaults {
		out[k] = cloneValue(v)
	}
	return out
}

// Requires returns the application-qualified scopes needed to access the entity.
func (e *Entity) Requires() []string {
	out := make([]string, len(e.requires))
	copy(out, e.requires)
	return out
}

// Group is the tab group key, "<app>__<tab>", or empty when no tab is set.
func (e *Entity) Group() string {
	if e.Tab == "" {
		return ""
	}
	return e.App + "__" + e.Tab
}

type entityConfig struct {
	name          string
	caption       string
	defaults      map[string]any
	requires      []string
	allowPersonal bool
	order         int
	tab           string
}

// EntityOption configures Register.
type EntityOption func(*entityConfig)

// Named sets the entity name. Names without a dot are qualified with the application.
func Named(name string) EntityOption { return func(c *entityConfig) { c.name = name } }

// Captioned sets the display caption.
func Captioned(caption string) EntityOption { return func(c *entityConfig) { c.caption = caption } }

// Defaults sets the default values.
func Defaults(values map[string]any) EntityOption {
	return func(c *entityConfig) { c.defaults = values }
}

// Requires sets the scopes needed to access the entity.
func Requires(scopes ...string) EntityOption {
	return func(c *entityConfig) { c.requires = append(c.requires, scopes...) }
}

// AllowPersonal enables per-principal overrides.
func AllowPersonal() EntityOption { return func(c *entityConfig) { c.allowPersonal = true } }

// Ordered sets an explicit display order.
func Ordered(order int) EntityOption { return func(c *entityConfig) { c.order = order } }

// Tab places the entity in a tab group of its application.
func Tab(tab string) EntityOption { return func(c *entityConfig) { c.tab = tab } }

// Registry maps entity names to schemas. It is written during process
// initialization only; after Freeze it is read-only and safe for concurrent reads.
type Registry struct {
	entities map[string]*Entity
	ordered  []*Entity
	apps     map[string]int
	frozen   atomic.Bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*Entity),
		apps:     make(map[string]int),
	}
}

// QualifyName applies the naming rule: "<app>.<name>" for a bare name,
// the name itself when it contains a dot, the application when empty.
func QualifyName(app, name string) string {
	switch {
	case name == "":
		return app
	case strings.Contains(name, ".") || app == "":
		return name
	}
	return app + "." + name
}

// DeclareApplication sets the enumeration order of an application.
func (r *Registry) DeclareApplication(app string, order int) error {
	if r.frozen.Load() {
		return fmt.Errorf("declare application %q: %w", app, ErrRegistryFrozen)
	}
	r.apps[app] = order
	return nil
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() { r.frozen.Store(true) }

// Register declares a new entity owned by app.
func (r *Registry) Register(app string, props Properties, opts ...EntityOption) (*Entity, error) {
	if r.frozen.Load() {
		return nil, ErrRegistryFrozen
	}
	if app == "" {
		return nil, fmt.Errorf("register settings: application is required")
	}

	var cfg entityConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	name := QualifyName(app, cfg.name)
	if _, exists := r.entities[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntity, name)
	}

	e := &Entity{
		Name:          name,
		App:           app,
		Caption:       cfg.caption,
		AllowPersonal: cfg.allowPersonal,
		Order:         cfg.order,
		Tab:           cfg.tab,
		index:         make(map[string]int, len(props)),
		defaults:      make(map[string]any, len(cfg.defaults)),
	}
	if e.Caption == "" {
		e.Caption = name
	}
	if e.Order == 0 {
		e.Order = autoOrderBase + len(r.ordered)
	}

	for i, p := range props {
		if p.Name == "" || p.Property == nil {
			return nil, fmt.Errorf("register %s: property %d is incomplete", name, i)
		}
		if _, dup := e.index[p.Name]; dup {
			return nil, fmt.Errorf("register %s: property %q declared twice", name, p.Name)
		}
		order := p.Property.meta().Order
		if order == 0 {
			order = autoOrderBase + i
		}
		e.index[p.Name] = len(e.fields)
		e.fields = append(e.fields, Field{Name: p.Name, Property: p.Property, Order: order})
	}

	for key, value := range cfg.defaults {
		f, ok := e.Field(key)
		if !ok {
			return nil, fmt.Errorf("register %s: default for %w %q", name, ErrUnknownProperty, key)
		}
		normalized, err := f.Property.Validate(value)
		if err != nil {
			return nil, fmt.Errorf("register %s: default %q: %w", name, key, err)
		}
		e.defaults[key] = normalized
	}

	for _, scope := range cfg.requires {
		e.requires = append(e.requires, QualifyName(app, scope))
	}

	if _, declared := r.apps[app]; !declared {
		r.apps[app] = autoOrderBase*autoOrderBase + len(r.apps)
	}
	r.entities[name] = e
	r.ordered = append(r.ordered, e)
	return e, nil
}

// MustRegister is Register for init code that cannot continue on error.
func (r *Registry) MustRegister(app string, props Properties, opts ...EntityOption) *Entity {
	e, err := r.Register(app, props, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Lookup returns the entity registered under the exact name.
func (r *Registry) Lookup(name string) (*Entity, error) {
	e, ok := r.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return e, nil
}

// Enumerate lists entities by application order, entity order, caption and name.
func (r *Registry) Enumerate() []*Entity {
	out := make([]*Entity, len(r.ordered))
	copy(out, r.ordered)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if oa, ob := r.apps[a.App], r.apps[b.App]; oa != ob {
			return oa < ob
		}
		if a.App != b.App {
			return a.App < b.App
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if a.Caption != b.Caption {
			return a.Caption < b.Caption
		}
		return a.Name < b.Name
	})
	return out
}
