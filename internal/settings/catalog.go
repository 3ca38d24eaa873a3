// catalog.go
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
	"context"
	"fmt"
	"sync"
)

// Catalog is the materialized property values of one (entity, principal) pair.
type Catalog struct {
	entity    *Entity
	principal string
	loader    *loader

	mu     sync.RWMutex
	values map[string]any
}

func newCatalog(l *loader, e *Entity, principal string) *Catalog {
	if !e.AllowPersonal {
		principal = Global
	}
	return &Catalog{entity: e, principal: principal, loader: l, values: make(map[string]any)}
}

// Entity returns the schema the catalog is built from.
func (c *Catalog) Entity() *Entity { return c.entity }

// Principal returns the principal the catalog was resolved for; Global for the baseline.
func (c *Catalog) Principal() string { return c.principal }

func (c *Catalog) personal() bool {
	return c.entity.AllowPersonal && c.principal != Global
}

// fill replaces the values with data, dropping keys the entity no longer
// declares, and merges defaults for the missing ones.
func (c *Catalog) fill(data map[string]any) {
	values := make(map[string]any, len(c.entity.fields))
	for key, value := range data {
		if _, ok := c.entity.index[key]; ok {
			values[key] = value
		}
	}
	for key, value := range c.entity.defaults {
		if _, ok := values[key]; !ok {
			values[key] = cloneValue(value)
		}
	}
	c.mu.Lock()
	c.values = values
	c.mu.Unlock()
}

// Get returns the value of key, nil when unset. File and image properties
// yield a FileRef.
func (c *Catalog) Get(key string) (any, error) {
	f, ok := c.entity.Field(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownProperty, c.entity.Name, key)
	}
	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if fp, isFile := f.Property.(fileProperty); isFile {
		id, _ := v.(string)
		if id == "" {
			return nil, nil
		}
		return FileRef{Entity: fp.storageEntity(), ID: id}, nil
	}
	return cloneValue(v), nil
}

// Has reports whether key currently holds a value.
func (c *Catalog) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.values[key]
	return ok
}

// Set validates value against the descriptor of key and stores it.
func (c *Catalog) Set(key string, value any) error {
	f, ok := c.entity.Field(key)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, c.entity.Name, key)
	}
	normalized, err := f.Property.Validate(value)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", c.entity.Name, key, err)
	}
	c.mu.Lock()
	c.values[key] = normalized
	c.mu.Unlock()
	return nil
}

// Delete reverts key to its default, or removes it when there is none.
func (c *Catalog) Delete(key string) error {
	if _, ok := c.entity.Field(key); !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, c.entity.Name, key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if def, ok := c.entity.defaults[key]; ok {
		c.values[key] = cloneValue(def)
	} else {
		delete(c.values, key)
	}
	return nil
}

// Values returns a copy of the raw values; file properties hold their ids.
func (c *Catalog) Values() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneMap(c.values)
}

// Resolved returns the values with file and image ids replaced by FileRef
// handles. Cleared files are left out.
func (c *Catalog) Resolved() map[string]any {
	out := c.Values()
	for key, v := range out {
		f, ok := c.entity.Field(key)
		if !ok {
			continue
		}
		fp, ok := f.Property.(fileProperty)
		if !ok {
			continue
		}
		if id, _ := v.(string); id != "" {
			out[key] = FileRef{Entity: fp.storageEntity(), ID: id}
		} else {
			delete(out, key)
		}
	}
	return out
}

func (c *Catalog) restore(values map[string]any) {
	c.mu.Lock()
	c.values = values
	c.mu.Unlock()
}

// Save writes the catalog through to the durable store and the shared cache.
// The target is the global layer when globally is set or the catalog is not
// personal, and the principal's layer otherwise.
func (c *Catalog) Save(ctx context.Context, globally bool) error {
	target := Global
	if !globally && c.personal() {
		target = c.principal
	}
	return c.loader.save(ctx, c.entity.Name, target, c.Values())
}

// String returns a string value, or "" when unset or of another type.
func (c *Catalog) String(key string) string {
	v, _ := c.raw(key).(string)
	return v
}

// Float returns a numeric value, or 0.
func (c *Catalog) Float(key string) float64 {
	f, _ := toFloat(c.raw(key))
	return f
}

// Int returns a numeric value truncated to int, or 0.
func (c *Catalog) Int(key string) int {
	return int(c.Float(key))
}

// Bool returns a boolean value, or false.
func (c *Catalog) Bool(key string) bool {
	v, _ := c.raw(key).(bool)
	return v
}

// Strings returns a string list value, or nil.
func (c *Catalog) Strings(key string) []string {
	switch v := c.raw(key).(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// File returns the file reference of a file or image property.
func (c *Catalog) File(key string) (FileRef, bool) {
	v, err := c.Get(key)
	if err != nil {
		return FileRef{}, false
	}
	ref, ok := v.(FileRef)
	return ref, ok
}

func (c *Catalog) raw(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		return cloneMap(t)
	}
	return v
}
