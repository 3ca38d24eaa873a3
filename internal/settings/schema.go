// schema.go
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

import "context"

// EntitySchema is the administration view of one entity.
type EntitySchema struct {
	AppName    string   `json:"appName"`
	Name       string   `json:"name"`
	Caption    string   `json:"caption"`
	Properties []Schema `json:"properties"`
}

// Section is a run of entities shown together. Entities sharing a tab group
// form one section; every other entity is a section of its own.
type Section struct {
	Group    string         `json:"group,omitempty"`
	Entities []EntitySchema `json:"entities"`
}

// Schema describes every entity the request principal may access, with the
// current values of the effective layer.
func (r *Resolver) Schema(ctx context.Context, opts ...CallOption) ([]Section, error) {
	cfg := newCallConfig(opts)
	req := r.request(ctx)

	var sections []Section
	groups := make(map[string]int)
	for _, e := range r.registry.Enumerate() {
		if err := r.authorize(ctx, req, e); err != nil {
			if isAccessDenied(err) {
				continue
			}
			return nil, err
		}
		c, err := r.catalog(ctx, req, e, cfg)
		if err != nil {
			return nil, err
		}
		es := describe(e, c)

		group := e.Group()
		if group == "" {
			sections = append(sections, Section{Entities: []EntitySchema{es}})
			continue
		}
		if i, ok := groups[group]; ok {
			sections[i].Entities = append(sections[i].Entities, es)
			continue
		}
		groups[group] = len(sections)
		sections = append(sections, Section{Group: group, Entities: []EntitySchema{es}})
	}
	return sections, nil
}

func describe(e *Entity, c *Catalog) EntitySchema {
	values := c.Values()
	props := make([]Schema, 0, len(e.fields))
	for _, f := range e.fields {
		s := f.Schema()
		s["name"] = f.Name
		if v, ok := values[f.Name]; ok {
			s["value"] = v
		}
		props = append(props, s)
	}
	sortSchemas(props)
	return EntitySchema{
		AppName:    e.App,
		Name:       e.Name,
		Caption:    e.Caption,
		Properties: props,
	}
}
