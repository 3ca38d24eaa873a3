// property.go
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
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// FieldType names the shape of a property value in the administration schema.
type FieldType string

const (
	FieldString       FieldType = "string"
	FieldNumber       FieldType = "number"
	FieldNumberMinMax FieldType = "number-mm"
	FieldText         FieldType = "text"
	FieldBoolean      FieldType = "boolean"
	FieldChoice       FieldType = "choice"
	FieldStringList   FieldType = "string-list"
	FieldImage        FieldType = "image"
	FieldFile         FieldType = "file"
)

// Schema is the JSON fragment a descriptor emits for the presentation layer.
type Schema map[string]any

// Meta carries the presentation metadata shared by every descriptor.
// A zero Order lets the registry assign one from the declaration index.
type Meta struct {
	Caption string
	Order   int
}

func (m Meta) meta() Meta { return m }

// Property is a settings descriptor. The set of implementations is closed;
// it is one of the *Property types declared in this file.
type Property interface {
	FieldType() FieldType
	// Schema returns {fieldType, caption, order, ...type specific fields}.
	Schema() Schema
	// Validate checks value against the descriptor and returns its normalized form.
	Validate(value any) (any, error)
	meta() Meta
}

// Option is one selectable entry of a ChoiceProperty.
type Option struct {
	Key     string `json:"key"`
	Caption string `json:"caption"`
}

// FileRef is what a file or image property yields on read.
type FileRef struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

type fileProperty interface {
	storageEntity() string
}

func baseSchema(t FieldType, m Meta) Schema {
	return Schema{
		"fieldType": string(t),
		"caption":   m.Caption,
		"order":     m.Order,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidValue}, args...)...)
}

type StringProperty struct{ Meta }

func (StringProperty) FieldType() FieldType { return FieldString }

func (p StringProperty) Schema() Schema { return baseSchema(FieldString, p.Meta) }

func (StringProperty) Validate(value any) (any, error) { return validateString(value) }

type TextProperty struct{ Meta }

func (TextProperty) FieldType() FieldType { return FieldText }

func (p TextProperty) Schema() Schema { return baseSchema(FieldText, p.Meta) }

func (TextProperty) Validate(value any) (any, error) { return validateString(value) }

func validateString(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, invalid("expected string, got %T", value)
	}
	return s, nil
}

type NumberProperty struct{ Meta }

func (NumberProperty) FieldType() FieldType { return FieldNumber }

func (p NumberProperty) Schema() Schema { return baseSchema(FieldNumber, p.Meta) }

func (NumberProperty) Validate(value any) (any, error) {
	f, ok := toFloat(value)
	if !ok {
		return nil, invalid("expected number, got %T", value)
	}
	return f, nil
}

// BoundedNumberProperty accepts integers in [Min, Max] reachable from Min in
// increments of Step. A zero Step means 1.
type BoundedNumberProperty struct {
	Meta
	Min  int
	Max  int
	Step int
}

func (BoundedNumberProperty) FieldType() FieldType { return FieldNumberMinMax }

func (p BoundedNumberProperty) Schema() Schema {
	s := baseSchema(FieldNumberMinMax, p.Meta)
	s["minValue"] = p.Min
	s["maxValue"] = p.Max
	s["step"] = p.step()
	return s
}

func (p BoundedNumberProperty) step() int {
	if p.Step <= 0 {
		return 1
	}
	return p.Step
}

func (p BoundedNumberProperty) Validate(value any) (any, error) {
	f, ok := toFloat(value)
	if !ok {
		return nil, invalid("expected number, got %T", value)
	}
	if math.Trunc(f) != f {
		return nil, invalid("%v is not an integer", f)
	}
	if f < float64(p.Min) || f > float64(p.Max) {
		return nil, invalid("%v is outside [%d, %d]", f, p.Min, p.Max)
	}
	if int64(f-float64(p.Min))%int64(p.step()) != 0 {
		return nil, invalid("%v does not match step %d from %d", f, p.step(), p.Min)
	}
	return f, nil
}

// BooleanProperty is a toggle. Inline is a display hint.
type BooleanProperty struct {
	Meta
	Inline bool
}

func (BooleanProperty) FieldType() FieldType { return FieldBoolean }

func (p BooleanProperty) Schema() Schema {
	s := baseSchema(FieldBoolean, p.Meta)
	s["inline"] = p.Inline
	return s
}

func (BooleanProperty) Validate(value any) (any, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, invalid("expected boolean, got %T", value)
	}
	return b, nil
}

// ChoiceProperty accepts one of the keys of Options.
type ChoiceProperty struct {
	Meta
	Options []Option
}

func (ChoiceProperty) FieldType() FieldType { return FieldChoice }

func (p ChoiceProperty) Schema() Schema {
	s := baseSchema(FieldChoice, p.Meta)
	options := make([]Option, len(p.Options))
	copy(options, p.Options)
	s["options"] = options
	return s
}

func (p ChoiceProperty) Validate(value any) (any, error) {
	key, ok := value.(string)
	if !ok {
		return nil, invalid("expected choice key, got %T", value)
	}
	for _, o := range p.Options {
		if o.Key == key {
			return key, nil
		}
	}
	return nil, invalid("%q is not an option", key)
}

type StringListProperty struct{ Meta }

func (StringListProperty) FieldType() FieldType { return FieldStringList }

func (p StringListProperty) Schema() Schema { return baseSchema(FieldStringList, p.Meta) }

func (StringListProperty) Validate(value any) (any, error) {
	switch v := value.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, invalid("item %d: expected string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, invalid("expected list of strings, got %T", value)
}

// ImageProperty references an image owned by the Entity file storage.
type ImageProperty struct {
	Meta
	Entity    string
	Clearable bool
	Inline    bool
	Cover     bool
	Height    int
	Width     int
}

func (ImageProperty) FieldType() FieldType { return FieldImage }

func (p ImageProperty) Schema() Schema {
	s := baseSchema(FieldImage, p.Meta)
	s["entity"] = p.Entity
	s["clearable"] = p.Clearable
	s["inline"] = p.Inline
	s["cover"] = p.Cover
	s["height"] = p.Height
	s["width"] = p.Width
	return s
}

func (ImageProperty) Validate(value any) (any, error) { return validateFileID(value) }

func (p ImageProperty) storageEntity() string { return p.Entity }

// FileProperty references a file owned by the Entity file storage.
type FileProperty struct {
	Meta
	Entity string
}

func (FileProperty) FieldType() FieldType { return FieldFile }

func (p FileProperty) Schema() Schema {
	s := baseSchema(FieldFile, p.Meta)
	s["entity"] = p.Entity
	return s
}

func (FileProperty) Validate(value any) (any, error) { return validateFileID(value) }

func (p FileProperty) storageEntity() string { return p.Entity }

func validateFileID(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	}
	return nil, invalid("expected file id, got %T", value)
}

func toFloat(value any) (float64, bool) {
	var f float64
	switch n := value.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		v, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = v
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// sortSchemas orders property schemas by order, then caption.
func sortSchemas(schemas []Schema) {
	sort.SliceStable(schemas, func(i, j int) bool {
		oi, _ := schemas[i]["order"].(int)
		oj, _ := schemas[j]["order"].(int)
		if oi != oj {
			return oi < oj
		}
		ci, _ := schemas[i]["caption"].(string)
		cj, _ := schemas[j]["caption"].(string)
		return ci < cj
	})
}
