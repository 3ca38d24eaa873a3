// loader.go
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
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyPrefix = "settings:catalog:"
	// nullMarker records a layer known to be absent from the durable store.
	nullMarker = "null"
	// fillTimeout bounds a shared store read, which outlives any one caller.
	fillTimeout = 30 * time.Second
)

// CacheKey is the shared cache key of the (principal, entity) layer.
func CacheKey(principal, entity string) string {
	return cacheKeyPrefix + principal + ":" + entity
}

// loader materializes catalogs from the shared cache and the durable store.
type loader struct {
	store Store
	cache Cache
	log   *zap.Logger
	fills singleflight.Group
}

// layer is the outcome of reading one (entity, principal) layer.
type layer struct {
	data  map[string]any
	found bool
	// fromStore is set when the answer came from the durable store
	// rather than the shared cache.
	fromStore bool
}

func (l *loader) load(ctx context.Context, e *Entity, principal string) (*Catalog, error) {
	c := newCatalog(l, e, principal)

	if c.personal() {
		personal, err := l.loadLayer(ctx, e.Name, principal)
		if err != nil {
			return nil, err
		}
		if personal.found {
			c.fill(personal.data)
			return c, nil
		}
		if personal.fromStore {
			l.addCache(ctx, CacheKey(principal, e.Name), nullMarker)
		}
	}

	global, err := l.loadLayer(ctx, e.Name, Global)
	if err != nil {
		return nil, err
	}
	if global.found {
		c.fill(global.data)
		return c, nil
	}
	if global.fromStore {
		l.addCache(ctx, CacheKey(Global, e.Name), nullMarker)
	}
	c.fill(nil)
	return c, nil
}

func (l *loader) loadLayer(ctx context.Context, entity, principal string) (layer, error) {
	key := CacheKey(principal, entity)

	raw, ok, err := l.cache.Get(ctx, key)
	if err != nil {
		l.log.Warn("settings cache read failed, falling back to store",
			zap.String("key", key), zap.Error(err))
		ok = false
	}
	if ok {
		if raw == nullMarker {
			return layer{}, nil
		}
		data, err := decodeData([]byte(raw))
		if err == nil {
			return layer{data: data, found: true}, nil
		}
		l.log.Warn("discarding corrupt settings cache entry", zap.String("key", key), zap.Error(err))
		l.deleteCache(ctx, key)
	}

	// Fills only add: a writer that got there first holds the newer value.
	fill := l.fills.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()
		data, found, err := l.store.Fetch(fctx, entity, principal)
		if err != nil || !found {
			return []byte(nil), err
		}
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		l.addCache(fctx, key, string(encoded))
		return encoded, nil
	})

	var res singleflight.Result
	select {
	case res = <-fill:
	case <-ctx.Done():
		return layer{}, fmt.Errorf("fetch settings %s for %q: %w", entity, principal, ctx.Err())
	}
	if res.Err != nil {
		return layer{}, fmt.Errorf("fetch settings %s for %q: %w", entity, principal, res.Err)
	}

	encoded, _ := res.Val.([]byte)
	if encoded == nil {
		return layer{fromStore: true}, nil
	}
	data, err := decodeData(encoded)
	if err != nil {
		return layer{}, fmt.Errorf("decode settings %s for %q: %w", entity, principal, err)
	}
	return layer{data: data, found: true, fromStore: true}, nil
}

func (l *loader) save(ctx context.Context, entity, principal string, data map[string]any) error {
	if err := l.store.Save(ctx, entity, principal, data); err != nil {
		return fmt.Errorf("%w: save %s for %q: %w", ErrStorageIntegrity, entity, principal, err)
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		// The store accepted it, so the next read repopulates the entry.
		l.deleteCache(ctx, CacheKey(principal, entity))
		return nil
	}
	l.setCache(ctx, CacheKey(principal, entity), string(encoded))
	return nil
}

func (l *loader) purge(ctx context.Context, entity, principal string) error {
	if err := l.store.Delete(ctx, entity, principal); err != nil {
		return fmt.Errorf("%w: delete %s for %q: %w", ErrStorageIntegrity, entity, principal, err)
	}
	l.setCache(ctx, CacheKey(principal, entity), nullMarker)
	return nil
}

func (l *loader) setCache(ctx context.Context, key, value string) {
	if err := l.cache.Set(ctx, key, value); err != nil {
		l.log.Warn("settings cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (l *loader) addCache(ctx context.Context, key, value string) {
	if _, err := l.cache.Add(ctx, key, value); err != nil {
		l.log.Warn("settings cache fill failed", zap.String("key", key), zap.Error(err))
	}
}

func (l *loader) deleteCache(ctx context.Context, key string) {
	if err := l.cache.Delete(ctx, key); err != nil {
		l.log.Warn("settings cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

func decodeData(raw []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = make(map[string]any)
	}
	return data, nil
}
