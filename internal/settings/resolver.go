// resolver.go
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
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Resolver is the settings subsystem: the entry point request handlers and
// background jobs use to read and write catalogs.
type Resolver struct {
	registry *Registry
	loader   *loader
	checker  PermissionChecker
	files    FileRemover
	log      *zap.Logger
}

// ResolverOption configures NewResolver.
type ResolverOption func(*Resolver)

// WithPermissionChecker replaces the default GrantChecker.
func WithPermissionChecker(pc PermissionChecker) ResolverOption {
	return func(r *Resolver) { r.checker = pc }
}

// WithFileRemover sets where replaced file ids are sent.
func WithFileRemover(fr FileRemover) ResolverOption {
	return func(r *Resolver) { r.files = fr }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.log = log }
}

// NewResolver wires the registry to its durable store and shared cache.
func NewResolver(reg *Registry, store Store, cache Cache, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry: reg,
		checker:  GrantChecker{},
		files:    discardFiles{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.loader = &loader{store: store, cache: cache, log: r.log}
	return r
}

// Registry returns the entity registry.
func (r *Resolver) Registry() *Registry { return r.registry }

type callConfig struct {
	app       string
	principal *string
	verify    bool
}

// CallOption adjusts a single resolver call.
type CallOption func(*callConfig)

// FromApp qualifies unqualified entity names with app.
func FromApp(app string) CallOption { return func(c *callConfig) { c.app = app } }

// AsPrincipal resolves personal entities for id instead of the request principal.
func AsPrincipal(id string) CallOption { return func(c *callConfig) { c.principal = &id } }

// AsGlobal resolves the global layer regardless of the request principal.
func AsGlobal() CallOption { return AsPrincipal(Global) }

// VerifyPermitted requires the request principal to hold the entity's scopes.
func VerifyPermitted() CallOption { return func(c *callConfig) { c.verify = true } }

func newCallConfig(opts []CallOption) callConfig {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (r *Resolver) request(ctx context.Context) *Request {
	if req := FromContext(ctx); req != nil {
		return req
	}
	return NewRequest("")
}

func (r *Resolver) lookup(cfg callConfig, name string) (*Entity, error) {
	return r.registry.Lookup(QualifyName(cfg.app, name))
}

func effectivePrincipal(e *Entity, req *Request, cfg callConfig) string {
	switch {
	case !e.AllowPersonal:
		return Global
	case cfg.principal != nil:
		return *cfg.principal
	}
	return req.PrincipalID
}

func (r *Resolver) authorize(ctx context.Context, req *Request, e *Entity) error {
	scopes := e.Requires()
	ok, err := r.checker.Permitted(ctx, req, scopes)
	if err != nil {
		return fmt.Errorf("check permissions for %s: %w", e.Name, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s requires %s", ErrAccessDenied, e.Name, strings.Join(scopes, ", "))
	}
	return nil
}

func (r *Resolver) catalog(ctx context.Context, req *Request, e *Entity, cfg callConfig) (*Catalog, error) {
	principal := effectivePrincipal(e, req, cfg)
	if c, ok := req.memoized(e.Name, principal); ok {
		return c, nil
	}
	c, err := r.loader.load(ctx, e, principal)
	if err != nil {
		return nil, err
	}
	return req.memoize(c), nil
}

// Get returns the catalog of an entity for the effective principal. Within
// one request the same catalog instance is returned for the same pair.
func (r *Resolver) Get(ctx context.Context, name string, opts ...CallOption) (*Catalog, error) {
	cfg := newCallConfig(opts)
	e, err := r.lookup(cfg, name)
	if err != nil {
		return nil, err
	}
	req := r.request(ctx)
	if cfg.verify {
		if err := r.authorize(ctx, req, e); err != nil {
			return nil, err
		}
	}
	return r.catalog(ctx, req, e, cfg)
}

// GetAll resolves every registered entity. With VerifyPermitted, entities the
// principal may not access are left out.
func (r *Resolver) GetAll(ctx context.Context, opts ...CallOption) (map[string]*Catalog, error) {
	cfg := newCallConfig(opts)
	req := r.request(ctx)
	out := make(map[string]*Catalog)
	for _, e := range r.registry.Enumerate() {
		if cfg.verify {
			if err := r.authorize(ctx, req, e); err != nil {
				if isAccessDenied(err) {
					continue
				}
				return nil, err
			}
		}
		c, err := r.catalog(ctx, req, e, cfg)
		if err != nil {
			return nil, err
		}
		out[e.Name] = c
	}
	return out, nil
}

func isAccessDenied(err error) bool { return errors.Is(err, ErrAccessDenied) }

type change struct {
	key    string
	value  any
	revert bool
}

type removal struct {
	entity string
	id     string
}

// Update writes values into the entity's catalog and saves it. Keys the
// entity does not declare are skipped; a nil value reverts the key to its
// default. Nothing is applied when any value is invalid.
func (r *Resolver) Update(ctx context.Context, name string, values map[string]any, opts ...CallOption) error {
	cfg := newCallConfig(opts)
	e, err := r.lookup(cfg, name)
	if err != nil {
		return err
	}
	req := r.request(ctx)
	if cfg.verify {
		if err := r.authorize(ctx, req, e); err != nil {
			return err
		}
	}

	changes, err := r.validate(e, values)
	if err != nil {
		return err
	}

	c, err := r.catalog(ctx, req, e, cfg)
	if err != nil {
		return err
	}

	previous := c.Values()
	for _, ch := range changes {
		if ch.revert {
			_ = c.Delete(ch.key)
			continue
		}
		c.mu.Lock()
		c.values[ch.key] = ch.value
		c.mu.Unlock()
	}
	current := c.Values()

	if err := c.Save(ctx, false); err != nil {
		c.restore(previous)
		return err
	}

	for _, rm := range replacedFiles(e, changes, previous, current) {
		if err := r.files.Remove(ctx, rm.entity, rm.id); err != nil {
			r.log.Error("failed to remove replaced settings file",
				zap.String("entity", e.Name), zap.String("storage", rm.entity),
				zap.String("file", rm.id), zap.Error(err))
			continue
		}
		r.log.Info("removed replaced settings file",
			zap.String("entity", e.Name), zap.String("storage", rm.entity), zap.String("file", rm.id))
	}
	return nil
}

func (r *Resolver) validate(e *Entity, values map[string]any) ([]change, error) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs *multierror.Error
	changes := make([]change, 0, len(keys))
	for _, key := range keys {
		f, ok := e.Field(key)
		if !ok {
			r.log.Debug("skipping undeclared settings property",
				zap.String("entity", e.Name), zap.String("property", key))
			continue
		}
		value := values[key]
		if value == nil {
			changes = append(changes, change{key: key, revert: true})
			continue
		}
		normalized, err := f.Property.Validate(value)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		changes = append(changes, change{key: key, value: normalized})
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("update %s: %w", e.Name, err)
	}
	return changes, nil
}

func replacedFiles(e *Entity, changes []change, previous, current map[string]any) []removal {
	var out []removal
	for _, ch := range changes {
		f, _ := e.Field(ch.key)
		fp, ok := f.Property.(fileProperty)
		if !ok {
			continue
		}
		oldID, _ := previous[ch.key].(string)
		newID, _ := current[ch.key].(string)
		if oldID != "" && oldID != newID {
			out = append(out, removal{entity: fp.storageEntity(), id: oldID})
		}
	}
	return out
}

// Reset applies Update to each entity in name order, stopping at the first error.
func (r *Resolver) Reset(ctx context.Context, valuesPerEntity map[string]map[string]any, opts ...CallOption) error {
	names := make([]string, 0, len(valuesPerEntity))
	for name := range valuesPerEntity {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Update(ctx, name, valuesPerEntity[name], opts...); err != nil {
			return err
		}
	}
	return nil
}

// Purge deletes the durable record of the effective layer, so the entity
// falls back to the next layer down.
func (r *Resolver) Purge(ctx context.Context, name string, opts ...CallOption) error {
	cfg := newCallConfig(opts)
	e, err := r.lookup(cfg, name)
	if err != nil {
		return err
	}
	req := r.request(ctx)
	if cfg.verify {
		if err := r.authorize(ctx, req, e); err != nil {
			return err
		}
	}
	if err := r.loader.purge(ctx, e.Name, effectivePrincipal(e, req, cfg)); err != nil {
		return err
	}
	req.forgetEntity(e.Name)
	return nil
}
