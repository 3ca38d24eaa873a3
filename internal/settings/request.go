// request.go
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
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Request is the request-local settings context: who is asking, which scopes
// they hold, and the catalogs already materialized for this request.
// It is discarded with the request.
type Request struct {
	ID          string
	PrincipalID string

	grants mapset.Set[string]

	mu   sync.Mutex
	memo map[string]map[string]*Catalog
}

// NewRequest starts a request context. An empty principalID is anonymous.
func NewRequest(principalID string, grants ...string) *Request {
	return &Request{
		PrincipalID: principalID,
		grants:      mapset.NewSet(grants...),
		memo:        make(map[string]map[string]*Catalog),
	}
}

// Grants returns the scopes held by the principal.
func (r *Request) Grants() mapset.Set[string] { return r.grants }

// Grant adds scopes to the principal.
func (r *Request) Grant(scopes ...string) { r.grants.Append(scopes...) }

// Anonymous reports whether no principal is attached.
func (r *Request) Anonymous() bool { return r.PrincipalID == "" }

func (r *Request) memoized(entity, principal string) (*Catalog, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.memo[entity][principal]
	return c, ok
}

// memoize stores c unless another catalog won the race, in which case that one is returned.
func (r *Request) memoize(c *Catalog) *Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	byPrincipal, ok := r.memo[c.entity.Name]
	if !ok {
		byPrincipal = make(map[string]*Catalog)
		r.memo[c.entity.Name] = byPrincipal
	}
	if existing, ok := byPrincipal[c.principal]; ok {
		return existing
	}
	byPrincipal[c.principal] = c
	return c
}

func (r *Request) forgetEntity(entity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.memo, entity)
}

type requestKey struct{}

// NewContext attaches req to ctx.
func NewContext(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, requestKey{}, req)
}

// FromContext returns the request context attached to ctx, or nil.
func FromContext(ctx context.Context) *Request {
	req, _ := ctx.Value(requestKey{}).(*Request)
	return req
}
