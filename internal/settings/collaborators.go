// collaborators.go
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

	mapset "github.com/deckarep/golang-set/v2"
)

// Global is the principal of the baseline layer.
const Global = ""

// Store is the durable, authoritative backend, keyed by (entity, principal).
// principal is Global for the baseline record.
type Store interface {
	// Fetch returns the record data and whether the record exists.
	Fetch(ctx context.Context, entity, principal string) (map[string]any, bool, error)
	// Save fetches or creates the record under a write lock and replaces its data.
	Save(ctx context.Context, entity, principal string, data map[string]any) error
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, entity, principal string) error
}

// Cache is the shared string key-value cache. Get reports ok=false for a
// missing key.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Add stores value only when key is absent and reports whether it did.
	Add(ctx context.Context, key, value string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// PermissionChecker reports whether the principal of req holds all scopes.
type PermissionChecker interface {
	Permitted(ctx context.Context, req *Request, scopes []string) (bool, error)
}

// FileRemover disposes of a file that a file or image property no longer references.
type FileRemover interface {
	Remove(ctx context.Context, storageEntity, fileID string) error
}

// GrantChecker permits a request when its granted scopes cover the required ones.
type GrantChecker struct{}

// Permitted implements PermissionChecker.
func (GrantChecker) Permitted(_ context.Context, req *Request, scopes []string) (bool, error) {
	if len(scopes) == 0 {
		return true, nil
	}
	if req == nil {
		return false, nil
	}
	return req.Grants().Contains(scopes...), nil
}

type discardFiles struct{}

func (discardFiles) Remove(context.Context, string, string) error { return nil }

var _ PermissionChecker = GrantChecker{}

// NewGrants builds a scope set.
func NewGrants(scopes ...string) mapset.Set[string] {
	return mapset.NewSet(scopes...)
}
