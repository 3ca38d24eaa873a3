// errors.go
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

import "errors"

var (
	// ErrUnknownEntity is returned when an entity name is not registered.
	ErrUnknownEntity = errors.New("unknown settings entity")
	// ErrUnknownProperty is returned on direct access to a property the entity does not declare.
	ErrUnknownProperty = errors.New("unknown settings property")
	// ErrInvalidValue is returned when a value fails its descriptor's constraints.
	ErrInvalidValue = errors.New("invalid settings value")
	// ErrAccessDenied is returned when the current principal lacks a required scope.
	ErrAccessDenied = errors.New("settings access denied")
	// ErrStorageIntegrity is returned when the durable store rejects a write.
	ErrStorageIntegrity = errors.New("settings storage integrity")
	// ErrCacheUnavailable marks shared cache failures. The resolver never surfaces it.
	ErrCacheUnavailable = errors.New("settings cache unavailable")
	// ErrDuplicateEntity is returned when an entity name is registered twice.
	ErrDuplicateEntity = errors.New("duplicate settings entity")
	// ErrRegistryFrozen is returned by Register and DeclareApplication after Freeze.
	ErrRegistryFrozen = errors.New("settings registry is frozen")
)
