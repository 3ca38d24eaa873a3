// access.go
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

package models

import (
	"time"
)

// PrincipalScope grants one access scope to a principal
type PrincipalScope struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	PrincipalID string `gorm:"size:64;not null;index:idx_principal_scope,unique"`
	Scope       string `gorm:"size:255;not null;index:idx_principal_scope,unique"`
	CreatedAt   time.Time
}

// FileRemoval is a queued disposal of a file no longer referenced by any setting
type FileRemoval struct {
	ID            string     `gorm:"type:char(36);primaryKey" json:"id"`
	StorageEntity string     `gorm:"size:255;not null;index" json:"storageEntity"`
	FileID        string     `gorm:"size:255;not null" json:"fileId"`
	RequestedAt   time.Time  `json:"requestedAt"`
	ProcessedAt   *time.Time `gorm:"index" json:"processedAt,omitempty"`
}

// TableName overrides the table name for PrincipalScope
func (PrincipalScope) TableName() string {
	return "principal_scopes"
}

// TableName overrides the table name for FileRemoval
func (FileRemoval) TableName() string {
	return "file_removals"
}
