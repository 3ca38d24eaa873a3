// settings.go
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

// GlobalSettings is the baseline record of one settings entity
type GlobalSettings struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	EntityName string `gorm:"uniqueIndex;size:255;not null"`
	Data       JSON   `gorm:"not null"`
	Version    uint64 `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PersonalSettings is one principal's override record of a settings entity
type PersonalSettings struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	PrincipalID string `gorm:"size:64;not null;index:idx_principal_entity,unique"`
	EntityName  string `gorm:"size:255;not null;index:idx_principal_entity,unique"`
	Data        JSON   `gorm:"not null"`
	Version     uint64 `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the table name for GlobalSettings
func (GlobalSettings) TableName() string {
	return "settings_global"
}

// TableName overrides the table name for PersonalSettings
func (PersonalSettings) TableName() string {
	return "settings_personal"
}
