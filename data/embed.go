// embed.go
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

package data

import (
	_ "embed"
)

// InitdbMariaDBTables creates the settings tables.
//
//go:embed initdb/mariadb/002-ddl-tables.sql
var InitdbMariaDBTables string

// InitdbMariaDBPrivileges grants the application user access to the settings
// tables. {{database}} and {{app_user}} are substituted before execution.
//
//go:embed initdb/mariadb/003-ddl-privileges.sql
var InitdbMariaDBPrivileges string
