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

package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/localnerve/settingsdb/internal/settings"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// RequestContext starts the settings request context: an id (taken from the
// request header when it is a uuid), an anonymous principal, and the API
// version from X-Api-Version.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)

		req := settings.NewRequest("")
		req.ID = id
		c.SetUserContext(settings.NewContext(c.UserContext(), req))

		version := c.Get("X-Api-Version", "1.0.0")
		// Support version aliases
		if version == "1.0" {
			version = "1.0.0"
		}
		c.Locals("apiVersion", version)

		return c.Next()
	}
}

// SettingsRequest returns the settings request of c, starting one if the
// RequestContext middleware did not run.
func SettingsRequest(c *fiber.Ctx) *settings.Request {
	if req := settings.FromContext(c.UserContext()); req != nil {
		return req
	}
	req := settings.NewRequest("")
	c.SetUserContext(settings.NewContext(c.UserContext(), req))
	return req
}
