// auth.go
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
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/settingsdb/internal/services"
	"github.com/localnerve/settingsdb/internal/settings"
	"github.com/localnerve/settingsdb/internal/types"
)

// SessionCookie is the authorizer session cookie name.
const SessionCookie = "cookie_session"

// RoleScopeApp qualifies session roles into scopes: role "admin" grants "role.admin".
const RoleScopeApp = "role"

// SessionValidator resolves a session cookie to its user.
type SessionValidator interface {
	ValidateSession(origin, cookie string) (*services.SessionUser, error)
}

// Authenticate attaches the session user as the settings principal and
// grants its roles as scopes. Without required, requests lacking a session
// cookie continue anonymously.
func Authenticate(validator SessionValidator, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := c.Cookies(SessionCookie)
		if session == "" {
			if !required {
				return c.Next()
			}
			return &types.CustomError{
				Code:    fiber.StatusUnauthorized,
				Message: fmt.Sprintf("Authorizer cookie %q not found", SessionCookie),
				Type:    "settings.authorization",
			}
		}

		user, err := validator.ValidateSession(c.BaseURL(), session)
		if err != nil {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: fmt.Sprintf("Invalid session: %v", err),
				Type:    "settings.authorization",
				Err:     err,
			}
		}

		req := SettingsRequest(c)
		req.PrincipalID = user.ID
		for _, role := range user.Roles {
			req.Grant(settings.QualifyName(RoleScopeApp, role))
		}
		c.Locals("user", user)

		return c.Next()
	}
}
