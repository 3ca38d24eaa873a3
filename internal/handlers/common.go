// common.go
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

package handlers

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/settingsdb/internal/settings"
	"github.com/localnerve/settingsdb/internal/types"
	"github.com/localnerve/settingsdb/internal/utils"
)

// parseEntities extracts entity names from query parameters,
// supporting both multiple 'entities' keys and comma-separated values.
func parseEntities(c *fiber.Ctx) []string {
	entityMap := make(map[string]struct{})

	// Visit all query arguments to collect multiple 'entities' parameters
	args := c.Context().QueryArgs()
	for key, value := range args.All() {
		if string(key) == "entities" {
			// Split by comma in case the value itself is comma-separated
			for _, v := range strings.Split(string(value), ",") {
				v = strings.TrimSpace(v)
				if v != "" {
					entityMap[v] = struct{}{}
				}
			}
		}
	}

	if len(entityMap) == 0 {
		return nil
	}

	entities := make([]string, 0, len(entityMap))
	for k := range entityMap {
		entities = append(entities, k)
	}
	sort.Strings(entities)

	return entities
}

// settingsError maps settings errors onto the standard error response.
func settingsError(c *fiber.Ctx, err error, op string) error {
	errorType := "settings." + op
	switch {
	case errors.Is(err, settings.ErrUnknownEntity):
		return utils.NotFoundResponse(c, err.Error())
	case errors.Is(err, settings.ErrUnknownProperty), errors.Is(err, settings.ErrInvalidValue):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, errorType)
	case errors.Is(err, settings.ErrAccessDenied):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, errorType)
	}
	return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, errorType)
}

// ErrorHandler handles errors returned by handlers and middleware
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	var customErr *types.CustomError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &customErr):
		code = customErr.Code
		message = customErr.Message
		errorType = customErr.Type
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message
	}

	return utils.ErrorResponse(c, message, code, errorType)
}

// NotFound is the fallback route handler
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"status":    fiber.StatusNotFound,
		"message":   "[404] Resource Not Found",
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
	})
}
