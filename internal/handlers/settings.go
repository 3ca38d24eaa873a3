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

package handlers

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/settingsdb/internal/middleware"
	"github.com/localnerve/settingsdb/internal/services"
	"github.com/localnerve/settingsdb/internal/settings"
	"github.com/localnerve/settingsdb/internal/types"
	"github.com/localnerve/settingsdb/internal/utils"
)

// SettingsHandler handles settings routes
type SettingsHandler struct {
	Resolver *settings.Resolver
	Files    *services.FileQueue
	// GlobalScope is required to write the global layer of a personal entity
	// and to manage the file removal queue.
	GlobalScope string
}

// CatalogResponse is one resolved entity
type CatalogResponse struct {
	Entity    string         `json:"entity"`
	Principal string         `json:"principal,omitempty"`
	Values    map[string]any `json:"values"`
}

// UpdateInput is the body of an entity update
type UpdateInput struct {
	Values map[string]any `json:"values"`
	Global bool           `json:"global,omitempty"`
}

// ResetInput is the body of a multi-entity reset
type ResetInput struct {
	Entities map[string]map[string]any `json:"entities"`
}

// DeleteInput is the body of a property delete
type DeleteInput struct {
	Properties types.FlexList[string] `json:"properties,omitempty"`
	Global     bool                   `json:"global,omitempty"`
}

// AcknowledgeInput is the body of a file removal acknowledgement
type AcknowledgeInput struct {
	IDs types.FlexList[string] `json:"ids"`
}

// Routes mounts the settings routes on r. optional authenticates when a
// session is present, required rejects requests without one.
func (h *SettingsHandler) Routes(r fiber.Router, optional, required fiber.Handler) {
	r.Get("/", optional, h.GetAll)
	r.Get("/schema", optional, h.GetSchema)
	r.Get("/files/removals", required, h.GetFileRemovals)
	r.Post("/files/removals/ack", required, h.AcknowledgeFileRemovals)
	r.Get("/:entity", optional, h.GetEntity)
	r.Post("/", required, h.Reset)
	r.Post("/:entity", required, h.UpdateEntity)
	r.Delete("/:entity", required, h.DeleteEntity)
}

func toResponse(c *settings.Catalog) CatalogResponse {
	return CatalogResponse{
		Entity:    c.Entity().Name,
		Principal: c.Principal(),
		Values:    c.Resolved(),
	}
}

// requireGlobalScope checks the scope needed for global writes on behalf of principals.
func (h *SettingsHandler) requireGlobalScope(c *fiber.Ctx) error {
	if h.GlobalScope == "" || middleware.SettingsRequest(c).Grants().Contains(h.GlobalScope) {
		return nil
	}
	return fmt.Errorf("%w: global settings require %s", settings.ErrAccessDenied, h.GlobalScope)
}

// writeOptions returns the call options of a mutation on name.
func (h *SettingsHandler) writeOptions(c *fiber.Ctx, name string, global bool) ([]settings.CallOption, error) {
	opts := []settings.CallOption{settings.VerifyPermitted()}
	if !global {
		return opts, nil
	}
	e, err := h.Resolver.Registry().Lookup(name)
	if err != nil {
		return nil, err
	}
	if e.AllowPersonal {
		if err := h.requireGlobalScope(c); err != nil {
			return nil, err
		}
	}
	return append(opts, settings.AsGlobal()), nil
}

// GetAll handles GET /api/settings
// @Summary Get settings catalogs
// @Description Get the resolved catalogs of every entity the principal may access, optionally filtered
// @Tags Settings
// @Produce json
// @Param entities query string false "Comma-separated list of entities to include"
// @Success 200 {array} CatalogResponse
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /settings [get]
func (h *SettingsHandler) GetAll(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if names := parseEntities(c); names != nil {
		out := make([]CatalogResponse, 0, len(names))
		for _, name := range names {
			catalog, err := h.Resolver.Get(ctx, name, settings.VerifyPermitted())
			if err != nil {
				return settingsError(c, err, "getAll")
			}
			out = append(out, toResponse(catalog))
		}
		return c.Status(fiber.StatusOK).JSON(out)
	}

	catalogs, err := h.Resolver.GetAll(ctx, settings.VerifyPermitted())
	if err != nil {
		return settingsError(c, err, "getAll")
	}
	names := make([]string, 0, len(catalogs))
	for name := range catalogs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]CatalogResponse, 0, len(names))
	for _, name := range names {
		out = append(out, toResponse(catalogs[name]))
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

// GetSchema handles GET /api/settings/schema
// @Summary Get the settings schema
// @Description Get the administration schema of every entity the principal may access, with current values
// @Tags Settings
// @Produce json
// @Success 200 {array} settings.Section
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /settings/schema [get]
func (h *SettingsHandler) GetSchema(c *fiber.Ctx) error {
	sections, err := h.Resolver.Schema(c.UserContext())
	if err != nil {
		return settingsError(c, err, "getSchema")
	}
	return c.Status(fiber.StatusOK).JSON(sections)
}

// GetEntity handles GET /api/settings/:entity
// @Summary Get a settings catalog
// @Description Get the resolved catalog of one entity
// @Tags Settings
// @Produce json
// @Param entity path string true "Entity name"
// @Param global query bool false "Resolve the global layer"
// @Success 200 {object} CatalogResponse
// @Success 204
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /settings/{entity} [get]
func (h *SettingsHandler) GetEntity(c *fiber.Ctx) error {
	opts := []settings.CallOption{settings.VerifyPermitted()}
	if c.QueryBool("global") {
		opts = append(opts, settings.AsGlobal())
	}

	catalog, err := h.Resolver.Get(c.UserContext(), c.Params("entity"), opts...)
	if err != nil {
		return settingsError(c, err, "getEntity")
	}

	result := toResponse(catalog)
	if len(result.Values) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// UpdateEntity handles POST /api/settings/:entity
// @Summary Update a settings entity
// @Description Update values of one entity. Unknown keys are ignored, null reverts a key to its default.
// @Tags Settings
// @Accept json
// @Produce json
// @Param entity path string true "Entity name"
// @Param body body UpdateInput true "Values to write"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /settings/{entity} [post]
func (h *SettingsHandler) UpdateEntity(c *fiber.Ctx) error {
	var input UpdateInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "settings.updateEntity")
	}
	if len(input.Values) == 0 {
		return utils.ErrorResponse(c, "values are required", fiber.StatusBadRequest, "settings.updateEntity")
	}

	name := c.Params("entity")
	opts, err := h.writeOptions(c, name, input.Global)
	if err != nil {
		return settingsError(c, err, "updateEntity")
	}
	if err := h.Resolver.Update(c.UserContext(), name, input.Values, opts...); err != nil {
		return settingsError(c, err, "updateEntity")
	}
	return utils.MutationSuccessResponse(c, []string{name})
}

// Reset handles POST /api/settings
// @Summary Reset several settings entities
// @Description Update several entities in name order, stopping at the first failure
// @Tags Settings
// @Accept json
// @Produce json
// @Param body body ResetInput true "Values per entity"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /settings [post]
func (h *SettingsHandler) Reset(c *fiber.Ctx) error {
	var input ResetInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "settings.reset")
	}
	if len(input.Entities) == 0 {
		return utils.ErrorResponse(c, "entities are required", fiber.StatusBadRequest, "settings.reset")
	}

	if err := h.Resolver.Reset(c.UserContext(), input.Entities, settings.VerifyPermitted()); err != nil {
		return settingsError(c, err, "reset")
	}

	names := make([]string, 0, len(input.Entities))
	for name := range input.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return utils.MutationSuccessResponse(c, names)
}

// DeleteEntity handles DELETE /api/settings/:entity
// @Summary Delete settings values
// @Description Revert the listed properties to their defaults, or without properties drop the layer record entirely
// @Tags Settings
// @Accept json
// @Produce json
// @Param entity path string true "Entity name"
// @Param body body DeleteInput false "Properties to revert"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /settings/{entity} [delete]
func (h *SettingsHandler) DeleteEntity(c *fiber.Ctx) error {
	var input DeleteInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "settings.deleteEntity")
		}
	}

	name := c.Params("entity")
	opts, err := h.writeOptions(c, name, input.Global)
	if err != nil {
		return settingsError(c, err, "deleteEntity")
	}

	if len(input.Properties) == 0 {
		err = h.Resolver.Purge(c.UserContext(), name, opts...)
	} else {
		values := make(map[string]any, len(input.Properties))
		for _, prop := range input.Properties.Unique() {
			values[prop] = nil
		}
		err = h.Resolver.Update(c.UserContext(), name, values, opts...)
	}
	if err != nil {
		return settingsError(c, err, "deleteEntity")
	}
	return utils.MutationSuccessResponse(c, []string{name})
}

// GetFileRemovals handles GET /api/settings/files/removals
// @Summary List pending file removals
// @Description List files that settings no longer reference, oldest first
// @Tags Files
// @Produce json
// @Param limit query int false "Maximum number of entries" default(100)
// @Success 200 {array} models.FileRemoval
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /settings/files/removals [get]
func (h *SettingsHandler) GetFileRemovals(c *fiber.Ctx) error {
	if err := h.requireGlobalScope(c); err != nil {
		return settingsError(c, err, "getFileRemovals")
	}
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 1000 {
		return utils.ErrorResponse(c, "limit must be between 1 and 1000", fiber.StatusBadRequest, "settings.getFileRemovals")
	}

	pending, err := h.Files.Pending(c.UserContext(), limit)
	if err != nil {
		return settingsError(c, err, "getFileRemovals")
	}
	return c.Status(fiber.StatusOK).JSON(pending)
}

// AcknowledgeFileRemovals handles POST /api/settings/files/removals/ack
// @Summary Acknowledge file removals
// @Description Mark queued file removals as processed
// @Tags Files
// @Accept json
// @Produce json
// @Param body body AcknowledgeInput true "Removal ids"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /settings/files/removals/ack [post]
func (h *SettingsHandler) AcknowledgeFileRemovals(c *fiber.Ctx) error {
	if err := h.requireGlobalScope(c); err != nil {
		return settingsError(c, err, "acknowledgeFileRemovals")
	}
	var input AcknowledgeInput
	if err := c.BodyParser(&input); err != nil || len(input.IDs) == 0 {
		return utils.ErrorResponse(c, "ids are required", fiber.StatusBadRequest, "settings.acknowledgeFileRemovals")
	}

	n, err := h.Files.Acknowledge(c.UserContext(), input.IDs.Unique()...)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, services.ErrInvalidRemovalID) {
			status = fiber.StatusBadRequest
		}
		return utils.ErrorResponse(c, err.Error(), status, "settings.acknowledgeFileRemovals")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "acknowledged": n})
}
