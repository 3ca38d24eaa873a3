// registrations.go
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

// Package registrations declares the settings entities built into the service.
package registrations

import (
	"github.com/localnerve/settingsdb/internal/settings"
)

// Application orders for the admin schema.
const (
	siteOrder = 1
	uiOrder   = 2
)

// RoleAdmin is the scope granted to sessions holding the authorizer "admin" role.
const RoleAdmin = "role.admin"

// Register declares the built-in entities on reg.
func Register(reg *settings.Registry) error {
	if err := reg.DeclareApplication("site", siteOrder); err != nil {
		return err
	}
	if err := reg.DeclareApplication("ui", uiOrder); err != nil {
		return err
	}

	if _, err := reg.Register("site", settings.Properties{
		{Name: "title", Property: settings.StringProperty{Meta: settings.Meta{Caption: "Site title", Order: 1}}},
		{Name: "description", Property: settings.TextProperty{Meta: settings.Meta{Caption: "Description", Order: 2}}},
		{Name: "keywords", Property: settings.StringListProperty{Meta: settings.Meta{Caption: "Keywords", Order: 3}}},
		{Name: "maintenance", Property: settings.BooleanProperty{Meta: settings.Meta{Caption: "Maintenance mode", Order: 4}, Inline: true}},
	},
		settings.Named("general"),
		settings.Captioned("General"),
		settings.Defaults(map[string]any{"title": "Jam Build", "maintenance": false}),
		settings.Requires(RoleAdmin),
		settings.Ordered(1),
		settings.Tab("site"),
	); err != nil {
		return err
	}

	if _, err := reg.Register("site", settings.Properties{
		{Name: "logo", Property: settings.ImageProperty{
			Meta:      settings.Meta{Caption: "Logo", Order: 1},
			Entity:    "branding",
			Clearable: true,
			Height:    64,
			Width:     256,
		}},
		{Name: "cover", Property: settings.ImageProperty{
			Meta:      settings.Meta{Caption: "Cover image", Order: 2},
			Entity:    "branding",
			Clearable: true,
			Cover:     true,
		}},
		{Name: "favicon", Property: settings.FileProperty{Meta: settings.Meta{Caption: "Favicon", Order: 3}, Entity: "branding"}},
		{Name: "accent", Property: settings.ChoiceProperty{
			Meta: settings.Meta{Caption: "Accent color", Order: 4},
			Options: []settings.Option{
				{Key: "blue", Caption: "Blue"},
				{Key: "green", Caption: "Green"},
				{Key: "orange", Caption: "Orange"},
			},
		}},
	},
		settings.Named("branding"),
		settings.Captioned("Branding"),
		settings.Defaults(map[string]any{"accent": "blue"}),
		settings.Requires(RoleAdmin),
		settings.Ordered(2),
		settings.Tab("site"),
	); err != nil {
		return err
	}

	_, err := reg.Register("ui", settings.Properties{
		{Name: "theme", Property: settings.ChoiceProperty{
			Meta: settings.Meta{Caption: "Theme", Order: 1},
			Options: []settings.Option{
				{Key: "system", Caption: "System"},
				{Key: "light", Caption: "Light"},
				{Key: "dark", Caption: "Dark"},
			},
		}},
		{Name: "fontSize", Property: settings.BoundedNumberProperty{
			Meta: settings.Meta{Caption: "Font size", Order: 2},
			Min:  10, Max: 24, Step: 1,
		}},
		{Name: "pageSize", Property: settings.NumberProperty{Meta: settings.Meta{Caption: "Items per page", Order: 3}}},
		{Name: "compact", Property: settings.BooleanProperty{Meta: settings.Meta{Caption: "Compact lists", Order: 4}, Inline: true}},
	},
		settings.Named("prefs"),
		settings.Captioned("Preferences"),
		settings.Defaults(map[string]any{"theme": "system", "fontSize": 16, "pageSize": 25, "compact": false}),
		settings.AllowPersonal(),
	)
	return err
}
