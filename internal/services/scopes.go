// scopes.go
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

package services

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/localnerve/settingsdb/internal/models"
	"github.com/localnerve/settingsdb/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScopeChecker permits a request when the scopes granted to it, together
// with the scopes stored for its principal, cover the required ones.
type ScopeChecker struct {
	db *gorm.DB
}

// NewScopeChecker creates a checker over the principal_scopes table.
func NewScopeChecker(db *gorm.DB) *ScopeChecker {
	return &ScopeChecker{db: db}
}

// Permitted implements settings.PermissionChecker. Stored scopes are added
// to the request grants, so later checks in the request skip the database.
func (s *ScopeChecker) Permitted(ctx context.Context, req *settings.Request, scopes []string) (bool, error) {
	if len(scopes) == 0 {
		return true, nil
	}
	if req == nil || req.Anonymous() {
		return false, nil
	}
	if req.Grants().Contains(scopes...) {
		return true, nil
	}

	stored, err := s.Scopes(ctx, req.PrincipalID)
	if err != nil {
		return false, err
	}
	req.Grant(stored.ToSlice()...)
	return req.Grants().Contains(scopes...), nil
}

// Scopes returns the scopes stored for principal.
func (s *ScopeChecker) Scopes(ctx context.Context, principal string) (mapset.Set[string], error) {
	var scopes []string
	if err := s.db.WithContext(ctx).Model(&models.PrincipalScope{}).
		Where("principal_id = ?", principal).
		Pluck("scope", &scopes).Error; err != nil {
		return nil, fmt.Errorf("load scopes for %q: %w", principal, err)
	}
	return mapset.NewSet(scopes...), nil
}

// GrantScopes stores scopes for principal. Existing grants are kept.
func (s *ScopeChecker) GrantScopes(ctx context.Context, principal string, scopes ...string) error {
	if len(scopes) == 0 {
		return nil
	}
	rows := make([]models.PrincipalScope, 0, len(scopes))
	for _, scope := range scopes {
		rows = append(rows, models.PrincipalScope{PrincipalID: principal, Scope: scope})
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("grant scopes to %q: %w", principal, err)
	}
	return nil
}

// RevokeScopes removes stored scopes from principal.
func (s *ScopeChecker) RevokeScopes(ctx context.Context, principal string, scopes ...string) error {
	if len(scopes) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).
		Where("principal_id = ? AND scope IN ?", principal, scopes).
		Delete(&models.PrincipalScope{}).Error; err != nil {
		return fmt.Errorf("revoke scopes from %q: %w", principal, err)
	}
	return nil
}

var _ settings.PermissionChecker = (*ScopeChecker)(nil)
