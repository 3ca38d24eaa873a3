// store.go
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
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/localnerve/settingsdb/internal/models"
	"github.com/localnerve/settingsdb/internal/settings"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/hints"
)

const maxSaveAttempts = 3

// MySQL/MariaDB server errors worth retrying the whole transaction for.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// GormStore is the durable settings store: one table for the global layer,
// one for personal overrides keyed by (principal, entity).
type GormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewGormStore creates a store over db.
func NewGormStore(db *gorm.DB, log *zap.Logger) *GormStore {
	return &GormStore{db: db, log: log}
}

func (s *GormStore) session(ctx context.Context, db *gorm.DB, op string) *gorm.DB {
	return db.WithContext(ctx).
		Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Clauses(hints.CommentBefore("select", "settingsdb:"+op))
}

// Fetch implements settings.Store.
func (s *GormStore) Fetch(ctx context.Context, entity, principal string) (map[string]any, bool, error) {
	q := s.session(ctx, s.db, "fetch")

	var doc models.JSON
	var err error
	if principal == settings.Global {
		var rec models.GlobalSettings
		err = q.Where("entity_name = ?", entity).First(&rec).Error
		doc = rec.Data
	} else {
		var rec models.PersonalSettings
		err = q.Where("principal_id = ? AND entity_name = ?", principal, entity).First(&rec).Error
		doc = rec.Data
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch %s for %q: %w", entity, principal, err)
	}

	data, err := doc.Map()
	if err != nil {
		return nil, false, fmt.Errorf("decode %s for %q: %w", entity, principal, err)
	}
	return data, true, nil
}

// Save implements settings.Store. The record is fetched or created under a
// row lock and its data replaced; deadlocks and create races are retried.
func (s *GormStore) Save(ctx context.Context, entity, principal string, data map[string]any) error {
	doc, err := models.NewJSON(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", entity, err)
	}

	for attempt := 1; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if principal == settings.Global {
				return saveGlobal(tx, entity, doc)
			}
			return savePersonal(tx, principal, entity, doc)
		})
		if err == nil || attempt >= maxSaveAttempts || !retryable(err) {
			break
		}
		s.log.Warn("retrying settings save",
			zap.String("entity", entity), zap.String("principal", principal),
			zap.Int("attempt", attempt), zap.Error(err))
	}
	if err != nil {
		return fmt.Errorf("save %s for %q: %w", entity, principal, err)
	}
	return nil
}

func saveGlobal(tx *gorm.DB, entity string, doc models.JSON) error {
	var rec models.GlobalSettings
	if err := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(models.GlobalSettings{EntityName: entity}).
		Attrs(models.GlobalSettings{Data: doc}).
		FirstOrCreate(&rec).Error; err != nil {
		return err
	}
	return tx.Model(&rec).Updates(map[string]any{
		"data":    doc,
		"version": gorm.Expr("version + 1"),
	}).Error
}

func savePersonal(tx *gorm.DB, principal, entity string, doc models.JSON) error {
	var rec models.PersonalSettings
	if err := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(models.PersonalSettings{PrincipalID: principal, EntityName: entity}).
		Attrs(models.PersonalSettings{Data: doc}).
		FirstOrCreate(&rec).Error; err != nil {
		return err
	}
	return tx.Model(&rec).Updates(map[string]any{
		"data":    doc,
		"version": gorm.Expr("version + 1"),
	}).Error
}

// Delete implements settings.Store.
func (s *GormStore) Delete(ctx context.Context, entity, principal string) error {
	var err error
	if principal == settings.Global {
		err = s.db.WithContext(ctx).Where("entity_name = ?", entity).Delete(&models.GlobalSettings{}).Error
	} else {
		err = s.db.WithContext(ctx).
			Where("principal_id = ? AND entity_name = ?", principal, entity).
			Delete(&models.PersonalSettings{}).Error
	}
	if err != nil {
		return fmt.Errorf("delete %s for %q: %w", entity, principal, err)
	}
	return nil
}

// Version returns the write count of a record, zero when it does not exist.
func (s *GormStore) Version(ctx context.Context, entity, principal string) (uint64, error) {
	q := s.session(ctx, s.db, "version")
	var versions []uint64
	var err error
	if principal == settings.Global {
		err = q.Model(&models.GlobalSettings{}).Where("entity_name = ?", entity).Pluck("version", &versions).Error
	} else {
		err = q.Model(&models.PersonalSettings{}).
			Where("principal_id = ? AND entity_name = ?", principal, entity).
			Pluck("version", &versions).Error
	}
	if err != nil || len(versions) == 0 {
		return 0, err
	}
	return versions[0], nil
}

func retryable(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDeadlock || mysqlErr.Number == mysqlLockWaitTimeout
	}
	return false
}

var _ settings.Store = (*GormStore)(nil)
