// files.go
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
	"time"

	"github.com/google/uuid"
	"github.com/localnerve/settingsdb/internal/models"
	"github.com/localnerve/settingsdb/internal/settings"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidRemovalID is returned when an acknowledged id is not a removal id.
var ErrInvalidRemovalID = errors.New("invalid file removal id")

// FileQueue records files that settings no longer reference. The file
// storage service reads the queue, deletes the files and acknowledges them.
type FileQueue struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewFileQueue creates a queue over the file_removals table.
func NewFileQueue(db *gorm.DB, log *zap.Logger) *FileQueue {
	return &FileQueue{db: db, log: log}
}

// Remove implements settings.FileRemover.
func (q *FileQueue) Remove(ctx context.Context, storageEntity, fileID string) error {
	rec := models.FileRemoval{
		ID:            uuid.NewString(),
		StorageEntity: storageEntity,
		FileID:        fileID,
		RequestedAt:   time.Now().UTC(),
	}
	if err := q.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("queue removal of %s/%s: %w", storageEntity, fileID, err)
	}
	q.log.Debug("queued file removal", zap.String("id", rec.ID),
		zap.String("storage", storageEntity), zap.String("file", fileID))
	return nil
}

// Pending returns up to limit unprocessed removals, oldest first.
func (q *FileQueue) Pending(ctx context.Context, limit int) ([]models.FileRemoval, error) {
	var out []models.FileRemoval
	if err := q.db.WithContext(ctx).
		Where("processed_at IS NULL").
		Order("requested_at, id").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list pending file removals: %w", err)
	}
	return out, nil
}

// Acknowledge marks removals processed and returns how many were updated.
func (q *FileQueue) Acknowledge(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return 0, fmt.Errorf("%w %q: %v", ErrInvalidRemovalID, id, err)
		}
	}
	res := q.db.WithContext(ctx).Model(&models.FileRemoval{}).
		Where("id IN ? AND processed_at IS NULL", ids).
		Update("processed_at", time.Now().UTC())
	if res.Error != nil {
		return 0, fmt.Errorf("acknowledge file removals: %w", res.Error)
	}
	return res.RowsAffected, nil
}

var _ settings.FileRemover = (*FileQueue)(nil)
