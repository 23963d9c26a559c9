package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// SoftDelete marks the row with the given id in the table of model as deleted
// without removing it. Marking an already deleted row keeps the first mark.
func SoftDelete(ctx context.Context, db *gorm.DB, model any, id uint) error {
	result := db.WithContext(ctx).
		Model(model).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", time.Now().UTC())

	if result.Error != nil {
		return MapError(result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error
		if err != nil {
			return MapError(err)
		}
		if count == 0 {
			return ErrNotFound
		}
	}

	return nil
}
