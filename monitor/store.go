package monitor

import (
	"context"

	"slopesentry/models"

	"gorm.io/gorm"
)

// GormStore stores readings through gorm.
type GormStore struct {
	DB *gorm.DB
}

func (s GormStore) SaveReading(ctx context.Context, rec *models.SensorReading) error {
	return s.DB.WithContext(ctx).Create(rec).Error
}
