package repositories

import (
	"context"

	"energia-backend/internal/adapters/persistence/models"
	"energia-backend/internal/core/domain"

	"gorm.io/gorm"
)

// sensorRepository implements SensorRepository interface
type sensorRepository struct {
	db *gorm.DB
}

// NewSensorRepository creates a new sensor repository
func NewSensorRepository(db *gorm.DB) SensorRepository {
	return &sensorRepository{db: db}
}

// Insert writes one reading
func (r *sensorRepository) Insert(ctx context.Context, reading *domain.SensorReading) error {
	row := models.SensorData{
		DS:       reading.DS.UTC(),
		DeviceID: reading.DeviceID,
		Value:    reading.Value,
	}
	return mapError(r.db.WithContext(ctx).Create(&row).Error, "")
}
