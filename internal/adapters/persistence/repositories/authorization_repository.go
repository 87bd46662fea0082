package repositories

import (
	"context"

	"energia-backend/internal/adapters/persistence/models"
	"energia-backend/internal/core/domain"

	"gorm.io/gorm"
)

// authorizationRepository implements AuthorizationRepository interface
// The service never writes allow-list rows; Ensure exists for seeding only.
type authorizationRepository struct {
	db *gorm.DB
}

// NewAuthorizationRepository creates a new authorization repository
func NewAuthorizationRepository(db *gorm.DB) AuthorizationRepository {
	return &authorizationRepository{db: db}
}

// Find gets the allow-list entry matching all three fields exactly
func (r *authorizationRepository) Find(ctx context.Context, ktuID, department, year string) (*domain.AuthorizationRecord, error) {
	var entry models.AuthorizedStudent
	err := r.db.WithContext(ctx).
		Where("ktu_id = ? AND department = ? AND year = ?", ktuID, department, year).
		First(&entry).Error
	if err != nil {
		return nil, mapError(err, "authorization record")
	}
	return entry.ToRecord(), nil
}

// Ensure inserts rec unless an entry with its KTU ID exists. Reports whether a row was created.
func (r *authorizationRepository) Ensure(ctx context.Context, rec *domain.AuthorizationRecord) (bool, error) {
	entry := models.AuthorizedStudent{
		KtuID:      rec.KtuID,
		Department: rec.Department,
		Year:       rec.Year,
	}
	result := r.db.WithContext(ctx).
		Where(models.AuthorizedStudent{KtuID: rec.KtuID}).
		FirstOrCreate(&entry)
	if result.Error != nil {
		return false, mapError(result.Error, "")
	}
	rec.ID = entry.ID
	return result.RowsAffected > 0, nil
}
