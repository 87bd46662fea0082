package repositories

import (
	"context"
	"time"

	"energia-backend/internal/adapters/persistence/models"
	"energia-backend/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// passwordResetRepository implements PasswordResetRepository interface
type passwordResetRepository struct {
	db *gorm.DB
}

// NewPasswordResetRepository creates a new password reset repository
func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

// Get gets the outstanding ticket for username
func (r *passwordResetRepository) Get(ctx context.Context, username string) (*domain.PasswordResetTicket, error) {
	var reset models.PasswordReset
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&reset).Error
	if err != nil {
		return nil, mapError(err, "reset request")
	}
	return reset.ToTicket(), nil
}

// Upsert stores ticket, replacing any prior ticket for the same username
func (r *passwordResetRepository) Upsert(ctx context.Context, ticket *domain.PasswordResetTicket) error {
	reset := models.PasswordReset{
		Username:  ticket.Username,
		OTPHash:   ticket.OTPHash,
		ExpiresAt: ticket.ExpiresAt.UTC(),
		Attempts:  0,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"otp_hash", "expires_at", "attempts"}),
		}).
		Create(&reset).Error
	return mapError(err, "")
}

// Delete consumes the ticket for username
func (r *passwordResetRepository) Delete(ctx context.Context, username string) error {
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Delete(&models.PasswordReset{}).Error
	return mapError(err, "")
}

// IncrementAttempts records a failed confirmation and returns the new attempt count
func (r *passwordResetRepository) IncrementAttempts(ctx context.Context, username string) (int, error) {
	err := r.db.WithContext(ctx).
		Model(&models.PasswordReset{}).
		Where("username = ?", username).
		Update("attempts", gorm.Expr("attempts + ?", 1)).Error
	if err != nil {
		return 0, mapError(err, "")
	}

	var reset models.PasswordReset
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&reset).Error; err != nil {
		return 0, mapError(err, "reset request")
	}
	return reset.Attempts, nil
}

// DeleteExpired deletes all tickets past their expiry (cleanup job)
func (r *passwordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now.UTC()).
		Delete(&models.PasswordReset{})
	if result.Error != nil {
		return 0, mapError(result.Error, "")
	}
	return result.RowsAffected, nil
}
