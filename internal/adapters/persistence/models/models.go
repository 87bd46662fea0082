package models

import (
	"time"

	"energia-backend/internal/core/domain"

	"gorm.io/gorm"
)

// ============================================================
// Credential Tables
// ============================================================

// User represents users table (coordinators and admins)
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:255;not null" json:"username"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role         string    `gorm:"size:20;not null;default:'coordinator'" json:"role"`
	Name         string    `gorm:"size:255" json:"name"`
	Department   string    `gorm:"size:100" json:"department"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// ToPrincipal converts a users row to the staff principal variant
func (u *User) ToPrincipal() *domain.Principal {
	return &domain.Principal{
		Kind:         domain.KindStaff,
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         domain.Role(u.Role),
		Name:         u.Name,
		Department:   u.Department,
		CreatedAt:    u.CreatedAt,
	}
}

// ClassRepresentative represents class_representatives table (students)
type ClassRepresentative struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:255;not null" json:"username"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	KtuID        string    `gorm:"column:ktu_id;uniqueIndex;size:50;not null" json:"ktu_id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string    `gorm:"size:255" json:"name"`
	Department   string    `gorm:"size:100;not null" json:"department"`
	Year         string    `gorm:"size:10;not null" json:"year"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ClassRepresentative) TableName() string {
	return "class_representatives"
}

// ToPrincipal converts a class_representatives row to the student principal variant
func (c *ClassRepresentative) ToPrincipal() *domain.Principal {
	return &domain.Principal{
		Kind:         domain.KindStudent,
		ID:           c.ID,
		Username:     c.Username,
		PasswordHash: c.PasswordHash,
		Role:         domain.RoleStudent,
		Name:         c.Name,
		Department:   c.Department,
		KtuID:        c.KtuID,
		Email:        c.Email,
		Year:         c.Year,
		CreatedAt:    c.CreatedAt,
	}
}

// AuthorizedStudent represents authorized_students table (self-registration allow-list)
type AuthorizedStudent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	KtuID      string    `gorm:"column:ktu_id;uniqueIndex;size:50;not null" json:"ktu_id"`
	Department string    `gorm:"size:100;not null" json:"department"`
	Year       string    `gorm:"size:10;not null" json:"year"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AuthorizedStudent) TableName() string {
	return "authorized_students"
}

func (a *AuthorizedStudent) ToRecord() *domain.AuthorizationRecord {
	return &domain.AuthorizationRecord{
		ID:         a.ID,
		KtuID:      a.KtuID,
		Department: a.Department,
		Year:       a.Year,
	}
}

// PasswordReset represents password_resets table, one row per identifier
type PasswordReset struct {
	Username  string    `gorm:"primaryKey;size:255" json:"username"`
	OTPHash   string    `gorm:"column:otp_hash;size:255;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
}

func (PasswordReset) TableName() string {
	return "password_resets"
}

func (p *PasswordReset) ToTicket() *domain.PasswordResetTicket {
	return &domain.PasswordResetTicket{
		Username:  p.Username,
		OTPHash:   p.OTPHash,
		ExpiresAt: p.ExpiresAt,
		Attempts:  p.Attempts,
	}
}

// ============================================================
// Telemetry
// ============================================================

// SensorData represents sensor_data table written by the ingestion worker
type SensorData struct {
	ID       int64     `gorm:"primaryKey" json:"id"`
	DS       time.Time `gorm:"column:ds;not null;index" json:"ds"`
	DeviceID string    `gorm:"size:255" json:"device_id"`
	Value    float64   `json:"value"`
}

func (SensorData) TableName() string {
	return "sensor_data"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate creates or updates every table the service owns
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&ClassRepresentative{},
		&AuthorizedStudent{},
		&PasswordReset{},
		&SensorData{},
	)
}
