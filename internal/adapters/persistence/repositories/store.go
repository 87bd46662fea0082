package repositories

import (
	"context"
	"errors"
	"strings"

	"energia-backend/internal/core/domain"

	"gorm.io/gorm"
)

// gormStore implements Store interface
type gormStore struct {
	db    *gorm.DB
	repos *Repositories
}

// NewStore creates a new store over db
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db, repos: newRepositories(db)}
}

func newRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Principals:     NewPrincipalRepository(db),
		Authorizations: NewAuthorizationRepository(db),
		Resets:         NewPasswordResetRepository(db),
		Sensors:        NewSensorRepository(db),
	}
}

// Repos returns repositories bound to the connection pool
func (s *gormStore) Repos() *Repositories {
	return s.repos
}

// WithTx runs fn inside one transaction. fn must only use the repos it is given.
func (s *gormStore) WithTx(ctx context.Context, fn func(repos *Repositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepositories(tx))
	})
	if err == nil {
		return nil
	}

	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return mapError(err, "")
}

// Ping checks the underlying connection
func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return domain.Unavailable(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return domain.Unavailable(err)
	}
	return nil
}

// mapError translates gorm and driver errors into the domain taxonomy
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if what == "" {
			what = "record"
		}
		return domain.NotFound(what + " not found")
	}
	if isUniqueViolation(err) {
		return domain.Conflict("username, KTU ID or email already exists")
	}
	return domain.Unavailable(err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
