package repositories

import (
	"context"
	"time"

	"energia-backend/internal/core/domain"
)

// PrincipalCounts holds per-role principal totals
type PrincipalCounts struct {
	Coordinators         int64 `json:"coordinators"`
	ClassRepresentatives int64 `json:"class_representatives"`
	Admins               int64 `json:"admins"`
}

// Total sums every role
func (c PrincipalCounts) Total() int64 {
	return c.Coordinators + c.ClassRepresentatives + c.Admins
}

// PrincipalRepository defines access to both credential tables behind one interface.
// The kind argument selects the table; identifiers are matched case-insensitively.
type PrincipalRepository interface {
	FindByIdentifier(ctx context.Context, kind domain.PrincipalKind, identifier string) (*domain.Principal, error)
	StudentExists(ctx context.Context, username, ktuID, email string) (bool, error)
	StaffExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, p *domain.Principal) error
	UpdateCredential(ctx context.Context, identifier, passwordHash string) (int64, error)
	ResetCredential(ctx context.Context, kind domain.PrincipalKind, username, passwordHash, name string) (int64, error)
	UpdateStudentProfile(ctx context.Context, ktuID, name, department, year string) (int64, error)
	ListStaff(ctx context.Context, role domain.Role, offset, limit int) ([]*domain.Principal, int64, error)
	ListStudents(ctx context.Context, offset, limit int) ([]*domain.Principal, int64, error)
	Counts(ctx context.Context) (PrincipalCounts, error)
	Delete(ctx context.Context, identifier string) (int64, error)
}

// AuthorizationRepository defines read access to the student allow-list
type AuthorizationRepository interface {
	Find(ctx context.Context, ktuID, department, year string) (*domain.AuthorizationRecord, error)
	Ensure(ctx context.Context, rec *domain.AuthorizationRecord) (bool, error)
}

// PasswordResetRepository defines password reset ticket storage
type PasswordResetRepository interface {
	Get(ctx context.Context, username string) (*domain.PasswordResetTicket, error)
	Upsert(ctx context.Context, ticket *domain.PasswordResetTicket) error
	Delete(ctx context.Context, username string) error
	IncrementAttempts(ctx context.Context, username string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SensorRepository defines sensor reading storage
type SensorRepository interface {
	Insert(ctx context.Context, reading *domain.SensorReading) error
}

// Repositories groups the repositories bound to one connection or transaction
type Repositories struct {
	Principals     PrincipalRepository
	Authorizations AuthorizationRepository
	Resets         PasswordResetRepository
	Sensors        SensorRepository
}

// Store hands out repositories and runs multi-statement work atomically
type Store interface {
	Repos() *Repositories
	WithTx(ctx context.Context, fn func(repos *Repositories) error) error
	Ping(ctx context.Context) error
}
