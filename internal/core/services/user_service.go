package services

import (
	"context"
	"strings"
	"time"

	"energia-backend/internal/adapters/persistence/repositories"
	"energia-backend/internal/core/domain"
	"energia-backend/internal/pkg/pagination"

	"github.com/rs/zerolog/log"
)

// UserService handles principal administration for admins
type UserService struct {
	store repositories.Store
}

// NewUserService creates a new user service
func NewUserService(store repositories.Store) *UserService {
	return &UserService{store: store}
}

// CoordinatorSummary is one row of the coordinator listing
type CoordinatorSummary struct {
	ID         uint    `json:"id"`
	Username   string  `json:"username"`
	Name       string  `json:"name"`
	Department string  `json:"department"`
	CreatedAt  *string `json:"created_at"`
}

// ClassRepresentativeSummary is one row of the class representative listing
type ClassRepresentativeSummary struct {
	ID         uint    `json:"id"`
	Username   string  `json:"username"`
	Name       string  `json:"name"`
	KtuID      string  `json:"ktu_id"`
	Department string  `json:"department"`
	Year       string  `json:"year"`
	Email      string  `json:"email"`
	CreatedAt  *string `json:"created_at"`
}

// ListCoordinators lists coordinators ordered by name
func (s *UserService) ListCoordinators(ctx context.Context, params *pagination.Params) ([]*CoordinatorSummary, int64, error) {
	principals, total, err := s.store.Repos().Principals.ListStaff(ctx, domain.RoleCoordinator, params.Offset, params.Limit)
	if err != nil {
		return nil, 0, err
	}

	out := make([]*CoordinatorSummary, 0, len(principals))
	for _, p := range principals {
		department := p.Department
		if department == "" {
			department = "N/A"
		}
		out = append(out, &CoordinatorSummary{
			ID:         p.ID,
			Username:   p.Username,
			Name:       p.DisplayName(),
			Department: department,
			CreatedAt:  isoTime(p.CreatedAt),
		})
	}
	return out, total, nil
}

// ListClassRepresentatives lists students ordered by department, year and name
func (s *UserService) ListClassRepresentatives(ctx context.Context, params *pagination.Params) ([]*ClassRepresentativeSummary, int64, error) {
	principals, total, err := s.store.Repos().Principals.ListStudents(ctx, params.Offset, params.Limit)
	if err != nil {
		return nil, 0, err
	}

	out := make([]*ClassRepresentativeSummary, 0, len(principals))
	for _, p := range principals {
		out = append(out, &ClassRepresentativeSummary{
			ID:         p.ID,
			Username:   p.Username,
			Name:       p.DisplayName(),
			KtuID:      p.KtuID,
			Department: p.Department,
			Year:       p.Year,
			Email:      p.Email,
			CreatedAt:  isoTime(p.CreatedAt),
		})
	}
	return out, total, nil
}

// Counts returns per-role totals
func (s *UserService) Counts(ctx context.Context) (repositories.PrincipalCounts, error) {
	return s.store.Repos().Principals.Counts(ctx)
}

// DeleteUser deletes coordinators and class representatives matching identifier. Admins are kept.
func (s *UserService) DeleteUser(ctx context.Context, identifier string) (int64, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return 0, domain.Validation("username is required")
	}

	var deleted int64
	err := s.store.WithTx(ctx, func(repos *repositories.Repositories) error {
		n, err := repos.Principals.Delete(ctx, identifier)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.NotFound("user '" + identifier + "' not found or cannot be deleted")
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info().Int64("deleted", deleted).Msg("🗑️ User deleted")
	return deleted, nil
}

func isoTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
