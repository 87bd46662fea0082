package config

import (
	"context"
	"errors"

	"energia-backend/internal/adapters/persistence/repositories"
	"energia-backend/internal/core/domain"
	"energia-backend/internal/pkg/password"

	"github.com/rs/zerolog/log"
)

// seedAuthorizations is the student allow-list shipped with dev databases
var seedAuthorizations = []domain.AuthorizationRecord{
	{KtuID: "TVE21CS001", Department: "CSE", Year: "3"},
	{KtuID: "IDK22CS017", Department: "CSE", Year: "3"},
	{KtuID: "TVE21CS045", Department: "CSE", Year: "3"},
	{KtuID: "TVE21CS046", Department: "CSE", Year: "3"},
}

// seedStaff are development logins; never seeded in prod
var seedStaff = []struct {
	username string
	password string
	role     domain.Role
	name     string
}{
	{username: "admin@energia.local", password: "admin123456", role: domain.RoleAdmin, name: "Administrator"},
	{username: "coordinator@energia.local", password: "coordinator123", role: domain.RoleCoordinator, name: "Energy Coordinator"},
}

// Seeder handles database seeding
type Seeder struct {
	store repositories.Store
}

// NewSeeder creates a new seeder instance
func NewSeeder(store repositories.Store) *Seeder {
	return &Seeder{store: store}
}

// Run executes all seeders
func (s *Seeder) Run(ctx context.Context) error {
	log.Info().Msg("🌱 Running database seeders...")

	if err := s.seedAuthorizations(ctx); err != nil {
		return err
	}
	if err := s.seedStaff(ctx); err != nil {
		log.Warn().Err(err).Msg("⚠️ Staff seeder skipped")
	}

	log.Info().Msg("✅ Database seeding completed")
	return nil
}

func (s *Seeder) seedAuthorizations(ctx context.Context) error {
	created := 0
	for i := range seedAuthorizations {
		rec := seedAuthorizations[i]
		ok, err := s.store.Repos().Authorizations.Ensure(ctx, &rec)
		if err != nil {
			return err
		}
		if ok {
			created++
		}
	}
	log.Info().Int("created", created).Msg("🌱 Authorized students seeded")
	return nil
}

// seedStaff creates the dev admin and coordinator when their usernames are free
func (s *Seeder) seedStaff(ctx context.Context) error {
	repo := s.store.Repos().Principals
	for _, st := range seedStaff {
		exists, err := repo.StaffExists(ctx, st.username)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		hash, err := password.Hash(st.password)
		if err != nil {
			return err
		}
		err = repo.Create(ctx, &domain.Principal{
			Kind:         domain.KindStaff,
			Username:     st.username,
			PasswordHash: hash,
			Role:         st.role,
			Name:         st.name,
		})
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			return err
		}
		log.Info().Str("username", st.username).Str("role", string(st.role)).Msg("✅ Staff user seeded")
	}
	return nil
}
