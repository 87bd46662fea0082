package config

import (
	"context"
	"testing"
	"time"

	"energia-backend/internal/adapters/persistence/repositories"
	"energia-backend/internal/adapters/persistence/testdb"
	"energia-backend/internal/core/domain"
	"energia-backend/internal/pkg/password"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_MODE", "dev")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 6, cfg.Reset.OTPLength)
	assert.Equal(t, 5*time.Minute, cfg.Reset.OTPTTL)
	assert.Equal(t, 5, cfg.Reset.MaxAttempts)
	assert.Equal(t, "*", cfg.GetAllowedOrigins())
	assert.NotEmpty(t, cfg.JWT.Secret)
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	t.Setenv("APP_MODE", "staging")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadProdRequiresStrongSecret(t *testing.T) {
	t.Setenv("APP_MODE", "prod")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
}

func TestMailFallbackNames(t *testing.T) {
	t.Setenv("MAIL_SERVER", "")
	t.Setenv("SMTP_HOST", "smtp.example.org")
	t.Setenv("MAIL_PORT", "")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("MAIL_FROM", "noreply@example.org")
	t.Setenv("SMTP_USE_SSL", "true")

	mail := loadMailConfig()
	assert.Equal(t, "smtp.example.org", mail.Server)
	assert.Equal(t, 465, mail.Port)
	assert.True(t, mail.SSLTLS)

	cfg := &Config{Mail: mail}
	assert.True(t, cfg.MailEnabled())
}

func TestNormalizeDatabaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgresql+psycopg2://u:p@db:5432/energia", "postgresql://u:p@db:5432/energia"},
		{"postgres://u:p@db/energia", "postgres://u:p@db/energia"},
		{"  mysql+pymysql://u@h/db ", "mysql://u@h/db"},
		{"energia.db", "energia.db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeDatabaseURL(tt.in), tt.in)
	}
}

func TestGetEnvDurationSeconds(t *testing.T) {
	t.Setenv("TEST_WAIT", "")
	t.Setenv("TEST_WAIT_SECONDS", "90")
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_WAIT", time.Second))

	t.Setenv("TEST_WAIT", "2m")
	assert.Equal(t, 2*time.Minute, getEnvDuration("TEST_WAIT", time.Second))

	t.Setenv("TEST_WAIT", "")
	t.Setenv("TEST_WAIT_SECONDS", "soon")
	assert.Equal(t, time.Second, getEnvDuration("TEST_WAIT", time.Second))
}

func TestSeederIsIdempotent(t *testing.T) {
	password.Configure(1024, 1)
	store := repositories.NewStore(testdb.Open(t))
	ctx := context.Background()

	seeder := NewSeeder(store)
	require.NoError(t, seeder.Run(ctx))
	require.NoError(t, seeder.Run(ctx))

	rec, err := store.Repos().Authorizations.Find(ctx, "TVE21CS045", "CSE", "3")
	require.NoError(t, err)
	assert.Equal(t, "TVE21CS045", rec.KtuID)

	counts, err := store.Repos().Principals.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Admins)
	assert.Equal(t, int64(1), counts.Coordinators)

	admin, err := store.Repos().Principals.FindByIdentifier(ctx, domain.KindStaff, "ADMIN@energia.local")
	require.NoError(t, err)
	assert.True(t, password.Verify("admin123456", admin.PasswordHash))
}
