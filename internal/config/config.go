package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the application
type Config struct {
	AppMode        string
	Port           string
	AllowedOrigins string
	Database       DatabaseConfig
	JWT            JWTConfig
	Reset          ResetConfig
	Mail           MailConfig
	Redis          RedisConfig
	MQTT           MQTTConfig
	Password       PasswordConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// ResetConfig holds one-time password settings for password resets
type ResetConfig struct {
	OTPLength     int
	OTPTTL        time.Duration
	MaxAttempts   int
	PurgeSchedule string
}

// MailConfig holds SMTP relay settings
type MailConfig struct {
	Server         string
	Port           int
	Username       string
	Password       string
	From           string
	StartTLS       bool
	SSLTLS         bool
	UseCredentials bool
	Timeout        time.Duration
}

// RedisConfig holds the optional Redis endpoint used by the rate limiters
type RedisConfig struct {
	URL string
}

// MQTTConfig holds the broker settings of the ingestion worker
type MQTTConfig struct {
	Broker      string
	Port        int
	Topic       string
	ClientID    string
	MetricsPort string
}

// PasswordConfig tunes the argon2id cost
type PasswordConfig struct {
	Argon2MemoryKB   uint32
	Argon2Iterations uint32
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, using environment variables")
	}

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	database, err := loadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	jwtCfg, err := loadJWTConfig(appMode)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppMode:        appMode,
		Port:           getEnv("PORT", "8000"),
		AllowedOrigins: strings.TrimSpace(getEnv("ALLOWED_ORIGINS", "")),
		Database:       database,
		JWT:            jwtCfg,
		Reset:          loadResetConfig(),
		Mail:           loadMailConfig(),
		Redis:          RedisConfig{URL: getEnv("REDIS_URL", "")},
		MQTT:           loadMQTTConfig(),
		Password: PasswordConfig{
			Argon2MemoryKB:   uint32(getEnvInt("PASSWORD_ARGON2_MEMORY_KB", 64*1024)),
			Argon2Iterations: uint32(getEnvInt("PASSWORD_ARGON2_ITERATIONS", 3)),
		},
	}

	log.Info().Str("mode", appMode).Str("db_driver", database.Driver).Msg("✅ Configuration loaded successfully")
	return cfg, nil
}

// loadDatabaseConfig reads the driver and connection string
func loadDatabaseConfig() (DatabaseConfig, error) {
	driver := strings.ToLower(strings.TrimSpace(getEnv("DB_DRIVER", "postgres")))
	switch driver {
	case "postgres", "mysql", "sqlite":
	default:
		return DatabaseConfig{}, fmt.Errorf("invalid DB_DRIVER: '%s' (must be postgres, mysql or sqlite)", driver)
	}

	return DatabaseConfig{
		Driver:   driver,
		URL:      normalizeDatabaseURL(getEnvAny([]string{"DATABASE_URL", "DB_URL"}, "")),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		User:     getEnv("DB_USER", "root"),
		Password: getEnv("DB_PASS", ""),
		DBName:   getEnv("DB_NAME", "energia"),
	}, nil
}

// normalizeDatabaseURL strips SQLAlchemy driver suffixes such as "+psycopg2"
// so URLs shared with the previous deployment keep working.
func normalizeDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	if base, _, found := strings.Cut(scheme, "+"); found {
		scheme = base
	}
	return scheme + "://" + rest
}

// loadJWTConfig loads signing settings; prod refuses weak secrets
func loadJWTConfig(mode string) (JWTConfig, error) {
	secret := strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if mode == "prod" && len(secret) < 32 {
		return JWTConfig{}, fmt.Errorf("JWT_SECRET must be at least 32 characters in prod mode")
	}
	if secret == "" {
		secret = "change-me-in-prod"
	}

	return JWTConfig{
		Secret: secret,
		Issuer: getEnv("JWT_ISSUER", "energia-backend"),
		TTL:    getEnvDuration("JWT_TTL", 12*time.Hour),
	}, nil
}

// loadResetConfig loads OTP settings
func loadResetConfig() ResetConfig {
	return ResetConfig{
		OTPLength:     getEnvInt("OTP_LENGTH", 6),
		OTPTTL:        getEnvDuration("OTP_TTL", 5*time.Minute),
		MaxAttempts:   getEnvInt("OTP_MAX_ATTEMPTS", 5),
		PurgeSchedule: getEnv("RESET_PURGE_SCHEDULE", "@every 10m"),
	}
}

// loadMailConfig loads SMTP settings; SMTP_* names are accepted as fallbacks
func loadMailConfig() MailConfig {
	return MailConfig{
		Server:         getEnvAny([]string{"MAIL_SERVER", "SMTP_HOST"}, ""),
		Port:           getEnvIntAny([]string{"MAIL_PORT", "SMTP_PORT"}, 587),
		Username:       getEnvAny([]string{"MAIL_USERNAME", "SMTP_USER"}, ""),
		Password:       getEnvAny([]string{"MAIL_PASSWORD", "SMTP_PASSWORD"}, ""),
		From:           getEnvAny([]string{"MAIL_FROM", "SMTP_FROM"}, ""),
		StartTLS:       getEnvBool("MAIL_STARTTLS", true),
		SSLTLS:         getEnvBool("MAIL_SSL_TLS", false) || getEnvBool("SMTP_USE_SSL", false),
		UseCredentials: getEnvBool("MAIL_USE_CREDENTIALS", true),
		Timeout:        getEnvDuration("MAIL_TIMEOUT", 10*time.Second),
	}
}

// loadMQTTConfig loads broker settings for the ingestion worker
func loadMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:      getEnv("MQTT_BROKER", "localhost"),
		Port:        getEnvInt("MQTT_PORT", 1883),
		Topic:       getEnv("MQTT_TOPIC", "energia/sensors/#"),
		ClientID:    getEnv("MQTT_CLIENT_ID", "energia-ingest"),
		MetricsPort: getEnv("INGEST_METRICS_PORT", "9101"),
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAny returns the first non-empty variable among keys
func getEnvAny(keys []string, defaultValue string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	return getEnvIntAny([]string{key}, defaultValue)
}

func getEnvIntAny(keys []string, defaultValue int) int {
	value := getEnvAny(keys, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// getEnvDuration accepts Go duration syntax or a <KEY>_SECONDS integer
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	if value := os.Getenv(key + "_SECONDS"); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// MailEnabled reports whether an SMTP relay is configured
func (c *Config) MailEnabled() bool {
	return c.Mail.Server != "" && c.Mail.From != ""
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	if c.AllowedOrigins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://energia.cet.ac.in"
	}
	return c.AllowedOrigins
}
