package services

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"energia-backend/internal/core/domain"
	"energia-backend/internal/pkg/password"
)

// ============================================================
// OTP Service - password reset codes
// ============================================================

// OTPService issues and checks numeric one-time codes for password reset tickets
type OTPService struct {
	length      int
	ttl         time.Duration
	maxAttempts int
	now         Clock
}

// NewOTPService creates a new OTP service
func NewOTPService(length int, ttl time.Duration, maxAttempts int, now Clock) *OTPService {
	if length <= 0 {
		length = 6
	}
	if now == nil {
		now = time.Now
	}
	return &OTPService{
		length:      length,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         now,
	}
}

// TTL returns the ticket lifetime
func (s *OTPService) TTL() time.Duration {
	return s.ttl
}

// MaxAttempts returns how many wrong codes a ticket tolerates. Zero means unlimited.
func (s *OTPService) MaxAttempts() int {
	return s.maxAttempts
}

// Issue generates a fresh code and the hashed ticket that stores it
func (s *OTPService) Issue(username string) (string, *domain.PasswordResetTicket, error) {
	code, err := generateSecureOTP(s.length)
	if err != nil {
		return "", nil, err
	}

	hash, err := hashPassword(code)
	if err != nil {
		return "", nil, err
	}

	return code, &domain.PasswordResetTicket{
		Username:  username,
		OTPHash:   hash,
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}, nil
}

// Check validates code against ticket. Expiry is checked before the code.
func (s *OTPService) Check(ticket *domain.PasswordResetTicket, code string) error {
	if ticket.IsExpired(s.now().UTC()) {
		return domain.Expired()
	}
	if !password.Verify(strings.TrimSpace(code), ticket.OTPHash) {
		return domain.Authentication("otp mismatch")
	}
	return nil
}

// Exhausted reports whether attempts has reached the configured maximum
func (s *OTPService) Exhausted(attempts int) bool {
	return s.maxAttempts > 0 && attempts >= s.maxAttempts
}

// generateSecureOTP generates a cryptographically secure random OTP
func generateSecureOTP(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
