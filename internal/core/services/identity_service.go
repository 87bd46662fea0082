package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"energia-backend/internal/adapters/persistence/repositories"
	"energia-backend/internal/core/domain"
	"energia-backend/internal/pkg/jwt"
	"energia-backend/internal/pkg/metrics"
	"energia-backend/internal/pkg/password"

	"github.com/rs/zerolog/log"
)

// hashPassword derives stored credentials and OTP hashes
var hashPassword = password.Hash

// Invite email outcomes
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// IdentityService handles registration, login and credential lifecycle
type IdentityService struct {
	store    repositories.Store
	issuer   *jwt.Issuer
	otp      *OTPService
	notifier Notifier
	metrics  *metrics.Metrics
	now      Clock
}

// NewIdentityService creates a new identity service
func NewIdentityService(
	store repositories.Store,
	issuer *jwt.Issuer,
	otp *OTPService,
	notifier Notifier,
	m *metrics.Metrics,
) *IdentityService {
	return &IdentityService{
		store:    store,
		issuer:   issuer,
		otp:      otp,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

// RegisterInput represents registration input
type RegisterInput struct {
	Username   string
	Password   string
	Role       string
	KtuID      string
	Department string
	Year       string
	Email      string
}

// TokenResult is a freshly issued session token
type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ResetRequestResult describes an issued reset ticket
type ResetRequestResult struct {
	ExpiresInMinutes int `json:"expires_in_minutes"`
}

// UpdateProfileInput represents student profile fields
type UpdateProfileInput struct {
	KtuID      string
	Name       string
	Department string
	Year       string
}

// InviteInput represents an admin invitation
type InviteInput struct {
	Username   string
	Role       string
	Name       string
	KtuID      string
	Department string
	Year       string
	Email      string
}

// Invitation is the content of an invite email
type Invitation struct {
	To           string
	Name         string
	Role         domain.Role
	Username     string
	TempPassword string
}

// InviteResult reports a provisioning outcome. DeliveryErr is set when the email failed.
type InviteResult struct {
	Action      string
	Username    string
	Role        domain.Role
	EmailStatus string
	DeliveryErr error
}

// Register creates a principal. Students must be on the allow-list.
func (s *IdentityService) Register(ctx context.Context, input *RegisterInput) (err error) {
	defer func() { s.metrics.RecordAuth("register", err) }()

	// 1. Validate input
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return domain.Validation("username and password are required")
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return err
	}

	p := &domain.Principal{
		Kind:     role.Kind(),
		Username: username,
		Role:     role,
	}
	if p.Kind == domain.KindStudent {
		p.KtuID = strings.TrimSpace(input.KtuID)
		p.Department = strings.TrimSpace(input.Department)
		p.Year = strings.TrimSpace(input.Year)
		p.Email = strings.TrimSpace(input.Email)
		if p.KtuID == "" || p.Department == "" || p.Year == "" || p.Email == "" {
			return domain.Validation("KTU ID, department, year and email are required for student registration")
		}
	}

	// 2. Hash password before opening the transaction
	p.PasswordHash, err = hashPassword(input.Password)
	if err != nil {
		return err
	}
	p.CreatedAt = s.now().UTC()

	// 3. Check allow-list and collisions, then insert
	err = s.store.WithTx(ctx, func(repos *repositories.Repositories) error {
		if p.Kind == domain.KindStudent {
			if _, err := repos.Authorizations.Find(ctx, p.KtuID, p.Department, p.Year); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.NotAuthorized("you are not authorized to register; verify your KTU ID, department and year match our records")
				}
				return err
			}
		}
		if err := checkCollision(ctx, repos, p); err != nil {
			return err
		}
		return repos.Principals.Create(ctx, p)
	})
	if err != nil {
		return err
	}

	log.Info().Str("role", string(role)).Msg("👤 Principal registered")
	return nil
}

// Login verifies credentials and issues a session token.
// Unknown users and wrong passwords fail identically.
func (s *IdentityService) Login(ctx context.Context, identifier, pw string) (result *TokenResult, err error) {
	defer func() { s.metrics.RecordAuth("login", err) }()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || pw == "" {
		return nil, domain.Validation("username and password are required")
	}

	p, err := findPrincipal(ctx, s.store.Repos(), identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug().Msg("login rejected: user not found")
			return nil, domain.Authentication("user not found")
		}
		return nil, err
	}

	if !password.Verify(pw, p.PasswordHash) {
		log.Debug().Str("kind", p.Kind.String()).Msg("login rejected: password mismatch")
		return nil, domain.Authentication("password mismatch")
	}

	if password.NeedsRehash(p.PasswordHash) {
		s.upgradeHash(ctx, p, pw)
	}

	return s.issue(p)
}

// ChangePassword replaces the password of every row matching identifier after verifying the current one
func (s *IdentityService) ChangePassword(ctx context.Context, identifier, current, next string) (err error) {
	defer func() { s.metrics.RecordAuth("change_password", err) }()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || current == "" || next == "" {
		return domain.Validation("username, current_password and new_password are required")
	}

	return s.store.WithTx(ctx, func(repos *repositories.Repositories) error {
		p, err := findPrincipal(ctx, repos, identifier)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Authentication("user not found")
			}
			return err
		}
		if !password.Verify(current, p.PasswordHash) {
			return domain.Authentication("current password mismatch")
		}

		newHash, err := hashPassword(next)
		if err != nil {
			return err
		}
		_, err = repos.Principals.UpdateCredential(ctx, identifier, newHash)
		return err
	})
}

// RequestPasswordReset stores a fresh OTP ticket keyed by identifier and emails the code
func (s *IdentityService) RequestPasswordReset(ctx context.Context, identifier string) (result *ResetRequestResult, err error) {
	defer func() { s.metrics.RecordAuth("request_password_reset", err) }()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.Validation("username is required")
	}

	// 1. Resolve recipient before hashing a code for it
	p, err := findPrincipal(ctx, s.store.Repos(), identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("user not found")
		}
		return nil, err
	}
	email := p.ContactEmail()

	code, ticket, err := s.otp.Issue(identifier)
	if err != nil {
		return nil, err
	}

	if err := s.store.Repos().Resets.Upsert(ctx, ticket); err != nil {
		return nil, err
	}

	// 2. Deliver after commit; the ticket stays on failure
	if err := s.notifier.SendOTP(ctx, email, code, s.otp.TTL()); err != nil {
		log.Error().Err(err).Msg("❌ Failed to send OTP email")
		return nil, domain.Delivery("failed to send OTP email", err)
	}

	return &ResetRequestResult{ExpiresInMinutes: int(s.otp.TTL() / time.Minute)}, nil
}

// ConfirmPasswordReset consumes the ticket for identifier and sets the new password
func (s *IdentityService) ConfirmPasswordReset(ctx context.Context, identifier, code, next string) (err error) {
	defer func() { s.metrics.RecordAuth("confirm_password_reset", err) }()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || strings.TrimSpace(code) == "" || next == "" {
		return domain.Validation("username, otp and new_password are required")
	}

	// Expiry and wrong-code outcomes commit their ticket changes before being returned.
	var outcome error
	err = s.store.WithTx(ctx, func(repos *repositories.Repositories) error {
		ticket, err := repos.Resets.Get(ctx, identifier)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NoActiveRequest()
			}
			return err
		}

		if err := s.otp.Check(ticket, code); err != nil {
			if errors.Is(err, domain.ErrExpired) {
				outcome = err
				return repos.Resets.Delete(ctx, identifier)
			}

			attempts, incErr := repos.Resets.IncrementAttempts(ctx, identifier)
			if incErr != nil {
				return incErr
			}
			if s.otp.Exhausted(attempts) {
				log.Warn().Int("attempts", attempts).Int("max_attempts", s.otp.MaxAttempts()).Msg("⚠️ Reset ticket discarded after too many wrong codes")
				if delErr := repos.Resets.Delete(ctx, identifier); delErr != nil {
					return delErr
				}
			}
			outcome = err
			return nil
		}

		newHash, err := hashPassword(next)
		if err != nil {
			return err
		}
		n, err := repos.Principals.UpdateCredential(ctx, identifier, newHash)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.NotFound("user not found")
		}
		return repos.Resets.Delete(ctx, identifier)
	})
	if err != nil {
		return err
	}
	return outcome
}

// UpdateProfile updates a student's profile and returns a token carrying the new claims
func (s *IdentityService) UpdateProfile(ctx context.Context, input *UpdateProfileInput) (result *TokenResult, err error) {
	defer func() { s.metrics.RecordAuth("update_profile", err) }()

	ktuID := strings.TrimSpace(input.KtuID)
	name := strings.TrimSpace(input.Name)
	department := strings.TrimSpace(input.Department)
	year := strings.TrimSpace(input.Year)
	if ktuID == "" || name == "" || department == "" || year == "" {
		return nil, domain.Validation("ktu_id, name, department and year are required")
	}

	var p *domain.Principal
	err = s.store.WithTx(ctx, func(repos *repositories.Repositories) error {
		n, err := repos.Principals.UpdateStudentProfile(ctx, ktuID, name, department, year)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.NotFound("class representative not found")
		}
		p, err = repos.Principals.FindByIdentifier(ctx, domain.KindStudent, ktuID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.issue(p)
}

// InviteUser creates or refreshes a principal with a temporary credential and emails it.
// Delivery failure does not undo the provisioning; it is reported in the result.
func (s *IdentityService) InviteUser(ctx context.Context, input *InviteInput) (result *InviteResult, err error) {
	defer func() { s.metrics.RecordAuth("invite_user", err) }()

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, domain.Validation("username is required")
	}
	roleName := strings.TrimSpace(input.Role)
	if roleName == "" {
		roleName = string(domain.RoleStudent)
	}
	role, err := domain.ParseRole(roleName)
	if err != nil {
		return nil, err
	}

	temp, err := generateTempPassword()
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(temp)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	kind := role.Kind()
	result = &InviteResult{Username: username, Role: role}

	var p *domain.Principal
	err = s.store.WithTx(ctx, func(repos *repositories.Repositories) error {
		existing, err := repos.Principals.FindByIdentifier(ctx, kind, username)
		switch {
		case err == nil:
			if _, err := repos.Principals.ResetCredential(ctx, kind, existing.Username, hash, name); err != nil {
				return err
			}
			if name != "" {
				existing.Name = name
			}
			p = existing
			result.Action = "updated"
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		p = &domain.Principal{
			Kind:         kind,
			Username:     username,
			PasswordHash: hash,
			Role:         role,
			Name:         name,
			CreatedAt:    s.now().UTC(),
		}
		if kind == domain.KindStudent {
			p.KtuID = strings.TrimSpace(input.KtuID)
			p.Department = strings.TrimSpace(input.Department)
			p.Year = strings.TrimSpace(input.Year)
			p.Email = strings.TrimSpace(input.Email)
			if p.Email == "" {
				p.Email = username
			}
			if p.KtuID == "" || p.Department == "" || p.Year == "" {
				return domain.Validation("ktu_id, department and year are required to invite a class representative")
			}
		} else {
			p.Department = strings.TrimSpace(input.Department)
		}

		if err := checkCollision(ctx, repos, p); err != nil {
			return err
		}
		result.Action = "created"
		return repos.Principals.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("role", string(role)).Str("action", result.Action).Msg("✉️ Principal invited")

	// Deliver after commit
	if err := s.notifier.SendInvite(ctx, newInvitation(p, temp)); err != nil {
		log.Warn().Err(err).Msg("⚠️ Invite email failed; provisioning kept")
		result.EmailStatus = EmailStatusFailed
		result.DeliveryErr = domain.Delivery("failed to send invitation email", err)
		return result, nil
	}

	result.EmailStatus = EmailStatusSent
	return result, nil
}

// ResendInvite issues a new temporary credential for an existing principal and emails it.
// Unlike InviteUser, delivery failure is returned as an error.
func (s *IdentityService) ResendInvite(ctx context.Context, username, rawRole string) (result *InviteResult, err error) {
	defer func() { s.metrics.RecordAuth("resend_invite", err) }()

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.Validation("username is required")
	}
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return nil, err
	}

	temp, err := generateTempPassword()
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(temp)
	if err != nil {
		return nil, err
	}

	var p *domain.Principal
	err = s.store.WithTx(ctx, func(repos *repositories.Repositories) error {
		found, err := repos.Principals.FindByIdentifier(ctx, role.Kind(), username)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NotFound("user not found")
			}
			return err
		}
		if found.Kind == domain.KindStaff && found.Role != role {
			return domain.NotFound("user not found")
		}
		if _, err := repos.Principals.ResetCredential(ctx, found.Kind, found.Username, hash, ""); err != nil {
			return err
		}
		p = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.SendInvite(ctx, newInvitation(p, temp)); err != nil {
		return nil, domain.Delivery("failed to send invitation email", err)
	}

	return &InviteResult{
		Action:      "resent",
		Username:    p.Username,
		Role:        p.Role,
		EmailStatus: EmailStatusSent,
	}, nil
}

// issue signs a token for p
func (s *IdentityService) issue(p *domain.Principal) (*TokenResult, error) {
	token, err := s.issuer.Issue(p)
	if err != nil {
		return nil, err
	}
	return &TokenResult{
		AccessToken: token,
		TokenType:   jwt.TokenType,
		ExpiresIn:   int64(s.issuer.TTL().Seconds()),
	}, nil
}

// upgradeHash rewrites a legacy hash with the current KDF. Failures only log.
func (s *IdentityService) upgradeHash(ctx context.Context, p *domain.Principal, pw string) {
	hash, err := hashPassword(pw)
	if err != nil {
		log.Warn().Err(err).Msg("password rehash failed")
		return
	}
	if _, err := s.store.Repos().Principals.ResetCredential(ctx, p.Kind, p.Username, hash, ""); err != nil {
		log.Warn().Err(err).Msg("password rehash not stored")
		return
	}
	log.Debug().Str("kind", p.Kind.String()).Msg("legacy password hash upgraded")
}

// findPrincipal resolves identifier across both kinds, students first
func findPrincipal(ctx context.Context, repos *repositories.Repositories, identifier string) (*domain.Principal, error) {
	for _, kind := range domain.PrincipalKinds {
		p, err := repos.Principals.FindByIdentifier(ctx, kind, identifier)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, domain.NotFound("user not found")
}

// checkCollision rejects p when its identifiers are taken in either table
func checkCollision(ctx context.Context, repos *repositories.Repositories, p *domain.Principal) error {
	var taken bool
	var err error

	if p.Kind == domain.KindStudent {
		taken, err = repos.Principals.StudentExists(ctx, p.Username, p.KtuID, p.Email)
		if err == nil && !taken {
			taken, err = repos.Principals.StaffExists(ctx, p.Username)
		}
		if err == nil && !taken && p.Email != p.Username {
			taken, err = repos.Principals.StaffExists(ctx, p.Email)
		}
	} else {
		taken, err = repos.Principals.StaffExists(ctx, p.Username)
		if err == nil && !taken {
			taken, err = repos.Principals.StudentExists(ctx, p.Username, p.Username, p.Username)
		}
	}

	if err != nil {
		return err
	}
	if taken {
		return domain.Conflict("user, KTU ID or email already registered")
	}
	return nil
}

func newInvitation(p *domain.Principal, temp string) *Invitation {
	display := p.Username
	if p.Kind == domain.KindStudent && p.KtuID != "" {
		display = p.KtuID
	}
	name := p.Name
	if name == "" {
		name = "User"
	}
	return &Invitation{
		To:           p.ContactEmail(),
		Name:         name,
		Role:         p.Role,
		Username:     display,
		TempPassword: temp,
	}
}

// generateTempPassword returns a URL-safe credential from 12 random bytes
func generateTempPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
