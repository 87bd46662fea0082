package jwt

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"energia-backend/internal/core/domain"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// TokenType is returned next to every access token
const TokenType = "bearer"

// Claims represents the session token claim set
type Claims struct {
	Username   string  `json:"username"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Email      *string `json:"email,omitempty"`
	Department *string `json:"department"`
	KtuID      *string `json:"ktu_id"`
	Year       *string `json:"year"`
	jwt.RegisteredClaims
}

// Issuer signs and validates session tokens with a process-wide HMAC key
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates a token issuer. The key is fixed for the life of the process.
func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the fixed token lifetime
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue builds and signs a claim set for p
func (i *Issuer) Issue(p *domain.Principal) (string, error) {
	now := i.now().UTC()
	claims := Claims{
		Username:   p.Username,
		Name:       p.DisplayName(),
		Role:       string(p.Role),
		Email:      optional(p.Email),
		Department: optional(p.Department),
		KtuID:      optional(p.KtuID),
		Year:       optional(p.Year),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(p.ID), 10),
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Parse validates a token and returns its claims
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrTokenInvalid
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
