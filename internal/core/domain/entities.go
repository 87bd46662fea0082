package domain

import (
	"strings"
	"time"
)

// Role represents a principal's role in the system
type Role string

const (
	RoleStudent     Role = "student"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

// PrincipalKind tags which credential table a principal lives in
type PrincipalKind int

const (
	KindStaff PrincipalKind = iota
	KindStudent
)

// PrincipalKinds lists every kind in lookup order (students first)
var PrincipalKinds = []PrincipalKind{KindStudent, KindStaff}

func (k PrincipalKind) String() string {
	if k == KindStudent {
		return "student"
	}
	return "staff"
}

// ParseRole validates a caller-supplied role string.
// "class_representative" and "representative" are accepted as student aliases.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "student", "class_representative", "class-representative", "representative":
		return RoleStudent, nil
	case "coordinator":
		return RoleCoordinator, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return "", Validation("role must be one of student, coordinator, admin")
	}
}

// Kind returns the table variant that stores principals of this role
func (r Role) Kind() PrincipalKind {
	if r == RoleStudent {
		return KindStudent
	}
	return KindStaff
}

// Principal is an authenticated identity: a staff member (coordinator/admin)
// or a student class representative. Student-only fields are empty for staff.
type Principal struct {
	Kind         PrincipalKind
	ID           uint
	Username     string
	PasswordHash string
	Role         Role
	Name         string
	Department   string
	KtuID        string
	Email        string
	Year         string
	CreatedAt    time.Time
}

// DisplayName falls back to the username when no name was recorded
func (p *Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Username
}

// ContactEmail resolves where notifications for this principal go.
// Staff usernames are their email addresses.
func (p *Principal) ContactEmail() string {
	if p.Kind == KindStudent && p.Email != "" {
		return p.Email
	}
	return p.Username
}

// AuthorizationRecord is an allow-list entry permitting a student to self-register
type AuthorizationRecord struct {
	ID         uint
	KtuID      string
	Department string
	Year       string
}

// PasswordResetTicket is the outstanding OTP for an identifier
type PasswordResetTicket struct {
	Username  string
	OTPHash   string
	ExpiresAt time.Time
	Attempts  int
}

// IsExpired reports whether the ticket is past its TTL at now
func (t *PasswordResetTicket) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// SensorReading is a single time-stamped value from the ingestion worker
type SensorReading struct {
	DS       time.Time
	DeviceID string
	Value    float64
}
