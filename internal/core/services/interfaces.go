package services

import (
	"context"
	"time"
)

// Message is one outbound email
type Message struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// Mailer delivers email. Send must honour ctx cancellation.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// Notifier sends the transactional emails of the identity lifecycle
type Notifier interface {
	SendOTP(ctx context.Context, to, code string, ttl time.Duration) error
	SendInvite(ctx context.Context, invite *Invitation) error
}

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time
