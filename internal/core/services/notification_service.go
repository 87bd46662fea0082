package services

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"energia-backend/internal/core/domain"
	"energia-backend/internal/pkg/metrics"

	"github.com/rs/zerolog/log"
)

// Broadcast kinds
const (
	BroadcastAlert  = "alert"
	BroadcastUpdate = "update"
)

// Broadcast limits
const (
	minSubjectLen  = 3
	maxSubjectLen  = 200
	minBodyLen     = 3
	maxBodyLen     = 5000
	maxRecipients  = 100
	defaultTimeout = 10 * time.Second
)

// NotificationService renders and sends email through a Mailer with a bounded timeout
type NotificationService struct {
	mailer  Mailer
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewNotificationService creates a new notification service
func NewNotificationService(mailer Mailer, timeout time.Duration, m *metrics.Metrics) *NotificationService {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &NotificationService{
		mailer:  mailer,
		timeout: timeout,
		metrics: m,
	}
}

// SendOTP sends a password reset code
func (s *NotificationService) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	body, err := renderOTP(code, int(ttl/time.Minute))
	if err != nil {
		return err
	}
	return s.send(ctx, "otp", &Message{
		To:       []string{to},
		Subject:  "ENERGIA - Password Reset OTP",
		HTMLBody: body,
	})
}

// SendInvite sends the role-specific invitation with a temporary credential
func (s *NotificationService) SendInvite(ctx context.Context, invite *Invitation) error {
	subject, body, err := renderInvite(invite)
	if err != nil {
		return err
	}
	return s.send(ctx, "invite", &Message{
		To:       []string{invite.To},
		Subject:  subject,
		HTMLBody: body,
	})
}

// BroadcastInput represents an alert or update email
type BroadcastInput struct {
	Subject    string
	Body       string
	Recipients []string
}

// Broadcast validates and sends a plain-text alert or update to all recipients.
// Returns the normalised recipient list.
func (s *NotificationService) Broadcast(ctx context.Context, kind string, input *BroadcastInput) ([]string, error) {
	if kind != BroadcastAlert && kind != BroadcastUpdate {
		return nil, domain.Validation("unknown notification type")
	}

	subject := strings.TrimSpace(input.Subject)
	if n := utf8.RuneCountInString(subject); n < minSubjectLen || n > maxSubjectLen {
		return nil, domain.Validation("subject must be between 3 and 200 characters")
	}
	if n := utf8.RuneCountInString(input.Body); n < minBodyLen || n > maxBodyLen {
		return nil, domain.Validation("body must be between 3 and 5000 characters")
	}
	if len(input.Recipients) == 0 || len(input.Recipients) > maxRecipients {
		return nil, domain.Validation("recipients must contain between 1 and 100 addresses")
	}

	recipients := make([]string, 0, len(input.Recipients))
	for _, raw := range input.Recipients {
		addr, err := mail.ParseAddress(strings.TrimSpace(raw))
		if err != nil {
			return nil, domain.Validation("invalid recipient address: " + raw)
		}
		recipients = append(recipients, addr.Address)
	}

	err := s.send(ctx, kind, &Message{
		To:       recipients,
		Subject:  subject,
		TextBody: input.Body,
	})
	if err != nil {
		return nil, domain.Delivery("failed to send email", err)
	}
	return recipients, nil
}

// send delivers msg, giving up after the configured timeout
func (s *NotificationService) send(ctx context.Context, kind string, msg *Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.mailer.Send(ctx, msg)
	s.metrics.RecordEmail(kind, err)
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Int("recipients", len(msg.To)).Msg("⚠️ Email delivery failed")
		return err
	}

	log.Debug().Str("kind", kind).Int("recipients", len(msg.To)).Msg("📧 Email sent")
	return nil
}
