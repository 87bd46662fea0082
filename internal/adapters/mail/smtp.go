package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"

	"energia-backend/internal/config"
	"energia-backend/internal/core/services"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

// ErrNotConfigured is returned by the disabled mailer
var ErrNotConfigured = errors.New("mail server is not configured")

// SMTPMailer delivers messages through the configured relay. The gomail
// dialer holds the connection settings.
type SMTPMailer struct {
	cfg    config.MailConfig
	dialer *gomail.Dialer
}

// NewSMTPMailer creates a mailer for cfg
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Server, cfg.Port, cfg.Username, cfg.Password)
	if !cfg.UseCredentials {
		d.Username = ""
		d.Password = ""
	}
	d.SSL = cfg.SSLTLS
	if cfg.StartTLS || cfg.SSLTLS {
		d.TLSConfig = &tls.Config{ServerName: cfg.Server, MinVersion: tls.VersionTLS12}
	}
	return &SMTPMailer{cfg: cfg, dialer: d}
}

// Send dials the relay and sends msg. The SMTP conversation runs under the
// ctx deadline and the connection is closed as soon as ctx is done.
func (m *SMTPMailer) Send(ctx context.Context, msg *services.Message) error {
	if len(msg.To) == 0 {
		return errors.New("mail: no recipients")
	}

	gm := buildMessage(m.cfg.From, msg)

	s, err := m.dial(ctx)
	if err != nil {
		return m.sendError(ctx, err)
	}
	defer s.Close()

	if err := gomail.Send(s, gm); err != nil {
		return m.sendError(ctx, err)
	}
	return nil
}

func (m *SMTPMailer) sendError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return fmt.Errorf("mail: send via %s:%d: %w", m.cfg.Server, m.cfg.Port, err)
}

// dial opens an SMTP session with the same settings gomail.Dialer would use
func (m *SMTPMailer) dial(ctx context.Context) (*smtpSession, error) {
	addr := net.JoinHostPort(m.dialer.Host, strconv.Itoa(m.dialer.Port))

	var nd net.Dialer
	raw, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := raw.SetDeadline(deadline); err != nil {
			raw.Close()
			return nil, err
		}
	}
	stop := context.AfterFunc(ctx, func() { raw.Close() })

	conn := raw
	if m.dialer.SSL {
		conn = tls.Client(conn, m.tlsConfig())
	}

	c, err := smtp.NewClient(conn, m.dialer.Host)
	if err != nil {
		stop()
		conn.Close()
		return nil, err
	}
	if err := m.handshake(c); err != nil {
		stop()
		c.Close()
		return nil, err
	}
	return &smtpSession{client: c, stop: stop}, nil
}

func (m *SMTPMailer) handshake(c *smtp.Client) error {
	if m.dialer.LocalName != "" {
		if err := c.Hello(m.dialer.LocalName); err != nil {
			return err
		}
	}
	if !m.dialer.SSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(m.tlsConfig()); err != nil {
				return err
			}
		}
	}
	if m.dialer.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", m.dialer.Username, m.dialer.Password, m.dialer.Host)
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *SMTPMailer) tlsConfig() *tls.Config {
	if m.dialer.TLSConfig != nil {
		return m.dialer.TLSConfig
	}
	return &tls.Config{ServerName: m.dialer.Host, MinVersion: tls.VersionTLS12}
}

// smtpSession is a gomail.SendCloser over one client connection
type smtpSession struct {
	client *smtp.Client
	stop   func() bool
}

var _ gomail.SendCloser = (*smtpSession)(nil)

func (s *smtpSession) Send(from string, to []string, msg io.WriterTo) error {
	if err := s.client.Mail(from); err != nil {
		return err
	}
	for _, addr := range to {
		if err := s.client.Rcpt(addr); err != nil {
			return err
		}
	}

	w, err := s.client.Data()
	if err != nil {
		return err
	}
	if _, err := msg.WriteTo(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (s *smtpSession) Close() error {
	defer s.stop()
	if err := s.client.Quit(); err != nil {
		s.client.Close()
		return err
	}
	return nil
}

func buildMessage(from string, msg *services.Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetHeader("From", from)
	gm.SetHeader("To", msg.To...)
	gm.SetHeader("Subject", msg.Subject)

	switch {
	case msg.HTMLBody != "" && msg.TextBody != "":
		gm.SetBody("text/plain", msg.TextBody)
		gm.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		gm.SetBody("text/html", msg.HTMLBody)
	default:
		gm.SetBody("text/plain", msg.TextBody)
	}
	return gm
}

// LogMailer writes messages to the log instead of sending them (dev only)
type LogMailer struct{}

// Send logs the message envelope
func (LogMailer) Send(_ context.Context, msg *services.Message) error {
	log.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Int("html_bytes", len(msg.HTMLBody)).
		Int("text_bytes", len(msg.TextBody)).
		Msg("📭 Mail not configured, message logged")
	return nil
}

// DisabledMailer rejects every message
type DisabledMailer struct{}

// Send always fails
func (DisabledMailer) Send(context.Context, *services.Message) error {
	return ErrNotConfigured
}

// New picks the mailer for cfg: SMTP when a relay is configured,
// the log mailer in dev, and a failing mailer otherwise.
func New(cfg *config.Config) services.Mailer {
	if cfg.MailEnabled() {
		log.Info().Str("server", cfg.Mail.Server).Int("port", cfg.Mail.Port).Msg("📧 SMTP mailer enabled")
		return NewSMTPMailer(cfg.Mail)
	}
	if cfg.IsDev() {
		log.Warn().Msg("⚠️ MAIL_SERVER not set, emails will be logged only")
		return LogMailer{}
	}
	log.Warn().Msg("⚠️ MAIL_SERVER not set, email delivery disabled")
	return DisabledMailer{}
}
