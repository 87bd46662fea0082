package mail

import (
	"context"
	"net"
	"net/textproto"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"energia-backend/internal/config"
	"energia-backend/internal/core/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentServer accepts connections and never writes a greeting
func silentServer(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p
}

func TestSMTPMailerHonoursContextTimeout(t *testing.T) {
	host, port := silentServer(t)
	m := NewSMTPMailer(config.MailConfig{
		Server: host,
		Port:   port,
		From:   "energia@example.org",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.Send(ctx, &services.Message{
		To:       []string{"student@example.org"},
		Subject:  "hello",
		TextBody: "body",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSMTPMailerReleasesConnectionsAfterTimeout(t *testing.T) {
	host, port := silentServer(t)
	m := NewSMTPMailer(config.MailConfig{
		Server: host,
		Port:   port,
		From:   "energia@example.org",
	})

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		err := m.Send(ctx, &services.Message{
			To:       []string{"student@example.org"},
			Subject:  "otp",
			TextBody: "123456",
		})
		cancel()
		require.Error(t, err)
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, 2*time.Second, 20*time.Millisecond)
}

// smtpRelay speaks just enough SMTP to accept one message
func smtpRelay(t *testing.T) (string, int, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	received := make(chan string, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()

		conn := textproto.NewConn(c)
		conn.PrintfLine("220 localhost ESMTP")
		for {
			line, err := conn.ReadLine()
			if err != nil {
				return
			}
			verb, _, _ := strings.Cut(line, " ")
			switch strings.ToUpper(verb) {
			case "EHLO", "HELO":
				conn.PrintfLine("250-localhost")
				conn.PrintfLine("250 8BITMIME")
			case "DATA":
				conn.PrintfLine("354 go ahead")
				body, err := conn.ReadDotBytes()
				if err != nil {
					return
				}
				received <- string(body)
				conn.PrintfLine("250 queued")
			case "QUIT":
				conn.PrintfLine("221 bye")
				return
			default:
				conn.PrintfLine("250 OK")
			}
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p, received
}

func TestSMTPMailerDeliversMessage(t *testing.T) {
	host, port, received := smtpRelay(t)
	m := NewSMTPMailer(config.MailConfig{
		Server: host,
		Port:   port,
		From:   "energia@example.org",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := m.Send(ctx, &services.Message{
		To:       []string{"student@example.org"},
		Subject:  "ENERGIA - Password Reset OTP",
		TextBody: "code 123456",
	})
	require.NoError(t, err)

	select {
	case body := <-received:
		assert.Contains(t, body, "Subject: ENERGIA - Password Reset OTP")
		assert.Contains(t, body, "code 123456")
	case <-time.After(time.Second):
		t.Fatal("relay received nothing")
	}
}

func TestSMTPMailerRejectsEmptyRecipients(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{Server: "localhost", Port: 25})
	err := m.Send(context.Background(), &services.Message{Subject: "x"})
	assert.Error(t, err)
}

func TestNewSMTPMailerCredentials(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{
		Server:         "smtp.example.org",
		Port:           465,
		Username:       "user",
		Password:       "secret",
		SSLTLS:         true,
		UseCredentials: false,
	})
	assert.Empty(t, m.dialer.Username)
	assert.Empty(t, m.dialer.Password)
	assert.True(t, m.dialer.SSL)
	require.NotNil(t, m.dialer.TLSConfig)
	assert.Equal(t, "smtp.example.org", m.dialer.TLSConfig.ServerName)
}

func TestBuildMessageBodies(t *testing.T) {
	var sb strings.Builder
	gm := buildMessage("from@example.org", &services.Message{
		To:       []string{"a@example.org", "b@example.org"},
		Subject:  "Alert",
		TextBody: "plain",
		HTMLBody: "<p>html</p>",
	})
	_, err := gm.WriteTo(&sb)
	require.NoError(t, err)

	out := sb.String()
	assert.Contains(t, out, "Subject: Alert")
	assert.Contains(t, out, "a@example.org")
	assert.Contains(t, out, "text/plain")
	assert.Contains(t, out, "text/html")
}

func TestNewPicksMailer(t *testing.T) {
	dev := &config.Config{AppMode: "dev"}
	assert.IsType(t, LogMailer{}, New(dev))

	prod := &config.Config{AppMode: "prod"}
	m := New(prod)
	assert.IsType(t, DisabledMailer{}, m)
	assert.ErrorIs(t, m.Send(context.Background(), &services.Message{}), ErrNotConfigured)

	configured := &config.Config{AppMode: "prod", Mail: config.MailConfig{Server: "smtp.example.org", Port: 587, From: "x@example.org"}}
	assert.IsType(t, &SMTPMailer{}, New(configured))
}
