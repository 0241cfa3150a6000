package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Message is an HTML email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrNotConfigured is returned when no mail transport is available.
var ErrNotConfigured = errors.New("mail delivery is not configured")

const defaultTimeout = 10 * time.Second

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Timeout bounds the whole exchange with the relay. Zero means 10s.
	Timeout time.Duration
}

// SMTPSender delivers mail through an SMTP relay. STARTTLS is used when
// the relay offers it and PLAIN auth when a username is configured.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(msg.To+msg.Subject, "\r\n") {
		return fmt.Errorf("invalid header value")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := s.deliver(conn, msg); err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("failed to send mail to %s: %w", msg.To, ctxErr)
		}
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

func (s *SMTPSender) deliver(conn net.Conn, msg Message) error {
	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}

	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(msg.To); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n",
		s.cfg.From, msg.To, msg.Subject, msg.Body)
	if _, err := w.Write([]byte(body)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// LogSender writes whole messages to the process log instead of sending
// them, so codes can be read off the console in development. It keeps the
// last message per recipient for inspection.
type LogSender struct {
	mu   sync.Mutex
	last map[string]Message
}

func NewLogSender() *LogSender {
	return &LogSender{last: make(map[string]Message)}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	s.last[msg.To] = msg
	s.mu.Unlock()

	log.Printf("[Mail] to=%s subject=%q (SMTP not configured, logged only)\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}

// Last returns the most recent message sent to addr.
func (s *LogSender) Last(addr string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.last[addr]
	return msg, ok
}

// DisabledSender fails every delivery.
type DisabledSender struct{}

func (DisabledSender) Send(ctx context.Context, msg Message) error {
	return ErrNotConfigured
}

// New picks the SMTP sender when a host is set. Without one, logOnly
// selects the LogSender; otherwise every send fails with ErrNotConfigured.
func New(cfg SMTPConfig, logOnly bool) Sender {
	switch {
	case cfg.Host != "":
		return NewSMTPSender(cfg)
	case logOnly:
		return NewLogSender()
	default:
		return DisabledSender{}
	}
}
