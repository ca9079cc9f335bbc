package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"nodeuser-server-go/internal/platform/errors"
)

// Message is a plain-text mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers mail. The auth service treats delivery as fire-and-forget;
// implementations should not retry indefinitely.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through a single SMTP relay.
type SMTPSender struct {
	cfg Config
}

func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, errors.New(errors.KindMail, "mail.new", "smtp host and port are required")
	}
	if cfg.From == "" {
		return nil, errors.New(errors.KindMail, "mail.new", "from address is required")
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, []byte(b.String())); err != nil {
		return errors.Wrap(errors.KindMail, "mail.send", "smtp delivery failed", err)
	}
	return nil
}

// Logger is the minimal logging contract needed by LogSender.
type Logger interface {
	Info(format string, args ...any)
}

// LogSender writes mail to the log instead of delivering it. Used in
// development and tests.
type LogSender struct {
	logger Logger
}

func NewLogSender(logger Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if s.logger != nil {
		s.logger.Info("mail (not sent): to=%s subject=%q body=%q", msg.To, msg.Subject, msg.Body)
	}
	return nil
}
