package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// TLS policies accepted in configuration
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// Config holds SMTP session settings
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	TLSPolicy string
	Timeout   time.Duration
}

// SMTPMailer sends alert messages over SMTP
type SMTPMailer struct {
	cfg    Config
	policy mail.TLSPolicy
	logger *slog.Logger
}

// NewSMTPMailer validates cfg and creates a mailer
func NewSMTPMailer(cfg Config, logger *slog.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is not set")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp sender address is not set")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := parseTLSPolicy(cfg.TLSPolicy)
	if err != nil {
		return nil, err
	}

	return &SMTPMailer{cfg: cfg, policy: policy, logger: logger}, nil
}

// Send delivers one message with every recipient in Bcc
func (m *SMTPMailer) Send(ctx context.Context, recipients []string, subject, body string) error {
	msg, err := m.buildMessage(recipients, subject, body)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	m.logger.Debug("sending alert email", "host", m.cfg.Host, "recipients", len(recipients))
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email via %s: %w", m.cfg.Host, err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(recipients []string, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("set sender %q: %w", m.cfg.From, err)
	}
	if err := msg.To(m.cfg.From); err != nil {
		return nil, fmt.Errorf("set to %q: %w", m.cfg.From, err)
	}
	if err := msg.Bcc(recipients...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
		mail.WithTLSPolicy(m.policy),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}

func parseTLSPolicy(s string) (mail.TLSPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", TLSMandatory:
		return mail.TLSMandatory, nil
	case TLSOpportunistic:
		return mail.TLSOpportunistic, nil
	case TLSNone:
		return mail.NoTLS, nil
	default:
		return mail.NoTLS, fmt.Errorf("unknown smtp tls policy %q", s)
	}
}
