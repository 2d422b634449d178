package mailer

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/teamshare/teamshare-api/pkg/config"
)

// Mailer sends transactional mail over SMTP. All sends are best-effort:
// callers fire and forget, failures are logged and never propagated into
// the triggering business operation.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// New constructs a Mailer from SMTP config.
func New(cfg config.SMTPConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, logger: logger}
}

// Enabled reports whether sending is configured.
func (m *Mailer) Enabled() bool {
	return m != nil && m.cfg.Enabled && m.cfg.Host != ""
}

// Send delivers a plain-text message to a single recipient.
func (m *Mailer) Send(to, subject, body string) error {
	if !m.Enabled() {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// SendAsync queues delivery on a new goroutine, logging any failure.
func (m *Mailer) SendAsync(to, subject, body string) {
	if !m.Enabled() {
		return
	}
	go func() {
		if err := m.Send(to, subject, body); err != nil {
			m.logger.Warn("mail delivery failed", zap.String("to", to), zap.Error(err))
		}
	}()
}
