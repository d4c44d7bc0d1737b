package mailer

import (
	"time"

	"github.com/civiclabs/ballotbox/pkg/config"
)

// Service delivers one-time codes out-of-band. The voting flow never puts a
// code on the wire to the voter's browser outside dev mode.
type Service interface {
	SendOTP(toEmail, toName, code string, ttl time.Duration) error
}

// FromConfig picks the strongest configured transport.
func FromConfig(cfg config.EmailConfig) Service {
	if cfg.DevMode {
		return NewDevMailer()
	}
	if cfg.MailerSendKey != "" {
		return NewMailerSend(cfg.MailerSendKey, "BallotBox", cfg.SMTPFrom)
	}
	return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
}
