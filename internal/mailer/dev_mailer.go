package mailer

import (
	"time"

	"github.com/civiclabs/ballotbox/pkg/logger"
)

// DevMailer prints codes to the log instead of sending mail.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendOTP(toEmail, toName, code string, ttl time.Duration) error {
	logger.Info("[DEV MAIL] Voting OTP",
		"to", toEmail,
		"name", toName,
		"code", code,
		"valid_for", ttl.String(),
	)
	return nil
}
