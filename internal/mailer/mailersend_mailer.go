package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendOTP(toEmail, toName, code string, ttl time.Duration) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Your BallotBox voting code"
	text := fmt.Sprintf("Your one-time voting code is: %s\n\nIt expires in %d minutes. If you did not request it, ignore this email.",
		code, int(ttl.Minutes()))
	html := fmt.Sprintf(`
		<h2>Your BallotBox Voting Code</h2>
		<p>Hi %s,</p>
		<p>Your one-time voting code is: <strong style="font-size: 24px;">%s</strong></p>
		<p>It expires in %d minutes.</p>
		<p>If you did not request it, ignore this email.</p>
	`, toName, code, int(ttl.Minutes()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	msg.SetText(text)
	msg.SetHTML(html)

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
