package utils

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"mailblast/engine"
)

// SMTPMailer delivers campaign email over SMTP. It implements engine.Mailer.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string

	// FromEmail is the envelope fallback when the campaign has none.
	FromEmail string

	// TrackingBaseURL is the public origin tracking links point back at.
	TrackingBaseURL string

	Logger *logrus.Logger
}

func NewSMTPMailer(host string, port int, username, password, fromEmail, trackingBaseURL string, logger *logrus.Logger) *SMTPMailer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SMTPMailer{
		Host:            host,
		Port:            port,
		Username:        username,
		Password:        password,
		FromEmail:       fromEmail,
		TrackingBaseURL: trackingBaseURL,
		Logger:          logger,
	}
}

func (s *SMTPMailer) Deliver(ctx context.Context, msg engine.OutboundMessage) (string, error) {
	fromEmail := msg.FromEmail
	if fromEmail == "" {
		fromEmail = s.FromEmail
	}
	from := fromEmail
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, fromEmail)
	}

	body := InjectTracking(msg.Body, s.TrackingBaseURL, msg.UnsubscribeToken,
		msg.TrackOpens, msg.TrackClicks, msg.UnsubscribeLink)

	messageID := uuid.New().String()

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.RecipientEmail)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@mailblast>", messageID))
	if msg.UnsubscribeLink && msg.UnsubscribeToken != "" {
		m.SetHeader("List-Unsubscribe",
			fmt.Sprintf("<%s>", UnsubscribeURL(s.TrackingBaseURL, msg.UnsubscribeToken)))
	}
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	if err := d.DialAndSend(m); err != nil {
		s.Logger.WithFields(logrus.Fields{
			"campaign_id": msg.CampaignID,
			"to":          msg.RecipientEmail,
		}).WithError(err).Warn("smtp delivery failed")
		return "", fmt.Errorf("smtp delivery: %w", err)
	}

	return messageID, nil
}
