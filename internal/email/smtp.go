package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"
)

// SMTPServerConfig holds all the necessary configuration for connecting to an SMTP server.
type SMTPServerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string // The "From" email address
}

// Sender delivers the service's transactional emails.
type Sender interface {
	SendMagicLink(recipient, link string) error
	SendPoolInvite(recipient, inviterName, poolName, link string) error
}

// EmailService sends mail through an SMTP relay.
type EmailService struct {
	config SMTPServerConfig
	auth   smtp.Auth
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailService creates a new service for sending emails.
func NewEmailService(config SMTPServerConfig) *EmailService {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &EmailService{
		config: config,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// SendMagicLink emails a one-time sign-in link.
func (s *EmailService) SendMagicLink(recipient, link string) error {
	subject := "Your Bowl Pick'em sign-in link"
	body := fmt.Sprintf(
		"Hi there,\n\nUse this link to sign in to Bowl Pick'em:\n%s\n\nThe link works once and expires in an hour. If you didn't ask for it you can ignore this email.\n\nThe Bowl Pick'em Team",
		link,
	)
	return s.sendMessage(recipient, subject, body)
}

// SendPoolInvite emails an invitation to join a pool.
func (s *EmailService) SendPoolInvite(recipient, inviterName, poolName, link string) error {
	subject := fmt.Sprintf("You've been invited to the '%s' bowl pool", poolName)
	body := fmt.Sprintf(
		"Hi there,\n\n%s has invited you to join the pool '%s' on Bowl Pick'em.\n\nFollow this link to sign in and join:\n%s\n\nGood luck with your picks!\nThe Bowl Pick'em Team",
		inviterName,
		poolName,
		link,
	)
	return s.sendMessage(recipient, subject, body)
}

func (s *EmailService) sendMessage(recipient, subject, body string) error {
	if strings.ContainsAny(recipient, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("refusing to send: header contains a line break")
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	message := []byte(
		"To: " + recipient + "\r\n" +
			"From: " + s.config.Sender + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n" +
			"\r\n" +
			body + "\r\n")

	if err := s.send(addr, s.auth, s.config.Sender, []string{recipient}, message); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	return nil
}

// LogSender writes emails to the log instead of sending them. It stands in
// for SMTP in local development.
type LogSender struct {
	Logger logrus.FieldLogger
}

func (l LogSender) SendMagicLink(recipient, link string) error {
	l.Logger.WithFields(logrus.Fields{"to": recipient, "link": link}).Info("Sign-in link (SMTP not configured)")
	return nil
}

func (l LogSender) SendPoolInvite(recipient, inviterName, poolName, link string) error {
	l.Logger.WithFields(logrus.Fields{
		"to":      recipient,
		"inviter": inviterName,
		"pool":    poolName,
		"link":    link,
	}).Info("Pool invite (SMTP not configured)")
	return nil
}
