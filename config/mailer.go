package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"

	mail "github.com/go-mail/mail/v2"
)

// SendMail delivers an HTML notification through the configured SMTP relay.
// Settings are read per call so godotenv loading order does not matter.
func SendMail(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}

	smtpHost := os.Getenv("SMTP_HOST")
	smtpFrom := os.Getenv("SMTP_FROM") // e.g. "Training System <no-reply@your.org>"
	if smtpHost == "" || smtpFrom == "" {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}
	smtpPort, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if smtpPort == 0 {
		smtpPort = 587
	}

	m := mail.NewMessage()
	m.SetHeader("From", smtpFrom)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	d := mail.NewDialer(smtpHost, smtpPort, os.Getenv("SMTP_USER"), os.Getenv("SMTP_PASS"))

	// Mandatory STARTTLS on port 587 (Gmail/Office365 compatible).
	d.StartTLSPolicy = mail.MandatoryStartTLS

	// ServerName must match the SMTP hostname for TLS verification.
	d.TLSConfig = &tls.Config{
		ServerName:         smtpHost,
		InsecureSkipVerify: os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1", // dev only
	}

	return d.DialAndSend(m)
}
