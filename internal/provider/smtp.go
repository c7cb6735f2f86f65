package provider

import (
	"context"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// SMTPConfig configures the SMTP provider.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// SMTPProvider sends email over SMTP, building a multipart/alternative
// MIME message (plain part first, html part last, per RFC 2046's
// "last part is preferred" rule) when both bodies are present, a
// single part otherwise, UTF-8 throughout.
type SMTPProvider struct {
	dialer *gomail.Dialer
	from   string
	logger zerolog.Logger
}

// NewSMTPProvider creates an SMTPProvider. The connection itself is
// opened on demand by Send, not here.
func NewSMTPProvider(cfg SMTPConfig, logger *zerolog.Logger) *SMTPProvider {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.UseTLS

	return &SMTPProvider{
		dialer: dialer,
		from:   cfg.From,
		logger: logger.With().Str("component", "smtp_provider").Logger(),
	}
}

// Send implements Provider. It opens a connection, sends the message,
// and closes it on every exit path (gomail.Dialer.DialAndSend does
// this internally).
func (p *SMTPProvider) Send(_ context.Context, recipient, subject, plainText, htmlText string) error {
	if err := validate(recipient, subject, plainText, htmlText); err != nil {
		return err
	}

	m := gomail.NewMessage(gomail.SetEncoding(gomail.QuotedPrintable))
	m.SetHeader("From", p.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)

	switch {
	case plainText != "" && htmlText != "":
		m.SetBody("text/plain", plainText)
		m.AddAlternative("text/html", htmlText)
	case plainText != "":
		m.SetBody("text/plain", plainText)
	default:
		m.SetBody("text/html", htmlText)
	}

	if err := p.dialer.DialAndSend(m); err != nil {
		p.logger.Error().Err(err).Str("recipient", recipient).Msg("failed to send email")
		return err
	}

	p.logger.Info().Str("recipient", recipient).Msg("email sent successfully")
	return nil
}
