package provider

import (
	"context"

	"github.com/rs/zerolog"
)

// ConsoleProvider writes the four send fields to the structured logger
// instead of contacting any network. It is the default for local
// development (notifiers.provider = "console").
type ConsoleProvider struct {
	from   string
	logger zerolog.Logger
}

// NewConsoleProvider creates a ConsoleProvider that logs as though it
// were sending from the given address.
func NewConsoleProvider(from string, logger *zerolog.Logger) *ConsoleProvider {
	return &ConsoleProvider{
		from:   from,
		logger: logger.With().Str("component", "console_provider").Logger(),
	}
}

// Send implements Provider by logging the message at debug level.
func (p *ConsoleProvider) Send(_ context.Context, recipient, subject, plainText, htmlText string) error {
	if err := validate(recipient, subject, plainText, htmlText); err != nil {
		return err
	}

	p.logger.Debug().
		Str("from", p.from).
		Str("to", recipient).
		Str("subject", subject).
		Str("plain_text", plainText).
		Str("html_text", htmlText).
		Msg(">>> console send")

	return nil
}
