package provider

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/config"
)

// New constructs the Provider selected by cfg.Notifiers.Provider.
func New(cfg *config.Config, logger *zerolog.Logger) (Provider, error) {
	switch cfg.Notifiers.Provider {
	case "", "console":
		return NewConsoleProvider(cfg.Notifiers.Email.From, logger), nil
	case "smtp":
		return NewSMTPProvider(SMTPConfig{
			Host:     cfg.Notifiers.Email.Host,
			Port:     cfg.Notifiers.Email.Port,
			Username: cfg.Notifiers.Email.Username,
			Password: cfg.Notifiers.Email.Password,
			From:     cfg.Notifiers.Email.From,
			UseTLS:   cfg.Notifiers.Email.UseTLS,
		}, logger), nil
	default:
		return nil, fmt.Errorf("provider: unknown notifiers.provider %q", cfg.Notifiers.Provider)
	}
}
