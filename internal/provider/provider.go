// Package provider implements the pluggable delivery transport: given
// a rendered subject/plain/html triple and a recipient, actually get
// the message out. Today the only transport is email (SMTP or, for
// local development, a console dump); the interface has room for
// future channels (SMS, push) without touching the notifier.
package provider

import (
	"context"
	"errors"
)

// ErrInvalidParameter is returned when recipient/subject are empty or
// neither body is present. The notifier treats it the same as a
// transport error: both count as a failed send for retry purposes.
var ErrInvalidParameter = errors.New("provider: invalid parameter")

// Provider delivers one rendered message.
type Provider interface {
	Send(ctx context.Context, recipient, subject, plainText, htmlText string) error
}

func validate(recipient, subject, plainText, htmlText string) error {
	if recipient == "" || subject == "" {
		return ErrInvalidParameter
	}
	if plainText == "" && htmlText == "" {
		return ErrInvalidParameter
	}
	return nil
}
