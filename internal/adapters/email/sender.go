// Package email sends transactional notifications through an external
// provider. Today that is a single demo-request alert to the sales inbox;
// delivery failures never block the flow that triggered them.
package email

import (
	"context"
	"time"
)

// SendRequest contains the data needed to send one email.
type SendRequest struct {
	To      []string
	From    string // Sender address, e.g. "FitSutra <hello@fitsutra.com>"
	Subject string
	HTML    string
	ReplyTo string
}

// SendResult contains the provider's acceptance of a send.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender is the interface for sending emails via an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
