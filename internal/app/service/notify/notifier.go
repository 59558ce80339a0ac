package notify

import (
	"context"
	"fmt"

	"github.com/lampstand/intercede/pkg/config"
	"github.com/lampstand/intercede/pkg/types"

	"go.uber.org/zap"
)

// Message is a rendered reminder or check-in ready for delivery.
type Message struct {
	Subject string
	Body    string
}

// Notifier delivers one message to one contact. Implementations make a
// single delivery attempt and report the synchronous result; retry policy
// belongs to the scheduler, not the transport.
type Notifier interface {
	Send(ctx context.Context, contact types.Contact, msg Message) error
}

// New selects the delivery backend from configuration.
func New(cfg *config.Config, log *zap.SugaredLogger) (Notifier, error) {
	switch cfg.Notifier.Provider {
	case "twilio":
		return NewTwilioNotifier(cfg.Notifier.Twilio, log), nil
	case "smtp":
		return NewSMTPNotifier(cfg.Notifier.SMTP, log), nil
	default:
		return nil, fmt.Errorf("unknown notifier provider %q", cfg.Notifier.Provider)
	}
}
