package notify

import (
	"context"
	"fmt"

	"github.com/lampstand/intercede/pkg/config"
	"github.com/lampstand/intercede/pkg/types"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SMTPNotifier delivers reminders by email.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
	log    *zap.SugaredLogger
}

func NewSMTPNotifier(cfg config.SMTPConfig, log *zap.SugaredLogger) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		log:    log,
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, contact types.Contact, msg Message) error {
	if contact.Channel != types.ChannelEmail {
		return fmt.Errorf("smtp notifier cannot deliver to channel %q", contact.Channel)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", contact.Address)
	subject := msg.Subject
	if subject == "" {
		subject = "Prayer reminder"
	}
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", msg.Body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", contact.Address, err)
	}
	n.log.Debugw("email sent", "to", contact.Address)
	return nil
}
