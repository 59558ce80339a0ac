package notify

import (
	"context"
	"fmt"

	"github.com/lampstand/intercede/pkg/config"
	"github.com/lampstand/intercede/pkg/types"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// TwilioNotifier sends SMS and WhatsApp messages.
type TwilioNotifier struct {
	client *twilio.RestClient
	cfg    config.TwilioConfig
	log    *zap.SugaredLogger
}

func NewTwilioNotifier(cfg config.TwilioConfig, log *zap.SugaredLogger) *TwilioNotifier {
	return &TwilioNotifier{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
		cfg: cfg,
		log: log,
	}
}

func (n *TwilioNotifier) Send(ctx context.Context, contact types.Contact, msg Message) error {
	body := msg.Body
	if msg.Subject != "" {
		body = msg.Subject + "\n" + msg.Body
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetBody(body)
	if contact.Channel == types.ChannelWhatsApp {
		params.SetTo("whatsapp:" + contact.Address)
		params.SetFrom("whatsapp:" + n.cfg.WhatsAppNumber)
	} else {
		params.SetTo(contact.Address)
		params.SetFrom(n.cfg.FromNumber)
	}

	resp, err := n.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send to %s: %w", contact.Address, err)
	}
	if resp.Sid != nil {
		n.log.Debugw("twilio message accepted", "to", contact.Address, "sid", *resp.Sid)
	}
	return nil
}
