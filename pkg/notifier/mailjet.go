package notifier

import (
	"context"

	"github.com/mailjet/mailjet-apiv3-go/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type MailjetConfig struct {
	APIKey    string
	SecretKey string
	FromEmail string
	FromName  string
}

type MailjetNotifier struct {
	client *mailjet.Client
	from   mailjet.RecipientV31
}

func NewMailjetNotifier(cfg MailjetConfig) (*MailjetNotifier, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("MAILJET_API_KEY or MAILJET_SECRET_KEY is not set")
	}
	return &MailjetNotifier{
		client: mailjet.NewMailjetClient(cfg.APIKey, cfg.SecretKey),
		from:   mailjet.RecipientV31{Email: cfg.FromEmail, Name: cfg.FromName},
	}, nil
}

func (n *MailjetNotifier) Send(_ context.Context, address, subject, body string) error {
	from := n.from
	messages := &mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{
		{
			From:     &from,
			To:       &mailjet.RecipientsV31{{Email: address}},
			Subject:  subject,
			HTMLPart: body,
		},
	}}

	res, err := n.client.SendMailV31(messages)
	if err != nil {
		return errors.Wrapf(err, "mailjet send to %s", address)
	}
	logrus.WithField("to", address).Debugf("mailjet response: %+v", res)
	return nil
}
