package notifier

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"fund_transfer_back/models"
)

// Dispatcher fans a terminal transfer out to the mail notifier and the event publisher.
// Failures are logged and dropped.
type Dispatcher struct {
	mail   Notifier
	events EventPublisher
	now    func() time.Time
}

func NewDispatcher(mail Notifier, events EventPublisher) *Dispatcher {
	return &Dispatcher{
		mail:   mail,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (d *Dispatcher) Notify(ctx context.Context, t models.Transfer) {
	if !t.Status.IsTerminal() {
		return
	}
	log := logrus.WithFields(logrus.Fields{
		"transaction_id": t.TransactionID,
		"status":         t.Status,
	})

	if address := t.Contact(); address != "" && d.mail != nil {
		subject, body := TerminalMessage(t)
		if err := d.mail.Send(ctx, address, subject, body); err != nil {
			log.WithError(err).Error("failed to send transfer notification")
		}
	}

	if d.events != nil {
		if err := d.events.Publish(ctx, NewTransferEvent(t, d.now())); err != nil {
			log.WithError(err).Error("failed to publish transfer event")
		}
	}
}
