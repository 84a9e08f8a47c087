// Package notifier delivers best-effort messages about finished transfers.
package notifier

import (
	"context"
	"fmt"
	"html"

	"github.com/sirupsen/logrus"

	"fund_transfer_back/models"
)

type Notifier interface {
	Send(ctx context.Context, address, subject, body string) error
}

// LogNotifier only writes the message to the log. Used when no mail provider is configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, address, subject, _ string) error {
	logrus.WithFields(logrus.Fields{
		"to":      address,
		"subject": subject,
	}).Info("notification skipped: no mail provider configured")
	return nil
}

// TerminalMessage builds the subject and HTML body for a transfer in a terminal status.
func TerminalMessage(t models.Transfer) (string, string) {
	id := html.EscapeString(t.TransactionID)
	origin := html.EscapeString(t.AccountOrigin)
	destination := html.EscapeString(t.AccountDestination)

	if t.Status == models.StatusConfirmed {
		return "Transfer confirmed", fmt.Sprintf(`<body style="margin:0;padding:0;background:#f6f6f6;">
  <h1 style="font-family:Arial,sans-serif;font-size:24px;color:#111;">Transfer confirmed</h1>
  <p style="font-family:Arial,sans-serif;font-size:16px;color:#222;">Transaction <b>%s</b>: %s moved from account %s to account %s.</p>
</body>`, id, t.Value.StringFixed(2), origin, destination)
	}

	return "Transfer failed", fmt.Sprintf(`<body style="margin:0;padding:0;background:#f6f6f6;">
  <h1 style="font-family:Arial,sans-serif;font-size:24px;color:#111;">Transfer failed</h1>
  <p style="font-family:Arial,sans-serif;font-size:16px;color:#222;">Transaction <b>%s</b> of %s from account %s to account %s was not completed.</p>
  <p style="font-family:Arial,sans-serif;font-size:16px;color:#555;">Reason: %s</p>
</body>`, id, t.Value.StringFixed(2), origin, destination, html.EscapeString(t.Message()))
}
