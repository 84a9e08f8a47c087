package cache

import (
	"context"

	"fund_transfer_back/models"
	"fund_transfer_back/pkg/repository"
)

// DurableRetryLedger writes debit knowledge through to a leg journal so it survives a restart.
// The in-memory ledger stays in front as a read cache and supplies the per-transaction locks.
type DurableRetryLedger struct {
	*RetryLedger
	journal repository.LegJournal
}

func NewDurableRetryLedger(journal repository.LegJournal) *DurableRetryLedger {
	return &DurableRetryLedger{
		RetryLedger: NewRetryLedger(),
		journal:     journal,
	}
}

func (l *DurableRetryLedger) IsDebited(ctx context.Context, transactionID string) (bool, error) {
	if ok, _ := l.RetryLedger.IsDebited(ctx, transactionID); ok {
		return true, nil
	}
	ok, err := l.journal.HasLeg(ctx, transactionID, models.LegDebit)
	if err != nil || !ok {
		return false, err
	}
	_ = l.RetryLedger.MarkDebited(ctx, transactionID)
	return true, nil
}

func (l *DurableRetryLedger) MarkDebited(ctx context.Context, transactionID string) error {
	if err := l.journal.MarkLeg(ctx, transactionID, models.LegDebit); err != nil {
		return err
	}
	return l.RetryLedger.MarkDebited(ctx, transactionID)
}

func (l *DurableRetryLedger) Clear(ctx context.Context, transactionID string) error {
	_ = l.RetryLedger.Clear(ctx, transactionID)
	return l.journal.ClearLegs(ctx, transactionID)
}

// RecordsDebitEagerly tells the orchestrator to record the debit as soon as it lands
// rather than only after a failed credit.
func (l *DurableRetryLedger) RecordsDebitEagerly() bool { return true }
