package repository

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"fund_transfer_back/models"
)

type LegJournalPostgres struct {
	db *sqlx.DB
}

func NewLegJournalPostgres(db *sqlx.DB) *LegJournalPostgres {
	return &LegJournalPostgres{db: db}
}

func (r *LegJournalPostgres) MarkLeg(ctx context.Context, transactionID string, leg models.LegType) error {
	query := `
        INSERT INTO transfer_legs (transaction_id, leg)
        VALUES ($1, $2)
        ON CONFLICT (transaction_id, leg) DO NOTHING
    `
	_, err := r.db.ExecContext(ctx, query, transactionID, leg)
	return errors.Wrapf(err, "mark %s leg for %s", leg, transactionID)
}

func (r *LegJournalPostgres) HasLeg(ctx context.Context, transactionID string, leg models.LegType) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM transfer_legs WHERE transaction_id = $1 AND leg = $2)`
	if err := r.db.GetContext(ctx, &exists, query, transactionID, leg); err != nil {
		return false, errors.Wrapf(err, "lookup %s leg for %s", leg, transactionID)
	}
	return exists, nil
}

func (r *LegJournalPostgres) ClearLegs(ctx context.Context, transactionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transfer_legs WHERE transaction_id = $1`, transactionID)
	return errors.Wrapf(err, "clear legs for %s", transactionID)
}

type LegJournalMemory struct {
	mu   sync.Mutex
	legs map[string]map[models.LegType]struct{}
}

func NewLegJournalMemory() *LegJournalMemory {
	return &LegJournalMemory{legs: make(map[string]map[models.LegType]struct{})}
}

func (m *LegJournalMemory) MarkLeg(_ context.Context, transactionID string, leg models.LegType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.legs[transactionID] == nil {
		m.legs[transactionID] = make(map[models.LegType]struct{})
	}
	m.legs[transactionID][leg] = struct{}{}
	return nil
}

func (m *LegJournalMemory) HasLeg(_ context.Context, transactionID string, leg models.LegType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.legs[transactionID][leg]
	return ok, nil
}

func (m *LegJournalMemory) ClearLegs(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.legs, transactionID)
	return nil
}

var (
	_ LegJournal = (*LegJournalPostgres)(nil)
	_ LegJournal = (*LegJournalMemory)(nil)
)
