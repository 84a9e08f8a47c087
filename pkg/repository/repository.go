package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"fund_transfer_back/models"
)

var (
	ErrNotFound          = errors.New("repository: transfer not found")
	ErrMissingMessage    = errors.New("repository: error status requires a message")
	ErrInvalidStatus     = errors.New("repository: invalid status")
	ErrDuplicateID       = errors.New("repository: duplicate transaction id")
	ErrNonPositiveValue  = errors.New("repository: value must be greater than zero")
	ErrInvalidTransition = errors.New("repository: invalid status transition")
)

type Transfer interface {
	Insert(ctx context.Context, t models.Transfer) (string, error)
	FindByStatus(ctx context.Context, status models.TransferStatus) ([]models.Transfer, error)
	FindByID(ctx context.Context, transactionID string) (models.Transfer, error)
	// UpdateStatus writes status unconditionally. It reports false when no record matched.
	UpdateStatus(ctx context.Context, transactionID string, status models.TransferStatus, errorMessage string) (bool, error)
	// Transition moves the record from one status to another only if it is still in from.
	// Moving into Processing counts as an attempt.
	Transition(ctx context.Context, transactionID string, from, to models.TransferStatus, errorMessage string) (bool, error)
}

// LegJournal durably records completed legs per transaction.
type LegJournal interface {
	MarkLeg(ctx context.Context, transactionID string, leg models.LegType) error
	HasLeg(ctx context.Context, transactionID string, leg models.LegType) (bool, error)
	ClearLegs(ctx context.Context, transactionID string) error
}

type Repository struct {
	Transfer
	LegJournal
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		Transfer:   NewTransferPostgres(db),
		LegJournal: NewLegJournalPostgres(db),
	}
}

func NewMemoryRepository() *Repository {
	return &Repository{
		Transfer:   NewTransferMemory(),
		LegJournal: NewLegJournalMemory(),
	}
}

func checkTransition(from, to models.TransferStatus, errorMessage string) error {
	if !from.CanTransitionTo(to) {
		return ErrInvalidTransition
	}
	return checkWrite(to, errorMessage)
}

func checkWrite(status models.TransferStatus, errorMessage string) error {
	if !status.IsValid() {
		return ErrInvalidStatus
	}
	if status == models.StatusError && errorMessage == "" {
		return ErrMissingMessage
	}
	return nil
}

// storedMessage keeps error_message populated only for the Error status.
func storedMessage(status models.TransferStatus, errorMessage string) *string {
	if status != models.StatusError {
		return nil
	}
	return &errorMessage
}
