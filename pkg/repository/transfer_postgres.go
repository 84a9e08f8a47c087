package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"fund_transfer_back/models"
)

const uniqueViolation = "23505"

const transferColumns = `transaction_id, account_origin, account_destination, value, status,
	error_message, email, attempts, created_at, updated_at`

type TransferPostgres struct {
	db *sqlx.DB
}

func NewTransferPostgres(db *sqlx.DB) *TransferPostgres {
	return &TransferPostgres{db: db}
}

func (r *TransferPostgres) Insert(ctx context.Context, t models.Transfer) (string, error) {
	if !t.Value.IsPositive() {
		return "", ErrNonPositiveValue
	}
	if err := checkWrite(t.Status, t.Message()); err != nil {
		return "", err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	query := `
        INSERT INTO transfers (transaction_id, account_origin, account_destination, value, status,
                               error_message, email, attempts, created_at, updated_at)
        VALUES (:transaction_id, :account_origin, :account_destination, :value, :status,
                :error_message, :email, :attempts, :created_at, :updated_at)
    `
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return "", ErrDuplicateID
		}
		return "", errors.Wrapf(err, "insert transfer %s", t.TransactionID)
	}
	return t.TransactionID, nil
}

func (r *TransferPostgres) FindByStatus(ctx context.Context, status models.TransferStatus) ([]models.Transfer, error) {
	var transfers []models.Transfer
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE status = $1 ORDER BY created_at, transaction_id`
	if err := r.db.SelectContext(ctx, &transfers, query, status); err != nil {
		return nil, errors.Wrapf(err, "select transfers with status %q", status)
	}
	return transfers, nil
}

func (r *TransferPostgres) FindByID(ctx context.Context, transactionID string) (models.Transfer, error) {
	var transfer models.Transfer
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE transaction_id = $1`
	err := r.db.GetContext(ctx, &transfer, query, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return transfer, ErrNotFound
	}
	return transfer, errors.Wrapf(err, "select transfer %s", transactionID)
}

func (r *TransferPostgres) UpdateStatus(ctx context.Context, transactionID string, status models.TransferStatus, errorMessage string) (bool, error) {
	if err := checkWrite(status, errorMessage); err != nil {
		return false, err
	}

	query := `
        UPDATE transfers
           SET status = $2, error_message = $3, updated_at = now()
         WHERE transaction_id = $1
    `
	res, err := r.db.ExecContext(ctx, query, transactionID, status, storedMessage(status, errorMessage))
	if err != nil {
		return false, errors.Wrapf(err, "update transfer %s", transactionID)
	}
	return affectedOne(res)
}

func (r *TransferPostgres) Transition(ctx context.Context, transactionID string, from, to models.TransferStatus, errorMessage string) (bool, error) {
	if err := checkTransition(from, to, errorMessage); err != nil {
		return false, err
	}

	query := `
        UPDATE transfers
           SET status = $3,
               error_message = $4,
               attempts = attempts + CASE WHEN $5 THEN 1 ELSE 0 END,
               updated_at = now()
         WHERE transaction_id = $1 AND status = $2
    `
	res, err := r.db.ExecContext(ctx, query,
		transactionID, from, to, storedMessage(to, errorMessage), to == models.StatusProcessing)
	if err != nil {
		return false, errors.Wrapf(err, "transition transfer %s %s -> %s", transactionID, from, to)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n == 1, nil
}

var _ Transfer = (*TransferPostgres)(nil)
