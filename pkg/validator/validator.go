// Package validator decides whether a queued transfer may touch the remote ledger.
package validator

import (
	"errors"

	"github.com/shopspring/decimal"

	"fund_transfer_back/models"
)

var (
	ErrSameAccount       = errors.New("same account")
	ErrMalformedAmount   = errors.New("invalid value or balance")
	ErrNonPositiveValue  = errors.New("negative or zero value")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Rejection carries the reason stored on the transfer when validation fails.
type Rejection struct {
	Reason string
	cause  error
}

func (r *Rejection) Error() string { return r.Reason }

func (r *Rejection) Unwrap() error { return r.cause }

func reject(cause error) *Rejection {
	return &Rejection{Reason: cause.Error(), cause: cause}
}

// Validate checks the transfer in a fixed order and returns the first failing check.
// It has no side effects.
func Validate(value decimal.Decimal, origin, destination models.Account) error {
	if origin.ID == destination.ID {
		return reject(ErrSameAccount)
	}
	if !origin.Balance.Valid {
		return reject(ErrMalformedAmount)
	}
	if !value.IsPositive() {
		return reject(ErrNonPositiveValue)
	}
	if origin.Balance.Decimal.Sub(value).IsNegative() {
		return reject(ErrInsufficientFunds)
	}
	return nil
}
