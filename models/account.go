package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Account is read from the remote ledger for one orchestration pass and never stored.
type Account struct {
	ID      string              `json:"id"`
	Balance decimal.NullDecimal `json:"balance"`
}

type LegType string

const (
	LegCredit LegType = "Credit"
	LegDebit  LegType = "Debit"
)

// LegRequest is the body of a credit/debit call to the account service.
type LegRequest struct {
	AccountNumber string          `json:"accountNumber"`
	Value         decimal.Decimal `json:"value"`
	Type          LegType         `json:"type"`
}

// MarshalJSON sends value as a plain JSON number, which is what the account service parses.
func (r LegRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AccountNumber string      `json:"accountNumber"`
		Value         json.Number `json:"value"`
		Type          LegType     `json:"type"`
	}{
		AccountNumber: r.AccountNumber,
		Value:         json.Number(r.Value.String()),
		Type:          r.Type,
	})
}
