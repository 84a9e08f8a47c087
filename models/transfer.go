package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	StatusInQueue    TransferStatus = "In Queue"
	StatusProcessing TransferStatus = "Processing"
	StatusConfirmed  TransferStatus = "Confirmed"
	StatusError      TransferStatus = "Error"
)

// IsTerminal сообщает, что из статуса нет автоматических переходов.
func (s TransferStatus) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusError
}

func (s TransferStatus) IsValid() bool {
	switch s {
	case StatusInQueue, StatusProcessing, StatusConfirmed, StatusError:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether next is a legal edge from s.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	switch s {
	case StatusInQueue:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusInQueue || next == StatusConfirmed || next == StatusError
	default:
		return false
	}
}

type Transfer struct {
	TransactionID      string          `db:"transaction_id" json:"transactionId"`
	AccountOrigin      string          `db:"account_origin" json:"accountOrigin"`
	AccountDestination string          `db:"account_destination" json:"accountDestination"`
	Value              decimal.Decimal `db:"value" json:"value"`
	Status             TransferStatus  `db:"status" json:"status"`
	ErrorMessage       *string         `db:"error_message" json:"errorMessage,omitempty"`
	Email              *string         `db:"email" json:"email,omitempty"`
	Attempts           int             `db:"attempts" json:"attempts"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updatedAt"`
}

func (t Transfer) Message() string {
	if t.ErrorMessage == nil {
		return ""
	}
	return *t.ErrorMessage
}

func (t Transfer) Contact() string {
	if t.Email == nil {
		return ""
	}
	return *t.Email
}
