package models

import "github.com/shopspring/decimal"

type TransferInput struct {
	AccountOrigin      string           `json:"accountOrigin"`
	AccountDestination string           `json:"accountDestination"`
	Value              *decimal.Decimal `json:"value"`
	Email              string           `json:"email"`
}

type TransactionIDResponse struct {
	TransactionID string `json:"transactionId"`
}

type TransferStatusResponse struct {
	Status  TransferStatus `json:"status"`
	Message string         `json:"message,omitempty"`
}
