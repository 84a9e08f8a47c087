package service

import (
	"context"

	"fund_transfer_back/models"
	"fund_transfer_back/pkg/repository"
)

type Transfer interface {
	CreateTransfer(ctx context.Context, input models.TransferInput) (string, error)
	GetTransferStatus(ctx context.Context, transactionID string) (models.TransferStatusResponse, error)
}

type Service struct {
	Transfer
}

func NewService(repos *repository.Repository) *Service {
	return &Service{
		Transfer: NewTransferService(repos.Transfer),
	}
}
