package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fund_transfer_back/models"
	"fund_transfer_back/pkg/repository"
)

var ErrTransferNotFound = errors.New("transfer not found")

// InputError is returned for requests rejected before anything is stored.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

func invalid(format string, args ...interface{}) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

var emailPattern = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)

type TransferService struct {
	repos repository.Transfer
	newID func() string
}

func NewTransferService(repos repository.Transfer) *TransferService {
	return &TransferService{
		repos: repos,
		newID: uuid.NewString,
	}
}

// CreateTransfer checks the request for obvious mistakes and queues it.
// Balances and account existence are checked later by the orchestrator.
func (s *TransferService) CreateTransfer(ctx context.Context, input models.TransferInput) (string, error) {
	input.AccountOrigin = strings.TrimSpace(input.AccountOrigin)
	input.AccountDestination = strings.TrimSpace(input.AccountDestination)
	input.Email = strings.TrimSpace(input.Email)

	if err := validateInput(input); err != nil {
		return "", err
	}

	t := models.Transfer{
		TransactionID:      s.newID(),
		AccountOrigin:      input.AccountOrigin,
		AccountDestination: input.AccountDestination,
		Value:              *input.Value,
		Status:             models.StatusInQueue,
	}
	if input.Email != "" {
		t.Email = &input.Email
	}

	id, err := s.repos.Insert(ctx, t)
	if err != nil {
		return "", errors.Wrap(err, "queue transfer")
	}
	logrus.WithFields(logrus.Fields{
		"transaction_id": id,
		"origin":         t.AccountOrigin,
		"destination":    t.AccountDestination,
		"value":          t.Value.String(),
	}).Info("transfer queued")
	return id, nil
}

func (s *TransferService) GetTransferStatus(ctx context.Context, transactionID string) (models.TransferStatusResponse, error) {
	var response models.TransferStatusResponse

	if strings.TrimSpace(transactionID) == "" {
		return response, invalid("Invalid or missing transactionId")
	}

	t, err := s.repos.FindByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response, errors.Wrapf(ErrTransferNotFound, "Transaction '%s' not found", transactionID)
		}
		return response, errors.Wrapf(err, "find transfer %s", transactionID)
	}

	response.Status = t.Status
	if t.Status == models.StatusError {
		response.Message = t.Message()
	}
	return response, nil
}

func validateInput(input models.TransferInput) error {
	if input.AccountOrigin == "" {
		return invalid("Invalid or missing accountOrigin")
	}
	if input.AccountDestination == "" {
		return invalid("Invalid or missing accountDestination")
	}
	// money is stored with two decimal places
	if input.Value == nil || !input.Value.IsPositive() || !input.Value.Equal(input.Value.Round(2)) {
		return invalid("Invalid or missing value")
	}
	if input.AccountOrigin == input.AccountDestination {
		return invalid("Cannot transfer value to the same account")
	}
	if input.Email != "" && !emailPattern.MatchString(input.Email) {
		return invalid("Invalid e-mail address: %s", input.Email)
	}
	return nil
}
