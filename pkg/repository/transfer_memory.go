package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"fund_transfer_back/models"
)

// TransferMemory is an in-memory Transfer store. Every method is atomic with respect to the others.
type TransferMemory struct {
	mu        sync.Mutex
	transfers map[string]models.Transfer
	seq       map[string]int
	next      int
	now       func() time.Time
}

func NewTransferMemory() *TransferMemory {
	return &TransferMemory{
		transfers: make(map[string]models.Transfer),
		seq:       make(map[string]int),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *TransferMemory) Insert(_ context.Context, t models.Transfer) (string, error) {
	if !t.Value.IsPositive() {
		return "", ErrNonPositiveValue
	}
	if err := checkWrite(t.Status, t.Message()); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.transfers[t.TransactionID]; exists {
		return "", ErrDuplicateID
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	m.transfers[t.TransactionID] = t
	m.seq[t.TransactionID] = m.next
	m.next++
	return t.TransactionID, nil
}

func (m *TransferMemory) FindByStatus(_ context.Context, status models.TransferStatus) ([]models.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Transfer
	for _, t := range m.transfers {
		if t.Status == status {
			result = append(result, t)
		}
	}
	// insertion order
	sort.Slice(result, func(i, j int) bool {
		return m.seq[result[i].TransactionID] < m.seq[result[j].TransactionID]
	})
	return result, nil
}

func (m *TransferMemory) FindByID(_ context.Context, transactionID string) (models.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transfers[transactionID]
	if !ok {
		return models.Transfer{}, ErrNotFound
	}
	return t, nil
}

func (m *TransferMemory) UpdateStatus(_ context.Context, transactionID string, status models.TransferStatus, errorMessage string) (bool, error) {
	if err := checkWrite(status, errorMessage); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transfers[transactionID]
	if !ok {
		return false, nil
	}
	m.write(t, status, errorMessage)
	return true, nil
}

func (m *TransferMemory) Transition(_ context.Context, transactionID string, from, to models.TransferStatus, errorMessage string) (bool, error) {
	if err := checkTransition(from, to, errorMessage); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transfers[transactionID]
	if !ok || t.Status != from {
		return false, nil
	}
	if to == models.StatusProcessing {
		t.Attempts++
	}
	m.write(t, to, errorMessage)
	return true, nil
}

func (m *TransferMemory) write(t models.Transfer, status models.TransferStatus, errorMessage string) {
	t.Status = status
	t.ErrorMessage = storedMessage(status, errorMessage)
	t.UpdatedAt = m.now()
	m.transfers[t.TransactionID] = t
}

var _ Transfer = (*TransferMemory)(nil)
