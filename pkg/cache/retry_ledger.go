package cache

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// RetryLedger remembers, for the lifetime of the process, which transfers already had
// their debit leg applied so a retry only re-issues the credit.
type RetryLedger struct {
	mu      sync.Mutex
	debited map[string]struct{}

	locksMu sync.Mutex
	locks   map[string]*txLock
}

type txLock struct {
	mu   sync.Mutex
	refs int
}

func NewRetryLedger() *RetryLedger {
	return &RetryLedger{
		debited: make(map[string]struct{}),
		locks:   make(map[string]*txLock),
	}
}

// Lock serializes work on one transaction id. The returned func releases it.
func (l *RetryLedger) Lock(transactionID string) func() {
	l.locksMu.Lock()
	lock, ok := l.locks[transactionID]
	if !ok {
		lock = &txLock{}
		l.locks[transactionID] = lock
	}
	lock.refs++
	l.locksMu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.locksMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, transactionID)
		}
		l.locksMu.Unlock()
	}
}

func (l *RetryLedger) IsDebited(_ context.Context, transactionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.debited[transactionID]
	return ok, nil
}

func (l *RetryLedger) MarkDebited(_ context.Context, transactionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.debited[transactionID]; !ok {
		l.debited[transactionID] = struct{}{}
		logrus.WithField("transaction_id", transactionID).Info("debit recorded in retry ledger")
	}
	return nil
}

func (l *RetryLedger) Clear(_ context.Context, transactionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.debited, transactionID)
	return nil
}

func (l *RetryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.debited)
}
