package orchestrator

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"fund_transfer_back/models"
	"fund_transfer_back/pkg/accountclient"
	"fund_transfer_back/pkg/repository"
)

type legCall struct {
	TransactionID string
	Account       string
	Leg           models.LegType
	Amount        decimal.Decimal
}

// fakeGateway serves accounts from a map and pops scripted errors per account and leg.
type fakeGateway struct {
	mu         sync.Mutex
	accounts   map[string]models.Account
	lookupErrs map[string]error
	legErrs    map[string][]error
	legPanic   bool
	calls      []legCall
	lookups    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		accounts:   make(map[string]models.Account),
		lookupErrs: make(map[string]error),
		legErrs:    make(map[string][]error),
	}
}

func (g *fakeGateway) withAccount(id string, balance int64) *fakeGateway {
	g.accounts[id] = models.Account{ID: id, Balance: decimal.NewNullDecimal(decimal.NewFromInt(balance))}
	return g
}

func (g *fakeGateway) failLeg(account string, leg models.LegType, errs ...error) *fakeGateway {
	key := account + "/" + string(leg)
	g.legErrs[key] = append(g.legErrs[key], errs...)
	return g
}

func (g *fakeGateway) LookupAccount(_ context.Context, accountID string) (models.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lookups++
	if err, ok := g.lookupErrs[accountID]; ok {
		return models.Account{}, err
	}
	account, ok := g.accounts[accountID]
	if !ok {
		return models.Account{}, errors.Wrap(accountclient.ErrNotFound, accountID)
	}
	return account, nil
}

func (g *fakeGateway) ExecuteLeg(_ context.Context, transactionID, accountID string, amount decimal.Decimal, leg models.LegType) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.legPanic {
		panic("gateway exploded")
	}
	g.calls = append(g.calls, legCall{TransactionID: transactionID, Account: accountID, Leg: leg, Amount: amount})

	key := accountID + "/" + string(leg)
	if errs := g.legErrs[key]; len(errs) > 0 {
		g.legErrs[key] = errs[1:]
		if errs[0] != nil {
			return errs[0]
		}
	}

	if account, ok := g.accounts[accountID]; ok && account.Balance.Valid {
		if leg == models.LegDebit {
			account.Balance.Decimal = account.Balance.Decimal.Sub(amount)
		} else {
			account.Balance.Decimal = account.Balance.Decimal.Add(amount)
		}
		g.accounts[accountID] = account
	}
	return nil
}

func (g *fakeGateway) legCalls(transactionID string, leg models.LegType) []legCall {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []legCall
	for _, c := range g.calls {
		if c.TransactionID == transactionID && c.Leg == leg {
			out = append(out, c)
		}
	}
	return out
}

func (g *fakeGateway) totalLegCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) balance(id string) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.accounts[id].Balance.Decimal
}

type recordingNotifier struct {
	mu        sync.Mutex
	transfers []models.Transfer
}

func (n *recordingNotifier) Notify(_ context.Context, t models.Transfer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transfers = append(n.transfers, t)
}

func (n *recordingNotifier) all() []models.Transfer {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Transfer(nil), n.transfers...)
}

// failingStore fails Transition into the given status.
type failingStore struct {
	repository.Transfer
	failOn models.TransferStatus
}

func (s *failingStore) Transition(ctx context.Context, id string, from, to models.TransferStatus, msg string) (bool, error) {
	if to == s.failOn {
		return false, errors.New("db down")
	}
	return s.Transfer.Transition(ctx, id, from, to, msg)
}
