// Package orchestrator drives queued transfers through the two remote legs.
//
// Each tick claims every queued transfer (In Queue -> Processing) and runs its pipeline:
// lookup both accounts, validate, debit origin, credit destination, finalize. Permanent
// failures end in Error, transient ones put the transfer back In Queue for the next tick.
// The debit and credit are independent remote calls, so a credit failure after a
// successful debit is remembered in the retry ledger and the next pass only re-issues
// the credit.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"fund_transfer_back/models"
	"fund_transfer_back/pkg/accountclient"
	"fund_transfer_back/pkg/repository"
	"fund_transfer_back/pkg/validator"
)

const (
	MsgInvalidAccount     = "invalid account number"
	MsgMalformedAccount   = "malformed account data"
	MsgDebitReversed      = "invalid account number, debit reversed"
	MsgRetryLimitExceeded = "retry limit exceeded"
)

type Gateway interface {
	LookupAccount(ctx context.Context, accountID string) (models.Account, error)
	ExecuteLeg(ctx context.Context, transactionID, accountID string, amount decimal.Decimal, leg models.LegType) error
}

type RetryLedger interface {
	Lock(transactionID string) func()
	IsDebited(ctx context.Context, transactionID string) (bool, error)
	MarkDebited(ctx context.Context, transactionID string) error
	Clear(ctx context.Context, transactionID string) error
}

// eagerLedger is implemented by ledgers that persist the debit as soon as it lands.
type eagerLedger interface {
	RecordsDebitEagerly() bool
}

type Notifier interface {
	Notify(ctx context.Context, t models.Transfer)
}

type Config struct {
	// Workers bounds how many transfers of one tick run at once. 1 processes them sequentially.
	Workers int
	// MaxAttempts sends a transfer to Error after that many claims end in a transient failure.
	// 0 retries forever.
	MaxAttempts int
	// CompensateFailedCredit credits the origin back when the destination rejects the credit
	// after the debit landed.
	CompensateFailedCredit bool
}

// TickResult counts the outcomes of one tick.
type TickResult struct {
	Claimed     int
	Confirmed   int
	Failed      int
	Requeued    int
	WriteFailed int
}

type outcome int

const (
	outcomeConfirmed outcome = iota
	outcomeFailed
	outcomeRequeued
	outcomeWriteFailed
)

type Orchestrator struct {
	store    repository.Transfer
	gateway  Gateway
	ledger   RetryLedger
	notifier Notifier
	cfg      Config
}

func New(store repository.Transfer, gateway Gateway, ledger RetryLedger, notifier Notifier, cfg Config) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Orchestrator{
		store:    store,
		gateway:  gateway,
		ledger:   ledger,
		notifier: notifier,
		cfg:      cfg,
	}
}

// RunOnce performs a single tick.
func (o *Orchestrator) RunOnce(ctx context.Context) TickResult {
	var result TickResult

	queued, err := o.store.FindByStatus(ctx, models.StatusInQueue)
	if err != nil {
		logrus.WithError(err).Error("failed to query queued transfers")
		return result
	}
	if len(queued) == 0 {
		return result
	}

	claimed := make([]models.Transfer, 0, len(queued))
	for _, t := range queued {
		if ctx.Err() != nil {
			break
		}
		ok, err := o.store.Transition(ctx, t.TransactionID, models.StatusInQueue, models.StatusProcessing, "")
		if err != nil {
			logrus.WithError(err).WithField("transaction_id", t.TransactionID).Error("failed to claim transfer")
			continue
		}
		if !ok {
			// claimed by an overlapping tick or another instance
			continue
		}
		t.Status = models.StatusProcessing
		t.Attempts++
		claimed = append(claimed, t)
	}
	result.Claimed = len(claimed)

	outcomes := make([]outcome, len(claimed))
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Workers)
	for i := range claimed {
		g.Go(func() error {
			outcomes[i] = o.process(ctx, claimed[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, oc := range outcomes {
		switch oc {
		case outcomeConfirmed:
			result.Confirmed++
		case outcomeFailed:
			result.Failed++
		case outcomeRequeued:
			result.Requeued++
		case outcomeWriteFailed:
			result.WriteFailed++
		}
	}

	logrus.WithFields(logrus.Fields{
		"claimed":      result.Claimed,
		"confirmed":    result.Confirmed,
		"failed":       result.Failed,
		"requeued":     result.Requeued,
		"write_failed": result.WriteFailed,
	}).Info("transfer tick finished")

	return result
}

// process runs one claimed transfer. A panic is treated as an unexpected transient fault.
func (o *Orchestrator) process(ctx context.Context, t models.Transfer) (oc outcome) {
	unlock := o.ledger.Lock(t.TransactionID)
	defer unlock()

	log := logrus.WithField("transaction_id", t.TransactionID)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic while processing transfer: %v", r)
			oc = o.requeue(ctx, t, fmt.Errorf("panic: %v", r))
		}
	}()

	return o.pipeline(ctx, t, log)
}

func (o *Orchestrator) pipeline(ctx context.Context, t models.Transfer, log *logrus.Entry) outcome {
	debited, err := o.ledger.IsDebited(ctx, t.TransactionID)
	if err != nil {
		return o.requeue(ctx, t, errors.WithMessage(err, "read retry ledger"))
	}

	origin, err := o.gateway.LookupAccount(ctx, t.AccountOrigin)
	if err != nil {
		return o.lookupFailed(ctx, t, err)
	}
	destination, err := o.gateway.LookupAccount(ctx, t.AccountDestination)
	if err != nil {
		if debited && errors.Is(err, accountclient.ErrNotFound) {
			return o.creditRejected(ctx, t, log)
		}
		return o.lookupFailed(ctx, t, err)
	}

	if err := validator.Validate(t.Value, origin, destination); err != nil {
		var rejection *validator.Rejection
		switch {
		case debited && errors.Is(err, validator.ErrInsufficientFunds):
			// funds were checked before the debit landed; the balance now reflects it
		case errors.As(err, &rejection):
			return o.fail(ctx, t, rejection.Reason)
		default:
			return o.requeue(ctx, t, err)
		}
	}

	if debited {
		log.Info("debit already applied, retrying credit only")
	} else {
		if err := o.gateway.ExecuteLeg(ctx, t.TransactionID, t.AccountOrigin, t.Value, models.LegDebit); err != nil {
			if errors.Is(err, accountclient.ErrNotFound) {
				return o.fail(ctx, t, MsgInvalidAccount)
			}
			return o.requeue(ctx, t, errors.WithMessage(err, "debit"))
		}
		if eager, ok := o.ledger.(eagerLedger); ok && eager.RecordsDebitEagerly() {
			o.markDebited(ctx, t, log)
		}
	}

	if err := o.gateway.ExecuteLeg(ctx, t.TransactionID, t.AccountDestination, t.Value, models.LegCredit); err != nil {
		if errors.Is(err, accountclient.ErrNotFound) {
			return o.creditRejected(ctx, t, log)
		}
		o.markDebited(ctx, t, log)
		return o.requeue(ctx, t, errors.WithMessage(err, "credit"))
	}

	return o.finish(ctx, t, models.StatusConfirmed, "")
}

func (o *Orchestrator) lookupFailed(ctx context.Context, t models.Transfer, err error) outcome {
	switch {
	case errors.Is(err, accountclient.ErrNotFound):
		return o.fail(ctx, t, MsgInvalidAccount)
	case errors.Is(err, accountclient.ErrMalformed):
		return o.fail(ctx, t, MsgMalformedAccount)
	default:
		return o.requeue(ctx, t, errors.WithMessage(err, "account lookup"))
	}
}

// creditRejected handles a destination that refused the credit after the origin was debited.
func (o *Orchestrator) creditRejected(ctx context.Context, t models.Transfer, log *logrus.Entry) outcome {
	if !o.cfg.CompensateFailedCredit {
		log.WithField("account", t.AccountOrigin).Error("credit rejected after debit, origin stays debited")
		return o.fail(ctx, t, MsgInvalidAccount)
	}

	err := o.gateway.ExecuteLeg(ctx, t.TransactionID, t.AccountOrigin, t.Value, models.LegCredit)
	if err != nil {
		o.markDebited(ctx, t, log)
		return o.requeue(ctx, t, errors.WithMessage(err, "compensating credit"))
	}
	log.Warn("credit rejected, debit reversed on origin")
	return o.fail(ctx, t, MsgDebitReversed)
}

func (o *Orchestrator) fail(ctx context.Context, t models.Transfer, reason string) outcome {
	return o.finish(ctx, t, models.StatusError, reason)
}

// finish moves the transfer to a terminal status, clears its ledger entry and notifies.
func (o *Orchestrator) finish(ctx context.Context, t models.Transfer, status models.TransferStatus, reason string) outcome {
	log := logrus.WithFields(logrus.Fields{"transaction_id": t.TransactionID, "status": status})

	if !o.write(ctx, t, status, reason) {
		return outcomeWriteFailed
	}
	o.clearLedger(ctx, t, log)

	t.Status = status
	if status == models.StatusError {
		t.ErrorMessage = &reason
		log.WithField("reason", reason).Warn("transfer failed")
	} else {
		log.Info("transfer confirmed")
	}
	if o.notifier != nil {
		o.notifier.Notify(ctx, t)
	}

	if status == models.StatusConfirmed {
		return outcomeConfirmed
	}
	return outcomeFailed
}

// requeue returns the transfer to the queue, or fails it once the attempt limit is reached.
func (o *Orchestrator) requeue(ctx context.Context, t models.Transfer, cause error) outcome {
	log := logrus.WithFields(logrus.Fields{
		"transaction_id": t.TransactionID,
		"attempt":        t.Attempts,
	}).WithError(cause)

	if o.cfg.MaxAttempts > 0 && t.Attempts >= o.cfg.MaxAttempts {
		log.Error("transient failure on last allowed attempt")
		return o.fail(ctx, t, MsgRetryLimitExceeded)
	}

	log.Warn("transient failure, transfer returned to queue")
	if !o.write(ctx, t, models.StatusInQueue, "") {
		return outcomeWriteFailed
	}
	return outcomeRequeued
}

func (o *Orchestrator) write(ctx context.Context, t models.Transfer, status models.TransferStatus, reason string) bool {
	log := logrus.WithFields(logrus.Fields{"transaction_id": t.TransactionID, "status": status})

	ok, err := o.store.Transition(ctx, t.TransactionID, models.StatusProcessing, status, reason)
	if err != nil {
		log.WithError(err).Error("failed to persist transfer status")
		return false
	}
	if !ok {
		log.Error("transfer left Processing concurrently, status not written")
		return false
	}
	return true
}

func (o *Orchestrator) markDebited(ctx context.Context, t models.Transfer, log *logrus.Entry) {
	if err := o.ledger.MarkDebited(ctx, t.TransactionID); err != nil {
		log.WithError(err).Error("failed to record debit in retry ledger")
	}
}

func (o *Orchestrator) clearLedger(ctx context.Context, t models.Transfer, log *logrus.Entry) {
	if err := o.ledger.Clear(ctx, t.TransactionID); err != nil {
		log.WithError(err).Error("failed to clear retry ledger entry")
	}
}

// RecoverStale returns transfers left in Processing by a previous process to the queue.
// It must only run while no other instance is processing the same store.
func (o *Orchestrator) RecoverStale(ctx context.Context) int {
	stale, err := o.store.FindByStatus(ctx, models.StatusProcessing)
	if err != nil {
		logrus.WithError(err).Error("failed to query stale transfers")
		return 0
	}

	recovered := 0
	for _, t := range stale {
		ok, err := o.store.Transition(ctx, t.TransactionID, models.StatusProcessing, models.StatusInQueue, "")
		if err != nil {
			logrus.WithError(err).WithField("transaction_id", t.TransactionID).Error("failed to requeue stale transfer")
			continue
		}
		if ok {
			recovered++
		}
	}
	if recovered > 0 {
		logrus.WithField("count", recovered).Warn("stale transfers returned to queue")
	}
	return recovered
}
