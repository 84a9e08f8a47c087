// Package accountclient talks to the remote account ledger over HTTP.
//
// The client never retries: a leg issued twice may be applied twice by the remote side,
// so every retry decision belongs to the caller.
package accountclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"fund_transfer_back/models"
)

var (
	ErrNotFound          = errors.New("account not found")
	ErrRemoteUnavailable = errors.New("account service unavailable")
	ErrMalformed         = errors.New("malformed account response")
	ErrUnexpected        = errors.New("unexpected account service response")
)

const transactionHeader = "X-Transaction-Id"

type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

type Config struct {
	BaseURL string
	// Timeout of 0 keeps the transport default.
	Timeout time.Duration
	Breaker BreakerConfig
}

type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Client{
		http:    client,
		breaker: newBreaker(cfg.Breaker),
	}
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "account-service",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})
}

// do runs the request behind the breaker. Only transport failures and 5xx trip it.
func (c *Client) do(send func() (*resty.Response, error)) (*resty.Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := send()
		if err != nil {
			return nil, errors.Wrap(ErrRemoteUnavailable, err.Error())
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, errors.Wrapf(ErrRemoteUnavailable, "status %d", resp.StatusCode())
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrap(ErrRemoteUnavailable, err.Error())
	}
	if err != nil {
		return nil, err
	}
	return result.(*resty.Response), nil
}

type accountPayload struct {
	ID      json.RawMessage     `json:"id"`
	Balance decimal.NullDecimal `json:"balance"`
}

func (c *Client) LookupAccount(ctx context.Context, accountID string) (models.Account, error) {
	resp, err := c.do(func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetPathParam("accountId", accountID).
			Get("/{accountId}")
	})
	if err != nil {
		return models.Account{}, errors.WithMessagef(err, "lookup account %s", accountID)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return models.Account{}, errors.Wrapf(ErrNotFound, "account %s", accountID)
	case !resp.IsSuccess():
		return models.Account{}, errors.Wrapf(ErrRemoteUnavailable, "lookup account %s: status %d", accountID, resp.StatusCode())
	}

	var payload accountPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return models.Account{}, errors.Wrapf(ErrMalformed, "account %s: %v", accountID, err)
	}
	id := strings.Trim(strings.TrimSpace(string(payload.ID)), `"`)
	if id == "" || id == "null" {
		return models.Account{}, errors.Wrapf(ErrMalformed, "account %s: missing id", accountID)
	}

	return models.Account{ID: id, Balance: payload.Balance}, nil
}

func (c *Client) ExecuteLeg(ctx context.Context, transactionID, accountID string, amount decimal.Decimal, leg models.LegType) error {
	log := logrus.WithFields(logrus.Fields{
		"transaction_id": transactionID,
		"account":        accountID,
		"leg":            leg,
	})

	resp, err := c.do(func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeader(transactionHeader, transactionID).
			SetBody(models.LegRequest{AccountNumber: accountID, Value: amount, Type: leg}).
			Post("")
	})
	if err != nil {
		return errors.WithMessagef(err, "%s leg on %s", leg, accountID)
	}

	switch {
	case resp.IsSuccess():
		log.Debug("leg complete")
		return nil
	case resp.StatusCode() == http.StatusNotFound:
		return errors.Wrapf(ErrNotFound, "%s leg on %s", leg, accountID)
	default:
		return errors.Wrapf(ErrUnexpected, "%s leg on %s: status %d", leg, accountID, resp.StatusCode())
	}
}
