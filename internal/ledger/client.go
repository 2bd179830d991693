// Package ledger is the client of the downstream ledger service.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/ledgersync/internal/buildinfo"
	"github.com/cleared-dev/ledgersync/internal/model"
	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

// DefaultTimeout bounds a single ledger request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client creates accounts and transactions in the ledger.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a ledger client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log.With().Str("client", "ledger").Logger(),
	}
}

// AccountExists probes the ledger for an account.
func (c *Client) AccountExists(ctx context.Context, tenant, accountNumber string) (bool, error) {
	endpoint := fmt.Sprintf("/account/%s/%s", url.PathEscape(tenant), url.PathEscape(accountNumber))
	status, _, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, syncerr.New(syncerr.Transport, "probing account", err)
	}

	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, syncerr.Errorf(syncerr.Transport, "probing account", "account %s: unexpected status %d", accountNumber, status)
	}
}

// CreateAccount creates an account. A duplicate is reported as a
// LedgerConflictBenign error.
func (c *Client) CreateAccount(ctx context.Context, tenant string, account model.Account) error {
	endpoint := fmt.Sprintf("/account/%s", url.PathEscape(tenant))
	status, body, err := c.do(ctx, http.MethodPost, endpoint, account)
	if err != nil {
		return syncerr.New(syncerr.Transport, "creating account", err)
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return nil
	case status == http.StatusConflict:
		return syncerr.Errorf(syncerr.LedgerConflictBenign, "creating account", "account %s already exists", account.AccountNumber)
	default:
		return syncerr.Errorf(syncerr.Transport, "creating account", "account %s: unexpected status %d: %s", account.AccountNumber, status, body)
	}
}

// CreateTransaction submits a transaction. An existing transaction with a
// different payload is a LedgerConflictDivergent error; a transaction the
// ledger created and then rolled back is a LedgerConflictBenign error.
func (c *Client) CreateTransaction(ctx context.Context, tenant string, txn model.Transaction) error {
	endpoint := fmt.Sprintf("/transaction/%s", url.PathEscape(tenant))
	status, body, err := c.do(ctx, http.MethodPost, endpoint, txn)
	if err != nil {
		return syncerr.New(syncerr.Transport, "creating transaction", err)
	}

	switch status {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return syncerr.Errorf(syncerr.LedgerConflictDivergent, "creating transaction", "transaction %s exists with different data", txn.ID)
	case http.StatusExpectationFailed:
		return syncerr.Errorf(syncerr.LedgerConflictBenign, "creating transaction", "transaction %s created but rolled back", txn.ID)
	default:
		return syncerr.Errorf(syncerr.Transport, "creating transaction", "transaction %s: unexpected status %d: %s", txn.ID, status, body)
	}
}

// do sends a request with an optional JSON body and returns the status and
// a bounded copy of the response body.
func (c *Client) do(ctx context.Context, method, endpoint string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}

	c.log.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Msg("Ledger request")
	return resp.StatusCode, bytes.TrimSpace(body), nil
}
