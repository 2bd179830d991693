// Package provider talks to the Fio banka statement API.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/ledgersync/internal/buildinfo"
	"github.com/cleared-dev/ledgersync/internal/importer"
	"github.com/cleared-dev/ledgersync/internal/model"
	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

// DefaultEpoch is the earliest date the provider accepts as a cursor.
var DefaultEpoch = time.Date(2012, time.July, 27, 0, 0, 0, 0, time.UTC)

const (
	DefaultBackoff = 30 * time.Second
	DefaultTimeout = 60 * time.Second
	cursorDate     = "2006-01-02"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	// Backoff is how long to wait after the provider answers "too early".
	Backoff time.Duration
	// Epoch is the cursor date used when no checkpoint exists.
	Epoch   time.Time
	Timeout time.Duration
}

// Cursor positions the provider's "last download" marker. FromTransferID
// wins when set; otherwise FromDate is used.
type Cursor struct {
	FromDate       time.Time
	FromTransferID string
}

// Client fetches statements from the provider.
type Client struct {
	baseURL string
	backoff time.Duration
	epoch   time.Time
	client  *http.Client
	parser  importer.Parser
	log     zerolog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient creates a provider client. Zero config values fall back to the
// package defaults.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Epoch.IsZero() {
		cfg.Epoch = DefaultEpoch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		backoff: cfg.Backoff,
		epoch:   cfg.Epoch,
		client:  &http.Client{Timeout: cfg.Timeout},
		parser:  &importer.FioParser{},
		log:     log.With().Str("client", "fio").Logger(),
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// maskToken keeps the first four characters of an API token for logs.
func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}

// SetCursor moves the provider's download marker so the next fetch returns
// movements after it.
func (c *Client) SetCursor(ctx context.Context, token string, cursor Cursor) error {
	var endpoint string
	if cursor.FromTransferID != "" {
		endpoint = fmt.Sprintf("/set-last-id/%s/%s/", url.PathEscape(token), url.PathEscape(cursor.FromTransferID))
	} else {
		from := cursor.FromDate
		if from.IsZero() {
			from = c.epoch
		}
		endpoint = fmt.Sprintf("/set-last-date/%s/%s/", url.PathEscape(token), from.Format(cursorDate))
	}

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return syncerr.New(syncerr.Transport, "setting provider cursor", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return syncerr.Errorf(syncerr.Transport, "setting provider cursor", "unexpected status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("token", maskToken(token)).
		Str("from_id", cursor.FromTransferID).
		Msg("Provider cursor set")
	return nil
}

// FetchStatement downloads the movements after the cursor. When the
// provider rejects the call as too early and wait is set, the client sleeps
// the configured backoff and retries once.
func (c *Client) FetchStatement(ctx context.Context, token string, wait bool) (*model.RawStatement, error) {
	endpoint := fmt.Sprintf("/last/%s/transactions.json", url.PathEscape(token))

	for attempt := 0; ; attempt++ {
		resp, err := c.get(ctx, endpoint)
		if err != nil {
			return nil, syncerr.New(syncerr.Transport, "fetching statement", err)
		}

		if resp.StatusCode == http.StatusConflict {
			resp.Body.Close()
			if !wait || attempt > 0 {
				return nil, syncerr.Errorf(syncerr.ProviderConflict, "fetching statement",
					"provider unavailable, wait %s between calls", c.backoff)
			}
			c.log.Warn().
				Str("token", maskToken(token)).
				Dur("backoff", c.backoff).
				Msg("Statement request too early, waiting")
			if err := c.sleep(ctx, c.backoff); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, syncerr.Errorf(syncerr.Transport, "fetching statement", "unexpected status %d", resp.StatusCode)
		}

		stmt, err := c.parser.Parse(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		c.log.Info().
			Str("iban", stmt.Info.IBAN).
			Int("rows", len(stmt.Rows)).
			Msg("Loaded account statement")
		return stmt, nil
	}
}

// Statement positions the cursor after fromTransferID (or at the epoch
// when empty) and fetches the statement.
func (c *Client) Statement(ctx context.Context, token, fromTransferID string, wait bool) (*model.RawStatement, error) {
	if err := c.SetCursor(ctx, token, Cursor{FromTransferID: fromTransferID}); err != nil {
		return nil, err
	}
	return c.FetchStatement(ctx, token, wait)
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	return resp, nil
}
