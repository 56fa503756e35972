// Package source implements the read-only client for the record store the
// scraper writes into: a PostgREST-style endpoint queried by lower-bound
// ingestion timestamp, ascending, page-limited.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"restockbot/internal/record"
)

// ErrSourceUnavailable covers every way a poll query can fail: transport
// errors, non-2xx statuses, and malformed response bodies. The caller aborts
// the cycle without touching the cursor and retries next interval.
var ErrSourceUnavailable = errors.New("record store unavailable")

type Config struct {
	BaseURL string
	APIKey  string
	Table   string

	// PageLimit bounds one query. Defaults to 100.
	PageLimit int

	// Timeout bounds one HTTP round trip so a stuck store cannot stall
	// future cycles. Defaults to 10s.
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("source base_url is empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		cfg.Table = "restock_records"
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}, nil
}

// PageLimit reports the effective page size, so the poller can tell a full
// page (more data likely pending) from a partial one.
func (c *Client) PageLimit() int { return c.cfg.PageLimit }

// FetchSince returns records with ingested_at strictly after since, ascending,
// capped at the page limit. The result is sorted defensively: source clock
// skew occasionally yields out-of-order rows, and equal timestamps are
// tie-broken by storage ID for determinism.
func (c *Client) FetchSince(ctx context.Context, since time.Time) ([]record.Record, error) {
	q := url.Values{}
	q.Set("ingested_at", "gt."+since.UTC().Format(time.RFC3339Nano))
	q.Set("order", "ingested_at.asc")
	q.Set("limit", fmt.Sprint(c.cfg.PageLimit))

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/rest/v1/" + c.cfg.Table + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("apikey", c.cfg.APIKey)
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: http %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var rows []wireRecord
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrSourceUnavailable, err)
	}

	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		r, err := row.toRecord()
		if err != nil {
			// A record with an unparsable timestamp would silently
			// corrupt the cursor if defaulted; fail the page instead.
			return nil, fmt.Errorf("%w: record %s: %v", ErrSourceUnavailable, row.ID, err)
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].IngestedAt.Equal(out[j].IngestedAt) {
			return out[i].IngestedAt.Before(out[j].IngestedAt)
		}
		return out[i].StorageID < out[j].StorageID
	})
	return out, nil
}
