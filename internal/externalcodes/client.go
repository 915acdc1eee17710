// Package externalcodes fetches the authoritative calculation-rule code list
// published by the external rule registry.
package externalcodes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned by Fetch when no feed URL is set.
var ErrNotConfigured = errors.New("external code feed not configured")

const maxFeedBytes = 4 << 20

// Cache keeps the last fetched list.
type Cache interface {
	GetCodes(ctx context.Context) ([]string, bool, error)
	SetCodes(ctx context.Context, codes []string) error
}

// Client reads the feed over HTTP.
type Client struct {
	url   string
	http  *http.Client
	cache Cache
	log   *zap.Logger
}

// New constructs a Client. An empty url yields a client whose Fetch returns
// ErrNotConfigured; cache may be nil.
func New(url string, cache Cache, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		url:   url,
		http:  &http.Client{Timeout: 10 * time.Second},
		cache: cache,
		log:   log,
	}
}

// Enabled reports whether a feed URL is configured.
func (c *Client) Enabled() bool { return c.url != "" }

// Fetch returns the external code list, from cache when available.
func (c *Client) Fetch(ctx context.Context) ([]string, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	if c.cache != nil {
		codes, ok, err := c.cache.GetCodes(ctx)
		if err != nil {
			c.log.Warn("external code cache read failed", zap.Error(err))
		} else if ok {
			return codes, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch external codes: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch external codes: unexpected status %d", resp.StatusCode)
	}

	codes, err := Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.SetCodes(ctx, codes); err != nil {
			c.log.Warn("external code cache write failed", zap.Error(err))
		}
	}
	return codes, nil
}

// Parse reads the line-oriented feed format: tokens terminated by commas,
// optionally quoted, one or more per line. Blank tokens are skipped and the
// first occurrence of a repeated token wins.
func Parse(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	out := []string{}
	seen := make(map[string]struct{})
	for sc.Scan() {
		for _, tok := range strings.Split(sc.Text(), ",") {
			tok = strings.Trim(strings.TrimSpace(tok), `"'`)
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse external codes: %w", err)
	}
	return out, nil
}
