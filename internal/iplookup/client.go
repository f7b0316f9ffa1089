package iplookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/logging"
	"github.com/threatlens/threatlens/internal/metrics"
)

// Result is the subset of the lookup service response the dashboard
// displays and the ingest path uses for country backfill.
type Result struct {
	IP          string    `json:"ip"`
	Country     string    `json:"country,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	City        string    `json:"city,omitempty"`
	ISP         string    `json:"isp,omitempty"`
	Org         string    `json:"org,omitempty"`
	ASN         string    `json:"asn,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type cacheEntry struct {
	result    *Result
	expiresAt time.Time
}

// Client queries the lookup service with a bounded TTL cache in front.
type Client struct {
	baseURL  string
	cacheTTL time.Duration
	http     *http.Client
	cache    *lru.Cache[string, cacheEntry]
	log      zerolog.Logger
	now      func() time.Time
}

// New builds a Client from cfg.
func New(cfg config.LookupConfig) (*Client, error) {
	cache, err := lru.New[string, cacheEntry](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		cacheTTL: cfg.CacheTTL,
		http:     &http.Client{Timeout: cfg.Timeout},
		cache:    cache,
		log:      logging.WithComponent("iplookup"),
		now:      time.Now,
	}, nil
}

// Lookup resolves addr through the cache, fetching from the service on
// a miss. Transient fetch failures are retried with exponential backoff
// bounded by ctx.
func (c *Client) Lookup(ctx context.Context, addr string) (*Result, error) {
	if net.ParseIP(addr) == nil {
		return nil, fmt.Errorf("iplookup: %q is not a valid IP address", addr)
	}

	if entry, ok := c.cache.Get(addr); ok && c.now().Before(entry.expiresAt) {
		metrics.LookupRequestsTotal.WithLabelValues("cache_hit").Inc()
		return entry.result, nil
	}

	var res *Result
	op := func() error {
		var err error
		res, err = c.fetch(ctx, addr)
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		metrics.LookupRequestsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	c.cache.Add(addr, cacheEntry{result: res, expiresAt: c.now().Add(c.cacheTTL)})
	metrics.LookupRequestsTotal.WithLabelValues("fetched").Inc()
	return res, nil
}

// serviceResponse mirrors the ip-api.com JSON field names.
type serviceResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Query       string `json:"query"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
	ISP         string `json:"isp"`
	Org         string `json:"org"`
	AS          string `json:"as"`
}

func (c *Client) fetch(ctx context.Context, addr string) (*Result, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("iplookup: fetch %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("iplookup: service returned HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("iplookup: service returned HTTP %d", resp.StatusCode))
	}

	var sr serviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("iplookup: decode response: %w", err)
	}
	if sr.Status != "" && sr.Status != "success" {
		return nil, backoff.Permanent(fmt.Errorf("iplookup: service reported %q", sr.Message))
	}

	return &Result{
		IP:          addr,
		Country:     sr.Country,
		CountryCode: sr.CountryCode,
		City:        sr.City,
		ISP:         sr.ISP,
		Org:         sr.Org,
		ASN:         sr.AS,
		FetchedAt:   c.now(),
	}, nil
}

// Country is a convenience for the ingest path: best-effort country
// backfill that never fails the caller.
func (c *Client) Country(ctx context.Context, addr string) string {
	res, err := c.Lookup(ctx, addr)
	if err != nil {
		c.log.Debug().Err(err).Str("ip", addr).Msg("country backfill skipped")
		return ""
	}
	return res.Country
}
