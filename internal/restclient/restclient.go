// Package restclient is the minimal REST helper used by every adapter for
// symbol catalogs, order-book snapshots, auth-token minting and
// REST-polled endpoints (spec.md §4.7). It wraps net/http with a
// per-venue rate limiter, circuit breaker, and TTL cache, grounded on
// the teacher's internal/providers/guards package but built on the real
// ecosystem libraries (golang.org/x/time/rate, sony/gobreaker) instead of
// the teacher's hand-rolled token bucket and circuit-breaker structs.
package restclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ccxgo/ccxgo/internal/domain"
)

// DefaultTimeout is the REST helper's default request timeout (spec.md §4.7).
const DefaultTimeout = 9 * time.Second

// ExchangeInfoTTL is the catalog cache lifetime (spec.md §4.1, §4.3.2).
const ExchangeInfoTTL = 7200 * time.Second

// Config tunes a Client's rate limit and circuit breaker for one venue.
type Config struct {
	Venue        domain.Exchange
	RatePerSec   float64
	Burst        int
	Timeout      time.Duration
	FailureRatio float64 // circuit opens when failures reach this ratio once MinRequests have been made
	MinRequests  uint32
	OpenTimeout  time.Duration
}

// Client is a guarded HTTP GET helper shared by every adapter.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry
}

type cacheEntry struct {
	body    []byte
	expires time.Time
}

// New creates a guarded REST client for one venue.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RatePerSec)
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	breakerSettings := gobreaker.Settings{
		Name:        string(cfg.Venue) + "-rest",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("rest circuit breaker state change")
		},
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(breakerSettings),
		cache:   make(map[string]cacheEntry),
	}
}

// GetCached performs a GET, serving a cached body if still within ttl.
// Per spec.md §4.7, a transient failure returns (nil, nil): callers must
// treat a nil body as "try again later", never as "stream unsupported".
// A malformed URL returns a *domain.ConfigError.
func (c *Client) GetCached(ctx context.Context, rawURL string, ttl time.Duration) ([]byte, error) {
	if ttl > 0 {
		c.cacheMu.RLock()
		entry, ok := c.cache[rawURL]
		c.cacheMu.RUnlock()
		if ok && time.Now().Before(entry.expires) {
			return entry.body, nil
		}
	}

	body, err := c.Get(ctx, rawURL)
	if err != nil || body == nil {
		return nil, err
	}

	if ttl > 0 {
		c.cacheMu.Lock()
		c.cache[rawURL] = cacheEntry{body: body, expires: time.Now().Add(ttl)}
		c.cacheMu.Unlock()
	}
	return body, nil
}

// Get performs an unconditional rate-limited, circuit-broken GET. A
// transient failure logs and returns (nil, nil).
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, &domain.ConfigError{Reason: "malformed REST URL", Cause: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
		}
		return body, nil
	})

	if err != nil {
		log.Warn().Str("venue", string(c.cfg.Venue)).Str("url", rawURL).Err(err).Msg("rest request failed, caller should retry later")
		return nil, nil
	}

	return result.([]byte), nil
}

// Post performs a rate-limited, circuit-broken POST with a JSON body,
// used for Kucoin's bullet-public token mint.
func (c *Client) Post(ctx context.Context, rawURL string, body []byte, headers map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	})

	if err != nil {
		log.Warn().Str("venue", string(c.cfg.Venue)).Str("url", rawURL).Err(err).Msg("rest post failed, caller should retry later")
		return nil, nil
	}

	return result.([]byte), nil
}
