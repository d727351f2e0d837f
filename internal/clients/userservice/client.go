// Package userservice is the course service's client for the user service's
// internal profile endpoint.
package userservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"learnhub/internal/domain"
	"learnhub/internal/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var ErrNotFound = errors.New("user not found")

const (
	defaultTimeout  = 2 * time.Second
	defaultCacheTTL = time.Minute
	cacheSize       = 1024
	metricsTarget   = "user-service"
)

type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   *expirable.LRU[int64, domain.PublicUser]
	metrics *metrics.Metrics
}

func New(cfg Config, m *metrics.Metrics) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("userservice: base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("userservice: invalid base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   expirable.NewLRU[int64, domain.PublicUser](cacheSize, nil, cfg.CacheTTL),
		metrics: m,
	}, nil
}

// Profile returns the public profile of user id, served from cache when fresh.
func (c *Client) Profile(ctx context.Context, id int64) (*domain.PublicUser, error) {
	if p, ok := c.cache.Get(id); ok {
		c.metrics.Upstream(metricsTarget, "cache_hit")
		return &p, nil
	}

	p, err := c.fetch(ctx, id)
	if err != nil {
		c.metrics.Upstream(metricsTarget, "error")
		return nil, err
	}
	c.metrics.Upstream(metricsTarget, "ok")
	c.cache.Add(id, *p)
	return p, nil
}

func (c *Client) fetch(ctx context.Context, id int64) (*domain.PublicUser, error) {
	endpoint := c.baseURL + "/users/profile/" + strconv.FormatInt(id, 10) + "?" +
		url.Values{"apiKey": {c.apiKey}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile %d: %w", id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("fetch profile %d: unexpected status %d", id, resp.StatusCode)
	}

	var p domain.PublicUser
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile %d: %w", id, err)
	}
	return &p, nil
}
