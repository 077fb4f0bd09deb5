package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var _ SessionCache = (*RESTCache)(nil)

// RESTCache implements SessionCache against an Upstash-compatible Redis REST
// endpoint. Each command is a single HTTP call authenticated with a bearer
// token, so there is no connection to manage.
type RESTCache struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRESTCache builds a REST cache client and verifies the endpoint with a
// PING command.
func NewRESTCache(ctx context.Context, baseURL, token string) (*RESTCache, error) {
	c := &RESTCache{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	if _, err := c.command(ctx, http.MethodGet, "/ping", ""); err != nil {
		return nil, fmt.Errorf("rest cache: ping: %w", err)
	}
	return c, nil
}

func (c *RESTCache) Get(ctx context.Context, key string) (string, error) {
	result, err := c.command(ctx, http.MethodGet, "/get/"+url.PathEscape(key), "")
	if err != nil {
		return "", fmt.Errorf("rest cache: get %s: %w", key, err)
	}
	if result == nil {
		return "", ErrCacheMiss
	}
	value, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("rest cache: get %s: unexpected result type %T", key, result)
	}
	return value, nil
}

func (c *RESTCache) SetWithTTL(ctx context.Context, key string, ttl time.Duration, value string) error {
	seconds := int64(ttl / time.Second)
	path := "/setex/" + url.PathEscape(key) + "/" + strconv.FormatInt(seconds, 10)
	if _, err := c.command(ctx, http.MethodPost, path, value); err != nil {
		return fmt.Errorf("rest cache: setex %s: %w", key, err)
	}
	return nil
}

func (c *RESTCache) Delete(ctx context.Context, key string) error {
	if _, err := c.command(ctx, http.MethodPost, "/del/"+url.PathEscape(key), ""); err != nil {
		return fmt.Errorf("rest cache: del %s: %w", key, err)
	}
	return nil
}

// Close is a no-op: the REST transport is stateless.
func (c *RESTCache) Close() error {
	return nil
}

func (c *RESTCache) command(ctx context.Context, method, path, body string) (any, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Result any    `json:"result"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, payload.Error)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("command failed: %s", payload.Error)
	}
	return payload.Result, nil
}
