package portone

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/courseloop/api/utils/cache"
)

const (
	// DefaultBaseURL is the PortOne REST API base URL
	DefaultBaseURL = "https://api.iamport.kr"
	// DefaultTimeout bounds every gateway round trip; reconciliation treats
	// a timeout as a retryable gateway fault, never as a failed payment.
	DefaultTimeout = 10 * time.Second

	tokenCacheKey = "portone:access_token"
	// tokenCacheSlack is subtracted from the gateway-reported expiry so a
	// cached token is never used right at its deadline
	tokenCacheSlack = 30 * time.Second
)

// Config holds configuration for the PortOne client
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
	// Cache is optional; when set, access tokens are shared across
	// instances instead of re-issued per request
	Cache *cache.RedisCache
}

// Client handles all PortOne API interactions
type Client struct {
	http      *resty.Client
	apiKey    string
	apiSecret string
	cache     *cache.RedisCache
}

// NewClient creates a new PortOne API client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:      httpClient,
		apiKey:    config.APIKey,
		apiSecret: config.APISecret,
		cache:     config.Cache,
	}
}

// getAccessToken returns a valid API token, preferring the shared cache
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	if c.cache != nil {
		if token, err := c.cache.Get(ctx, tokenCacheKey); err == nil && token != "" {
			return token, nil
		}
	}

	var out tokenEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"imp_key":    c.apiKey,
			"imp_secret": c.apiSecret,
		}).
		SetResult(&out).
		Post("/users/getToken")
	if err != nil {
		return "", fmt.Errorf("portone: request token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("portone: token endpoint returned %s", resp.Status())
	}
	if out.Code != 0 {
		return "", fmt.Errorf("portone: token request rejected: %s", out.Message)
	}
	if out.Response.AccessToken == "" {
		return "", fmt.Errorf("portone: token endpoint returned empty token")
	}

	if c.cache != nil {
		ttl := time.Until(time.Unix(out.Response.ExpiredAt, 0)) - tokenCacheSlack
		if ttl > 0 {
			if err := c.cache.Set(ctx, tokenCacheKey, out.Response.AccessToken, ttl); err != nil {
				log.Printf("[PORTONE] failed to cache access token: %v", err)
			}
		}
	}

	return out.Response.AccessToken, nil
}

// invalidateToken drops the cached token after the gateway rejects it
func (c *Client) invalidateToken(ctx context.Context) {
	if c.cache != nil {
		if err := c.cache.Delete(ctx, tokenCacheKey); err != nil {
			log.Printf("[PORTONE] failed to drop cached access token: %v", err)
		}
	}
}

// GetPayment fetches the authoritative payment record for one imp_uid
func (c *Client) GetPayment(ctx context.Context, impUID string) (*PaymentRecord, error) {
	record, err := c.fetchPayment(ctx, impUID, false)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (c *Client) fetchPayment(ctx context.Context, impUID string, retried bool) (*PaymentRecord, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var out paymentEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Get("/payments/" + impUID)
	if err != nil {
		return nil, fmt.Errorf("portone: fetch payment %s: %w", impUID, err)
	}

	// A cached token can outlive its server-side validity; refresh once
	if resp.StatusCode() == http.StatusUnauthorized && !retried {
		c.invalidateToken(ctx)
		return c.fetchPayment(ctx, impUID, true)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("portone: payment lookup %s returned %s", impUID, resp.Status())
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("portone: payment lookup %s rejected: %s", impUID, out.Message)
	}

	var record PaymentRecord
	if err := json.Unmarshal(out.Response, &record); err != nil {
		return nil, fmt.Errorf("portone: decode payment %s: %w", impUID, err)
	}
	record.Raw = out.Response

	return &record, nil
}
