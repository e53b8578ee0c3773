package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payverify/helper"
	"payverify/poller"

	"github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
)

var (
	ErrVerifyHTTPStatus = errors.New("verify endpoint returned an error status")
	ErrVerifyBody       = errors.New("verify endpoint returned an unreadable body")
	ErrTokenRequest     = errors.New("token request failed")
)

const maxBodySize = 1 << 20

type VerifyClientConfig struct {
	BaseURL string
	// Token is a static bearer token. When empty and TokenURL is set, a
	// client-credentials token is fetched and cached.
	Token        string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// VerifyClient calls GET {BaseURL}/payments/verify/{transactionId}.
type VerifyClient struct {
	cfg    VerifyClientConfig
	client *http.Client
	tokens *cache.Cache
	log    *helper.PaymentHelpers
}

func NewVerifyClient(cfg VerifyClientConfig) *VerifyClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &VerifyClient{
		cfg:    cfg,
		client: client,
		tokens: cache.New(55*time.Minute, 10*time.Minute),
		log:    helper.VerifyLogger,
	}
}

// Verify returns the reported status. Any transport failure, non-2xx
// answer or unreadable body is an error; a missing status is pending.
func (c *VerifyClient) Verify(ctx context.Context, transactionID string) (poller.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/payments/verify/%s", c.cfg.BaseURL, url.PathEscape(transactionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	now := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.LogAPICall(endpoint, http.MethodGet, time.Since(now), 0,
			map[string]interface{}{"transaction_id": transactionID},
			map[string]interface{}{"error": err.Error()})
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	c.log.LogAPICall(endpoint, http.MethodGet, time.Since(now), resp.StatusCode,
		map[string]interface{}{"transaction_id": transactionID},
		map[string]interface{}{"body": string(body)})
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Delete("accessToken")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s", ErrVerifyHTTPStatus, resp.Status)
	}

	return ParseVerifyBody(body)
}

// ParseVerifyBody reads "status", or "data.status" for enveloped answers.
func ParseVerifyBody(body []byte) (poller.Status, error) {
	if !gjson.ValidBytes(body) {
		return "", ErrVerifyBody
	}
	status := gjson.GetBytes(body, "status")
	if !status.Exists() || status.Type != gjson.String {
		status = gjson.GetBytes(body, "data.status")
	}
	return poller.ParseStatus(status.String()), nil
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

func (c *VerifyClient) accessToken(ctx context.Context) (string, error) {
	if c.cfg.Token != "" || c.cfg.TokenURL == "" {
		return c.cfg.Token, nil
	}
	if cached, found := c.tokens.Get("accessToken"); found {
		return cached.(string), nil
	}

	payload, err := json.Marshal(tokenRequest{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		GrantType:    "client_credentials",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", ErrTokenRequest, resp.Status)
	}

	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", fmt.Errorf("%w: no access_token in response", ErrTokenRequest)
	}

	ttl := 55 * time.Minute
	if expiresIn := gjson.GetBytes(body, "expires_in").Int(); expiresIn > 0 {
		ttl = time.Duration(expiresIn)*time.Second - time.Minute
		if ttl < 30*time.Second {
			ttl = 30 * time.Second
		}
	}
	c.tokens.Set("accessToken", token, ttl)
	return token, nil
}
