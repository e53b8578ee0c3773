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
	"strconv"
	"strings"
	"time"

	"payverify/config"
	"payverify/helper"

	"github.com/tidwall/gjson"
)

var ErrProviderRejected = errors.New("provider rejected the request")

// ProviderStatus is a provider answer reduced to three outcomes.
type ProviderStatus string

const (
	ProviderPending ProviderStatus = "pending"
	ProviderSuccess ProviderStatus = "success"
	ProviderFailed  ProviderStatus = "failed"
)

// NormalizeProviderStatus maps the many provider spellings onto
// ProviderStatus. Unknown values are pending.
func NormalizeProviderStatus(raw string) ProviderStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESSFUL", "SUCCESS", "SUCCEEDED", "COMPLETED", "PAID", "00":
		return ProviderSuccess
	case "FAILED", "FAILURE", "REJECTED", "EXPIRED", "CANCELLED", "CANCELED", "TIMEOUT":
		return ProviderFailed
	default:
		return ProviderPending
	}
}

type CollectionRequest struct {
	TransactionID string
	MSISDN        string
	Amount        uint
	Currency      string
	Description   string
}

type CollectionResponse struct {
	ReferenceID string
	Status      ProviderStatus
}

type PaymentStatusResult struct {
	Status ProviderStatus
	Reason string
}

type collectionPayload struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ExternalID   string `json:"externalId"`
	Payer        payer  `json:"payer"`
	PayerMessage string `json:"payerMessage"`
	PayeeNote    string `json:"payeeNote"`
}

type payer struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

// MobileMoneyClient talks to one collection provider.
type MobileMoneyClient struct {
	gw     config.GatewayConfig
	client *http.Client
	log    *helper.PaymentHelpers
}

func NewMobileMoneyClient(gw config.GatewayConfig, httpClient *http.Client) *MobileMoneyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &MobileMoneyClient{gw: gw, client: httpClient, log: helper.PaymentLogger(gw.Slug)}
}

// NewMobileMoneyClients builds a client for every configured gateway.
func NewMobileMoneyClients(httpClient *http.Client, slugs ...string) (map[string]*MobileMoneyClient, error) {
	clients := make(map[string]*MobileMoneyClient, len(slugs))
	for _, slug := range slugs {
		gw, err := config.GetGatewayConfig(slug)
		if err != nil {
			return nil, err
		}
		clients[slug] = NewMobileMoneyClient(gw, httpClient)
	}
	return clients, nil
}

// RequestPayment asks the provider to push a payment prompt to the payer.
func (c *MobileMoneyClient) RequestPayment(ctx context.Context, in CollectionRequest) (CollectionResponse, error) {
	currency := in.Currency
	if currency == "" {
		currency = c.gw.Currency
	}
	body, err := json.Marshal(collectionPayload{
		Amount:       strconv.FormatUint(uint64(in.Amount), 10),
		Currency:     currency,
		ExternalID:   in.TransactionID,
		Payer:        payer{PartyIDType: "MSISDN", PartyID: helper.NormalizeMSISDN(in.MSISDN, true)},
		PayerMessage: in.Description,
		PayeeNote:    in.Description,
	})
	if err != nil {
		return CollectionResponse{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gw.CollectionURL, bytes.NewReader(body))
	if err != nil {
		return CollectionResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Reference-Id", in.TransactionID)
	c.authorize(req)

	respBody, status, err := c.do(req, in.TransactionID, string(body))
	if err != nil {
		return CollectionResponse{}, err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusAccepted {
		reason := gjson.GetBytes(respBody, "message").String()
		if reason == "" {
			reason = http.StatusText(status)
		}
		return CollectionResponse{}, fmt.Errorf("%w: %d %s", ErrProviderRejected, status, reason)
	}

	out := CollectionResponse{ReferenceID: in.TransactionID, Status: ProviderPending}
	if gjson.ValidBytes(respBody) {
		for _, path := range []string{"referenceId", "reference", "data.reference", "payToken"} {
			if ref := gjson.GetBytes(respBody, path).String(); ref != "" {
				out.ReferenceID = ref
				break
			}
		}
		out.Status = NormalizeProviderStatus(firstString(respBody, "status", "data.status"))
	}
	return out, nil
}

// CheckPayment queries the provider for a collection's status.
func (c *MobileMoneyClient) CheckPayment(ctx context.Context, referenceID string) (PaymentStatusResult, error) {
	endpoint := fmt.Sprintf("%s/%s", strings.TrimRight(c.gw.StatusURL, "/"), url.PathEscape(referenceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return PaymentStatusResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	respBody, status, err := c.do(req, referenceID, "")
	if err != nil {
		return PaymentStatusResult{}, err
	}
	if status != http.StatusOK {
		return PaymentStatusResult{}, fmt.Errorf("request failed with status: %d", status)
	}
	if !gjson.ValidBytes(respBody) {
		return PaymentStatusResult{}, fmt.Errorf("failed to decode response: invalid json")
	}

	return PaymentStatusResult{
		Status: NormalizeProviderStatus(firstString(respBody, "status", "data.status")),
		Reason: firstString(respBody, "reason", "data.reason", "message"),
	}, nil
}

func (c *MobileMoneyClient) authorize(req *http.Request) {
	if c.gw.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.gw.APIKey)
	}
	if c.gw.APISecret != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.gw.APISecret)
	}
}

func (c *MobileMoneyClient) do(req *http.Request, transactionID, requestBody string) ([]byte, int, error) {
	now := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.LogAPICall(req.URL.String(), req.Method, time.Since(now), 0,
			map[string]interface{}{"transaction_id": transactionID, "request_body": requestBody},
			map[string]interface{}{"error": err.Error()})
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	c.log.LogAPICall(req.URL.String(), req.Method, time.Since(now), resp.StatusCode,
		map[string]interface{}{"transaction_id": transactionID, "request_body": requestBody},
		map[string]interface{}{"body": string(body)})
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func firstString(body []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(body, p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
