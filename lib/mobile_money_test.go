package lib

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"payverify/config"

	"github.com/stretchr/testify/require"
)

func testGateway(url string) config.GatewayConfig {
	return config.GatewayConfig{
		Slug:          "mtn_momo",
		Currency:      "XAF",
		CollectionURL: url + "/collection/requesttopay",
		StatusURL:     url + "/collection/requesttopay",
		APIKey:        "key",
	}
}

func TestNormalizeProviderStatus(t *testing.T) {
	var tests = []struct {
		raw      string
		expected ProviderStatus
	}{
		{raw: "SUCCESSFUL", expected: ProviderSuccess},
		{raw: "success", expected: ProviderSuccess},
		{raw: "REJECTED", expected: ProviderFailed},
		{raw: "expired", expected: ProviderFailed},
		{raw: "PENDING", expected: ProviderPending},
		{raw: "", expected: ProviderPending},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.expected, NormalizeProviderStatus(tt.raw))
		})
	}
}

func TestMobileMoneyClient_RequestPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "tx-1", r.Header.Get("X-Reference-Id"))
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var payload collectionPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "15000", payload.Amount)
		require.Equal(t, "XAF", payload.Currency)
		require.Equal(t, "237670000001", payload.Payer.PartyID)

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"referenceId":"prov-9","status":"PENDING"}`))
	}))
	defer srv.Close()

	c := NewMobileMoneyClient(testGateway(srv.URL), nil)
	res, err := c.RequestPayment(context.Background(), CollectionRequest{
		TransactionID: "tx-1",
		MSISDN:        "670000001",
		Amount:        15000,
		Description:   "Manucure",
	})
	require.NoError(t, err)
	require.Equal(t, "prov-9", res.ReferenceID)
	require.Equal(t, ProviderPending, res.Status)
}

func TestMobileMoneyClient_RequestPaymentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"payer not found"}`))
	}))
	defer srv.Close()

	c := NewMobileMoneyClient(testGateway(srv.URL), nil)
	_, err := c.RequestPayment(context.Background(), CollectionRequest{TransactionID: "tx-1", MSISDN: "670000001", Amount: 100})
	require.ErrorIs(t, err, ErrProviderRejected)
	require.Contains(t, err.Error(), "payer not found")
}

func TestMobileMoneyClient_CheckPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collection/requesttopay/prov-9", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"FAILED","reason":"LOW_BALANCE"}`))
	}))
	defer srv.Close()

	c := NewMobileMoneyClient(testGateway(srv.URL), nil)
	res, err := c.CheckPayment(context.Background(), "prov-9")
	require.NoError(t, err)
	require.Equal(t, ProviderFailed, res.Status)
	require.Equal(t, "LOW_BALANCE", res.Reason)
}
