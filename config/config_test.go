package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("DB_HOST", "")

	s, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, s.Poller.Interval)
	require.Equal(t, 120*time.Second, s.Poller.Ceiling)
	require.Equal(t, 2*time.Second, s.Poller.NavigateDelay)
	require.Equal(t, 3, s.Poller.WarnAfterErrors)
	require.Equal(t, 0, s.Poller.MaxConsecutiveErrors)
	require.Equal(t, 10*time.Minute, s.PendingExpiry)
	require.Equal(t, "localhost", s.DBHost)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("POLL_MAX_ERRORS", "10")
	t.Setenv("DB_NAME", "payments")

	s, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, s.Poller.Interval)
	require.Equal(t, 10, s.Poller.MaxConsecutiveErrors)
	require.Contains(t, s.DSN(), "dbname=payments")
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("POLL_CEILING", "two minutes")
	t.Setenv("REDIS_DB", "zero")

	s, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "POLL_CEILING")
	require.Contains(t, err.Error(), "REDIS_DB")
	require.Equal(t, 120*time.Second, s.Poller.Ceiling)
}

func TestGetGatewayConfig(t *testing.T) {
	t.Setenv("MTN_MOMO_PREFIX", " 650, 67 ,")

	gw, err := GetGatewayConfig("mtn_momo")
	require.NoError(t, err)
	require.Equal(t, "XAF", gw.Currency)
	require.Equal(t, []string{"650", "67"}, gw.Prefix)

	_, err = GetGatewayConfig("paypal")
	require.Error(t, err)
}

func TestSettings_ValidateServer(t *testing.T) {
	t.Setenv("CALLBACK_SECRET", "")
	t.Setenv("JWT_SECRET", "jwt")

	s, err := Load()
	require.NoError(t, err)
	err = s.ValidateServer()
	require.Error(t, err)
	require.Contains(t, err.Error(), "CALLBACK_SECRET")
	require.NotContains(t, err.Error(), "JWT_SECRET")

	t.Setenv("CALLBACK_SECRET", "cb")
	s, err = Load()
	require.NoError(t, err)
	require.NoError(t, s.ValidateServer())
}
