package config

import (
	"fmt"
	"strings"
)

// GatewayConfig holds what is needed to talk to one mobile-money provider.
type GatewayConfig struct {
	Slug          string
	Name          string
	Currency      string
	CollectionURL string
	StatusURL     string
	APIKey        string
	APISecret     string
	// Prefix lists the local MSISDN prefixes the operator owns, used when
	// no payment method row exists in the database.
	Prefix []string
	Options map[string]interface{}
}

// GetGatewayConfig retrieves the configuration for a specified gateway.
func GetGatewayConfig(gatewayName string) (GatewayConfig, error) {
	gateways := map[string]GatewayConfig{
		"orange_money": {
			Slug:          "orange_money",
			Name:          "Orange Money",
			Currency:      "XAF",
			CollectionURL: Config("ORANGE_MONEY_COLLECTION_URL", "https://api.orange.com/orange-money-webpay/cm/v1/mp/pay"),
			StatusURL:     Config("ORANGE_MONEY_STATUS_URL", "https://api.orange.com/orange-money-webpay/cm/v1/mp/paymentstatus"),
			APIKey:        Config("ORANGE_MONEY_API_KEY", ""),
			APISecret:     Config("ORANGE_MONEY_API_SECRET", ""),
			Prefix:        splitList(Config("ORANGE_MONEY_PREFIX", "655,656,657,658,659,686,687,688,689,69")),
			Options: map[string]interface{}{
				"channel": Config("ORANGE_MONEY_CHANNEL", "WEBPAY"),
			},
		},
		"mtn_momo": {
			Slug:          "mtn_momo",
			Name:          "MTN Mobile Money",
			Currency:      "XAF",
			CollectionURL: Config("MTN_MOMO_COLLECTION_URL", "https://proxy.momoapi.mtn.com/collection/v1_0/requesttopay"),
			StatusURL:     Config("MTN_MOMO_STATUS_URL", "https://proxy.momoapi.mtn.com/collection/v1_0/requesttopay"),
			APIKey:        Config("MTN_MOMO_API_KEY", ""),
			APISecret:     Config("MTN_MOMO_API_SECRET", ""),
			Prefix:        splitList(Config("MTN_MOMO_PREFIX", "650,651,652,653,654,67,680,681,682,683")),
			Options: map[string]interface{}{
				"target_environment": Config("MTN_MOMO_TARGET_ENV", "sandbox"),
			},
		},
	}

	if gw, exists := gateways[gatewayName]; exists {
		return gw, nil
	}
	return GatewayConfig{}, fmt.Errorf("gateway %s not found", gatewayName)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
