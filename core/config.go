package core

import (
	"fmt"
	"strings"
)

type WebhookConfig struct {
	// SignatureToleranceSeconds bounds |now - signed timestamp| for inbound
	// webhook signatures.
	SignatureToleranceSeconds int `koanf:"signature_tolerance_seconds" mapstructure:"signature_tolerance_seconds"`
	MaxAttempts               int `koanf:"max_attempts" mapstructure:"max_attempts"`
	RetryDelaySeconds         int `koanf:"retry_delay_seconds" mapstructure:"retry_delay_seconds"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Webhook     WebhookConfig `koanf:"webhook" mapstructure:"webhook"`
	// MarketSecrets maps a market (jurisdiction) id to its webhook signing
	// secret. Signature verification is per tenant market.
	MarketSecrets map[string]string `koanf:"market_secrets" mapstructure:"market_secrets"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "billing",
		Webhook: WebhookConfig{
			SignatureToleranceSeconds: 300,
			MaxAttempts:               8,
			RetryDelaySeconds:         30,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Webhook.SignatureToleranceSeconds < 0 {
		return fmt.Errorf("core: webhook.signature_tolerance_seconds must not be negative")
	}
	if c.Webhook.MaxAttempts < 0 {
		return fmt.Errorf("core: webhook.max_attempts must not be negative")
	}
	if c.Webhook.RetryDelaySeconds < 0 {
		return fmt.Errorf("core: webhook.retry_delay_seconds must not be negative")
	}
	return nil
}

// MarketSecret returns the signing secret for a market, empty when unknown.
func (c Config) MarketSecret(marketID string) string {
	if len(c.MarketSecrets) == 0 {
		return ""
	}
	return strings.TrimSpace(c.MarketSecrets[strings.TrimSpace(marketID)])
}
