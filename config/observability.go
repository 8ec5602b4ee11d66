package config

import (
	"strings"
	"time"
)

// ObservabilityConfig groups configuration that controls metrics and the
// downstream completion webhook.
type ObservabilityConfig struct {
	Metrics ObservabilityMetricsConfig
	Webhook CompletionWebhookConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Webhook.Sanitize()
}

// ObservabilityMetricsConfig controls emission of metrics to external sinks such as StatsD.
type ObservabilityMetricsConfig struct {
	Enabled       bool   `env:"OBSERVABILITY_METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// CompletionWebhookConfig controls the notification posted to a downstream
// consumer whenever a search job reaches a terminal state.
type CompletionWebhookConfig struct {
	Enabled    bool          `env:"COMPLETION_WEBHOOK_ENABLED"     envDefault:"false"`
	URL        string        `env:"COMPLETION_WEBHOOK_URL"`
	Timeout    time.Duration `env:"COMPLETION_WEBHOOK_TIMEOUT"     envDefault:"5s"`
	RetryLimit int           `env:"COMPLETION_WEBHOOK_RETRY_LIMIT" envDefault:"3"`
}

// Sanitize normalises completion webhook configuration values.
func (c *CompletionWebhookConfig) Sanitize() {
	c.URL = strings.TrimSpace(c.URL)
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
	if c.URL == "" {
		c.Enabled = false
	}
}
