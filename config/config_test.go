package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:  "single service - http",
			input: "http",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP: true,
			},
			expectError: false,
		},
		{
			name:  "single service - worker",
			input: "worker",
			expected: map[ServiceMode]bool{
				ServiceModeWorker: true,
			},
			expectError: false,
		},
		{
			name:  "multiple services - http and worker",
			input: "http,worker",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeWorker: true,
			},
			expectError: false,
		},
		{
			name:  "all services",
			input: "http,worker,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeWorker: true,
				ServiceModeReaper: true,
			},
			expectError: false,
		},
		{
			name:  "services with spaces",
			input: " http , worker , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeWorker: true,
				ServiceModeReaper: true,
			},
			expectError: false,
		},
		{
			name:  "duplicate services",
			input: "http,http,worker",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeWorker: true,
			},
			expectError: false,
		},
		{
			name:        "empty string",
			input:       "",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "http,invalid-service",
			expected:    nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name           string
		services       string
		expectedHTTP   bool
		expectedWorker bool
		expectedReaper bool
	}{
		{
			name:         "default - http only",
			services:     "http",
			expectedHTTP: true,
		},
		{
			name:           "http and worker",
			services:       "http,worker",
			expectedHTTP:   true,
			expectedWorker: true,
		},
		{
			name:           "all services",
			services:       "http,worker,reaper",
			expectedHTTP:   true,
			expectedWorker: true,
			expectedReaper: true,
		},
		{
			name:           "worker only",
			services:       "worker",
			expectedWorker: true,
		},
		{
			name:           "reaper only",
			services:       "reaper",
			expectedReaper: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}

			if cfg.IsHTTPServerEnabled() != tt.expectedHTTP {
				t.Errorf("IsHTTPServerEnabled(): expected %v, got %v", tt.expectedHTTP, cfg.IsHTTPServerEnabled())
			}

			if cfg.IsWorkerEnabled() != tt.expectedWorker {
				t.Errorf("IsWorkerEnabled(): expected %v, got %v", tt.expectedWorker, cfg.IsWorkerEnabled())
			}

			if cfg.IsReaperEnabled() != tt.expectedReaper {
				t.Errorf("IsReaperEnabled(): expected %v, got %v", tt.expectedReaper, cfg.IsReaperEnabled())
			}
		})
	}
}

func TestConfig_ServiceEnabledMethodsWithInvalidConfig(t *testing.T) {
	cfg := AppConfig{Services: "invalid-service"}

	// All methods should return false when configuration is invalid
	if cfg.IsHTTPServerEnabled() {
		t.Errorf("IsHTTPServerEnabled() with invalid config: expected false, got true")
	}

	if cfg.IsWorkerEnabled() {
		t.Errorf("IsWorkerEnabled() with invalid config: expected false, got true")
	}

	if cfg.IsReaperEnabled() {
		t.Errorf("IsReaperEnabled() with invalid config: expected false, got true")
	}
}

func TestAppConfig_ParseWorkerEnv(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("WORKER_POLL_TIMEOUT", "2s")
	t.Setenv("WORKER_EMBEDDER_URL", "http://embedder:9090")
	t.Setenv("WORKER_INDEX_URL", "http://index:9091")
	t.Setenv("WORKER_DEFAULT_TOP_K", "10")
	t.Setenv("DISPATCH_QUEUE", "faces_search_queue_test")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Worker.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Worker.PollTimeout != 2*time.Second {
		t.Errorf("expected poll timeout 2s, got %v", cfg.Worker.PollTimeout)
	}
	if cfg.Worker.EmbedderURL != "http://embedder:9090" {
		t.Errorf("unexpected embedder url: %q", cfg.Worker.EmbedderURL)
	}
	if cfg.Worker.IndexURL != "http://index:9091" {
		t.Errorf("unexpected index url: %q", cfg.Worker.IndexURL)
	}
	if cfg.Worker.DefaultTopK != 10 {
		t.Errorf("expected default top_k 10, got %d", cfg.Worker.DefaultTopK)
	}
	if cfg.Dispatch.Queue != "faces_search_queue_test" {
		t.Errorf("unexpected dispatch queue: %q", cfg.Dispatch.Queue)
	}
}

func TestWorkerConfig_Sanitize(t *testing.T) {
	cfg := WorkerConfig{
		Concurrency: 0,
		PollTimeout: 10 * time.Millisecond,
		JobTimeout:  time.Second,
		DefaultTopK: 0,
		MaxTopK:     0,
	}

	cfg.Sanitize()

	if cfg.Concurrency != 1 {
		t.Errorf("expected concurrency clamped to 1, got %d", cfg.Concurrency)
	}
	if cfg.PollTimeout != time.Second {
		t.Errorf("expected poll timeout clamped to 1s, got %v", cfg.PollTimeout)
	}
	if cfg.JobTimeout != 10*time.Second {
		t.Errorf("expected job timeout clamped to 10s, got %v", cfg.JobTimeout)
	}
	if cfg.DefaultTopK != 5 {
		t.Errorf("expected default top_k fallback of 5, got %d", cfg.DefaultTopK)
	}
	if cfg.MaxTopK < cfg.DefaultTopK {
		t.Errorf("expected max top_k >= default, got %d", cfg.MaxTopK)
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{
		Interval:        time.Second,
		PendingMaxAge:   time.Minute,
		CompletedMaxAge: time.Minute,
		FailedMaxAge:    time.Minute,
		BatchSize:       100000,
	}

	cfg.Sanitize()

	if cfg.Interval != time.Minute {
		t.Errorf("expected interval clamped to 1m, got %v", cfg.Interval)
	}
	if cfg.PendingMaxAge != 5*time.Minute {
		t.Errorf("expected pending max age clamped to 5m, got %v", cfg.PendingMaxAge)
	}
	if cfg.CompletedMaxAge != time.Hour {
		t.Errorf("expected completed max age clamped to 1h, got %v", cfg.CompletedMaxAge)
	}
	if cfg.BatchSize != 10000 {
		t.Errorf("expected batch size clamped to 10000, got %d", cfg.BatchSize)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}

func TestCompletionWebhookConfig_Sanitize(t *testing.T) {
	cfg := CompletionWebhookConfig{
		Enabled:    true,
		URL:        " ",
		Timeout:    0,
		RetryLimit: -1,
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatal("expected webhook to be disabled without a url")
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("expected timeout to fall back to default, got %v", cfg.Timeout)
	}
	if cfg.RetryLimit != 0 {
		t.Fatalf("expected retry limit to be clamped to >= 0, got %d", cfg.RetryLimit)
	}

	cfg = CompletionWebhookConfig{
		Enabled: true,
		URL:     " https://downstream.example.com/hook ",
		Timeout: time.Second,
	}
	cfg.Sanitize()

	if !cfg.Enabled {
		t.Fatal("expected webhook to remain enabled")
	}
	if cfg.URL != "https://downstream.example.com/hook" {
		t.Fatalf("expected url to be trimmed, got %q", cfg.URL)
	}
}
