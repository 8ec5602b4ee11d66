package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://app.example.com").
	// Used for generating absolute URLs handed to workers for result callbacks.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CallbackToken is the shared secret workers must present in the
	// X-Callback-Token header when posting results to the callback endpoint.
	// Empty disables callback authentication (local dev only).
	CallbackToken string `env:"CALLBACK_TOKEN" envDefault:""`

	// ReadTimeout bounds how long the server waits reading a request.
	ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`

	// WriteTimeout bounds how long the server spends writing a response.
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 15 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 30 * time.Second
	}
}
