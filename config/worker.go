package config

import "time"

// WorkerConfig contains search worker service configuration.
type WorkerConfig struct {
	// Concurrency is the number of jobs processed simultaneously.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"4"`

	// PollTimeout is the BRPOP block timeout. Shorter values make
	// shutdown more responsive at the cost of more Redis round trips.
	PollTimeout time.Duration `env:"WORKER_POLL_TIMEOUT" envDefault:"5s"`

	// JobTimeout bounds a single search job end to end (artifact fetch,
	// embedding, index query, callback).
	JobTimeout time.Duration `env:"WORKER_JOB_TIMEOUT" envDefault:"2m"`

	// CallbackURL is where completed results are posted. Defaults to the
	// local HTTP server's callback endpoint.
	CallbackURL string `env:"WORKER_CALLBACK_URL" envDefault:"http://localhost:8080/jobs/callback"`

	// EmbedderURL is the base URL of the face embedding service.
	EmbedderURL string `env:"WORKER_EMBEDDER_URL" envDefault:"http://localhost:9090"`

	// IndexURL is the base URL of the vector index service.
	IndexURL string `env:"WORKER_INDEX_URL" envDefault:"http://localhost:9091"`

	// S3Region is the AWS region for subject artifact buckets.
	S3Region string `env:"WORKER_S3_REGION" envDefault:"us-east-1"`

	// S3Endpoint overrides the S3 endpoint (minio in local dev).
	S3Endpoint string `env:"WORKER_S3_ENDPOINT" envDefault:""`

	// DefaultTopK is the number of nearest matches returned when a
	// submission does not specify one.
	DefaultTopK int `env:"WORKER_DEFAULT_TOP_K" envDefault:"5"`

	// MaxTopK caps the per-job match count.
	MaxTopK int `env:"WORKER_MAX_TOP_K" envDefault:"100"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.PollTimeout < time.Second {
		w.PollTimeout = time.Second
	}
	if w.JobTimeout < 10*time.Second {
		w.JobTimeout = 10 * time.Second
	}
	if w.DefaultTopK < 1 {
		w.DefaultTopK = 5
	}
	if w.MaxTopK < w.DefaultTopK {
		w.MaxTopK = w.DefaultTopK
	}
}
