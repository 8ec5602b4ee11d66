// Package core defines the contracts between the service layer and its
// collaborators (ports in hexagonal architecture). Service implementations
// depend on these interfaces, not concrete implementations.
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nexus-vision/facesearch-go/internal/domain/model"
)

// CreateJobParams groups parameters for JobRepository.Create to keep param count ≤3.
type CreateJobParams struct {
	CorrelationID    string
	SubjectReference string
	Parameters       json.RawMessage
}

// JobRepository defines the interface for search job data operations.
type JobRepository interface {
	// Create inserts a new pending job row.
	Create(ctx context.Context, params CreateJobParams) (*model.SearchJob, error)

	// GetByCorrelationID returns the job, or a not-found error mapped by the data layer.
	GetByCorrelationID(ctx context.Context, correlationID string) (*model.SearchJob, error)

	// Complete transitions a pending job to completed and stores the result
	// payload. Returns false without error when the job was already terminal.
	Complete(ctx context.Context, correlationID string, result json.RawMessage) (bool, error)

	// Fail transitions a pending job to failed with a diagnostic reason.
	// Returns false without error when the job was already terminal.
	Fail(ctx context.Context, correlationID, reason string) (bool, error)

	// Stats returns counts of jobs per status.
	Stats(ctx context.Context) (*model.JobStats, error)
}

// Dispatcher hands a search task off to the asynchronous worker boundary.
// It owns no state; correlation happens entirely through the task payload.
type Dispatcher interface {
	Dispatch(ctx context.Context, task *model.SearchTask) error
}

// TaskSource is the worker-side counterpart of Dispatcher: a blocking pull
// of the next search task from the queue.
type TaskSource interface {
	// Next blocks up to the configured poll timeout. A nil task with a nil
	// error means the timeout elapsed with nothing queued.
	Next(ctx context.Context) (*model.SearchTask, error)
}

// ArtifactResolver fetches a subject artifact (an image) from its opaque
// reference, typically an object-store path.
type ArtifactResolver interface {
	Resolve(ctx context.Context, subjectReference string) ([]byte, error)
}

// Embedder extracts a face embedding vector from raw image bytes.
type Embedder interface {
	Embed(ctx context.Context, image []byte) ([]float64, error)
}

// FaceIndex performs nearest-neighbour lookups against the vector index.
type FaceIndex interface {
	Search(ctx context.Context, embedding []float64, topK int) ([]model.Match, error)
}

// ResultReporter delivers a terminal outcome back to the submission side.
// The production implementation posts to the callback endpoint.
type ResultReporter interface {
	ReportSuccess(ctx context.Context, correlationID string, result *model.SearchResult) error
	ReportFailure(ctx context.Context, correlationID, reason string) error
}

// CompletionNotifier fans a terminal transition out to a downstream
// consumer. Notification failures never affect job state.
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, view model.JobView)
}

// DeleteOldJobsParams groups parameters for DeleteOldJobs to keep param count ≤3.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// FailStalePendingJobs marks pending jobs older than maxAge as failed.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs marked as failed.
	FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs deletes jobs with the given status older than maxAge.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs deleted.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}
