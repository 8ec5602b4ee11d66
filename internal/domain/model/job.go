// Package model defines the core data types and structures used throughout the facesearch job system.
package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// JobStatus represents the current status of a search job.
type JobStatus string

const (
	// JobStatusPending indicates a job is waiting for its worker callback.
	JobStatusPending JobStatus = "pending"
	// JobStatusCompleted indicates a job has finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job has failed to complete.
	JobStatusFailed JobStatus = "failed"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusCompleted || s == JobStatusFailed
}

// Terminal returns true once the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// SearchJob represents a facial-similarity search job. The correlation id is
// assigned at submission, never reused, and is the only key clients hold.
type SearchJob struct {
	CorrelationID    string          `json:"correlation_id"           db:"correlation_id"`
	Status           JobStatus       `json:"status"                   db:"status"`
	SubjectReference string          `json:"subject_reference"        db:"subject_reference"`
	Parameters       json.RawMessage `json:"parameters,omitempty"     db:"parameters"`
	ResultPayload    json.RawMessage `json:"result_payload,omitempty" db:"result_payload"`
	FailureReason    *string         `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt        time.Time       `json:"created_at"               db:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"   db:"completed_at"`
}

// SearchParameters are the optional knobs accepted at submission. They travel
// opaquely through the store and the queue; only the worker interprets them.
type SearchParameters struct {
	// TopK is the number of nearest matches to return. Zero means the
	// worker default applies.
	TopK int `json:"top_k,omitempty"`
}

// SubmitJobRequest represents a request to submit a new search job.
type SubmitJobRequest struct {
	SubjectReference string          `json:"subject_reference"`
	Parameters       json.RawMessage `json:"parameters,omitempty"`
}

// Validate validates the SubmitJobRequest fields.
func (r *SubmitJobRequest) Validate() error {
	if strings.TrimSpace(r.SubjectReference) == "" {
		return errors.New("subject reference is required")
	}
	if len(r.Parameters) > 0 {
		var params SearchParameters
		if err := json.Unmarshal(r.Parameters, &params); err != nil {
			return errors.New("parameters must be a valid JSON object")
		}
		if params.TopK < 0 {
			return errors.New("top_k must be >= 0")
		}
	}
	return nil
}

// CompleteJobRequest is the payload the worker posts back when a job reaches
// a terminal state. Exactly one of Result or FailureReason must be set.
type CompleteJobRequest struct {
	CorrelationID string          `json:"correlation_id"`
	Result        json.RawMessage `json:"result,omitempty"`
	FailureReason *string         `json:"failure_reason,omitempty"`
}

// Validate validates the CompleteJobRequest fields.
func (r *CompleteJobRequest) Validate() error {
	if strings.TrimSpace(r.CorrelationID) == "" {
		return errors.New("correlation id is required")
	}
	hasResult := len(r.Result) > 0
	hasFailure := r.FailureReason != nil && strings.TrimSpace(*r.FailureReason) != ""
	if hasResult == hasFailure {
		return errors.New("exactly one of result or failure_reason is required")
	}
	return nil
}

// Succeeded returns true when the callback reports a successful outcome.
func (r *CompleteJobRequest) Succeeded() bool {
	return len(r.Result) > 0
}

// JobView is the client-facing projection returned by the polling endpoint.
type JobView struct {
	CorrelationID string          `json:"correlation_id"`
	Status        JobStatus       `json:"status"`
	Result        json.RawMessage `json:"result,omitempty"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// ViewOf projects a stored job into its client-facing shape.
func ViewOf(job *SearchJob) JobView {
	return JobView{
		CorrelationID: job.CorrelationID,
		Status:        job.Status,
		Result:        job.ResultPayload,
		FailureReason: job.FailureReason,
		CompletedAt:   job.CompletedAt,
	}
}

// JobStats represents statistics about jobs in different states.
type JobStats struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// SearchTask is the queue payload handed to the worker at dispatch time.
type SearchTask struct {
	CorrelationID    string          `json:"correlation_id"`
	SubjectReference string          `json:"subject_reference"`
	Parameters       json.RawMessage `json:"parameters,omitempty"`
}

// Match is a single nearest-neighbour hit returned by the vector index.
type Match struct {
	FaceID    string  `json:"face_id"`
	SuspectID string  `json:"suspect_id"`
	Distance  float64 `json:"distance"`
	S3Path    string  `json:"s3_path,omitempty"`
}

// SearchResult is the success payload a worker produces for a job.
type SearchResult struct {
	Matches []Match `json:"matches"`
}
