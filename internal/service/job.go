package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nexus-vision/facesearch-go/config"
	"github.com/nexus-vision/facesearch-go/internal/core"
	"github.com/nexus-vision/facesearch-go/internal/data"
	"github.com/nexus-vision/facesearch-go/internal/domain/correlation"
	"github.com/nexus-vision/facesearch-go/internal/domain/model"
	apperrors "github.com/nexus-vision/facesearch-go/internal/errors"
	"github.com/nexus-vision/facesearch-go/internal/observability/metrics"
	"github.com/nexus-vision/facesearch-go/internal/observability/statsd"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo       core.JobRepository      // Required: job repository
	Dispatcher core.Dispatcher         // Required: task queue producer
	IDs        correlation.Generator   // Required: correlation id generator
	Worker     config.WorkerConfig     // Required: top_k defaults and limits
	Logger     *slog.Logger            // Optional: structured logger
	Notifier   core.CompletionNotifier // Optional: completion fan-out
	Metrics    statsd.Sink             // Optional: metrics sink (StatsD-compatible)
}

// JobService provides business logic for search job operations.
//
// This service manages:
// - Job submission: correlation id minting, durable pending row, dispatch.
// - Callback completion: first-writer-wins terminal transitions.
// - Poll reads and aggregate stats.
type JobService struct {
	repo       core.JobRepository
	dispatcher core.Dispatcher
	ids        correlation.Generator
	worker     config.WorkerConfig
	logger     *slog.Logger
	notifier   core.CompletionNotifier
	metrics    statsd.Sink
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("Dispatcher is required")
	}
	if opts.IDs == nil {
		return nil, errors.New("correlation id generator is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		repo:       opts.Repo,
		dispatcher: opts.Dispatcher,
		ids:        opts.IDs,
		worker:     opts.Worker,
		logger:     logger,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
	}, nil
}

// SubmitResult is the submission-side acknowledgement returned to callers.
type SubmitResult struct {
	CorrelationID string          `json:"correlation_id"`
	Status        model.JobStatus `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Submit accepts a search request: it mints a correlation id, persists the
// pending job, and dispatches the task to the worker queue. The pending row
// is durable before dispatch so a queue outage never loses the correlation.
func (s *JobService) Submit(ctx context.Context, req *model.SubmitJobRequest) (*SubmitResult, error) {
	if req == nil {
		return nil, apperrors.Validation("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	params, err := s.normalizeParameters(req.Parameters)
	if err != nil {
		return nil, err
	}

	correlationID, err := s.ids.NewID()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "generate correlation id")
	}

	start := time.Now()
	job, err := s.repo.Create(ctx, core.CreateJobParams{
		CorrelationID:    correlationID,
		SubjectReference: req.SubjectReference,
		Parameters:       params,
	})
	if err != nil {
		s.emitLifecycle(metrics.TransitionSubmitted, metrics.ResultError, 0, err)
		return nil, fmt.Errorf("create job: %w", err)
	}

	task := &model.SearchTask{
		CorrelationID:    job.CorrelationID,
		SubjectReference: job.SubjectReference,
		Parameters:       job.Parameters,
	}
	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		// The row already exists; fail it so the submitter observes a
		// terminal outcome instead of a job stuck pending forever.
		reason := "failed to dispatch search task"
		if _, failErr := s.repo.Fail(ctx, job.CorrelationID, reason); failErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "mark undispatched job failed",
				"correlation_id", job.CorrelationID,
				"error", failErr,
			)
		}
		s.emitLifecycle(metrics.TransitionSubmitted, metrics.ResultError, time.Since(start), err)
		return nil, fmt.Errorf("dispatch search task: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "search job submitted",
			"correlation_id", job.CorrelationID,
			"subject_reference", job.SubjectReference,
		)
	}
	s.emitLifecycle(metrics.TransitionSubmitted, metrics.ResultSuccess, time.Since(start), nil)

	return &SubmitResult{
		CorrelationID: job.CorrelationID,
		Status:        job.Status,
		CreatedAt:     job.CreatedAt,
	}, nil
}

// normalizeParameters applies top_k defaulting and clamping. The stored
// parameters always carry an explicit top_k so the worker never guesses.
func (s *JobService) normalizeParameters(raw json.RawMessage) (json.RawMessage, error) {
	var params model.SearchParameters
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, apperrors.ValidationField("parameters", "parameters must be a JSON object")
		}
	}

	if params.TopK <= 0 {
		params.TopK = s.worker.DefaultTopK
	}
	if s.worker.MaxTopK > 0 && params.TopK > s.worker.MaxTopK {
		params.TopK = s.worker.MaxTopK
	}

	normalized, err := json.Marshal(params)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode search parameters")
	}
	return normalized, nil
}

// Complete applies a worker callback outcome. The first valid callback wins;
// a repeat callback for a terminal job is acknowledged as a no-op. Unknown
// correlation ids surface as not-found.
func (s *JobService) Complete(ctx context.Context, req *model.CompleteJobRequest) (bool, error) {
	if req == nil {
		return false, apperrors.Validation("request is required")
	}
	if err := req.Validate(); err != nil {
		return false, apperrors.Validation(err.Error())
	}

	start := time.Now()
	var (
		won        bool
		err        error
		transition string
	)
	if req.Succeeded() {
		transition = metrics.TransitionCompleted
		won, err = s.repo.Complete(ctx, req.CorrelationID, req.Result)
	} else {
		transition = metrics.TransitionFailed
		won, err = s.repo.Fail(ctx, req.CorrelationID, *req.FailureReason)
	}
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			return false, apperrors.NotFound("job")
		}
		s.emitLifecycle(transition, metrics.ResultError, time.Since(start), err)
		return false, fmt.Errorf("apply callback outcome: %w", err)
	}

	if !won {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "callback ignored, job already terminal",
				"correlation_id", req.CorrelationID,
			)
		}
		s.emitLifecycle(transition, metrics.ResultNoop, time.Since(start), nil)
		return false, nil
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "search job finished",
			"correlation_id", req.CorrelationID,
			"succeeded", req.Succeeded(),
		)
	}
	s.emitLifecycle(transition, metrics.ResultSuccess, time.Since(start), nil)

	// Fan out off the request path so webhook retries never delay the
	// worker's callback ack. The outcome is already durable.
	go s.notifyCompletion(context.WithoutCancel(ctx), req.CorrelationID)

	return true, nil
}

// notifyCompletion re-reads the terminal row and fans it out. Failures are
// logged only.
func (s *JobService) notifyCompletion(ctx context.Context, correlationID string) {
	if s.notifier == nil {
		return
	}

	job, err := s.repo.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "load job for completion notification",
				"correlation_id", correlationID,
				"error", err,
			)
		}
		return
	}

	s.notifier.NotifyCompletion(ctx, model.ViewOf(job))
}

// GetView returns the poll representation of a job. Correlation ids are
// opaque to callers, so a malformed id is indistinguishable from an unknown
// one and both surface as not-found.
func (s *JobService) GetView(ctx context.Context, correlationID string) (*model.JobView, error) {
	if !correlation.Validate(correlationID) {
		return nil, apperrors.NotFound("job")
	}

	job, err := s.repo.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			return nil, apperrors.NotFound("job")
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	view := model.ViewOf(job)
	return &view, nil
}

// Stats returns aggregate counts per job status.
func (s *JobService) Stats(ctx context.Context) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	metrics.EmitQueueDepth(s.metrics, int64(stats.Pending))
	return stats, nil
}

func (s *JobService) emitLifecycle(transition, result string, elapsed time.Duration, err error) {
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Transition: transition,
		Result:     result,
		Duration:   elapsed,
		Err:        err,
	})
}
