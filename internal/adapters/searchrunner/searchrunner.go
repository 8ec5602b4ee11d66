// Package searchrunner provides the worker adapter that consumes queued
// search tasks and runs the resolve, embed, search pipeline.
package searchrunner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nexus-vision/facesearch-go/config"
	"github.com/nexus-vision/facesearch-go/internal/core"
	"github.com/nexus-vision/facesearch-go/internal/domain/model"
	obserrors "github.com/nexus-vision/facesearch-go/internal/observability/errors"
	"github.com/nexus-vision/facesearch-go/internal/observability/metrics"
	"github.com/nexus-vision/facesearch-go/internal/observability/statsd"
)

// RunnerOptions configures the search task runner adapter.
type RunnerOptions struct {
	Source   core.TaskSource       // Required: queue consumer
	Resolver core.ArtifactResolver // Required: subject image fetcher
	Embedder core.Embedder         // Required: embedding service client
	Index    core.FaceIndex        // Required: vector index client
	Reporter core.ResultReporter   // Required: callback delivery
	Config   config.WorkerConfig
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// Runner processes search tasks from the queue until its context is cancelled.
type Runner struct {
	source   core.TaskSource
	resolver core.ArtifactResolver
	embedder core.Embedder
	index    core.FaceIndex
	reporter core.ResultReporter
	config   config.WorkerConfig
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewRunner creates a new search task runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Source == nil {
		return nil, errors.New("task source is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("artifact resolver is required")
	}
	if opts.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if opts.Index == nil {
		return nil, errors.New("face index is required")
	}
	if opts.Reporter == nil {
		return nil, errors.New("result reporter is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		source:   opts.Source,
		resolver: opts.Resolver,
		embedder: opts.Embedder,
		index:    opts.Index,
		reporter: opts.Reporter,
		config:   opts.Config,
		logger:   logger.With("component", "search_runner"),
		metrics:  opts.Metrics,
	}, nil
}

// Run starts the worker loops and blocks until the context is cancelled.
// Returns nil on graceful shutdown.
func (r *Runner) Run(ctx context.Context) error {
	workers := r.config.Concurrency
	if workers < 1 {
		workers = 1
	}
	r.logger.InfoContext(ctx, "starting search runner", "workers", workers)

	group, gctx := errgroup.WithContext(ctx)
	for range workers {
		group.Go(func() error { return r.runWorkerLoop(gctx) })
	}

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runWorkerLoop pulls tasks until the context is cancelled. Queue errors are
// logged and retried with a short pause rather than tearing down the worker.
func (r *Runner) runWorkerLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		task, err := r.source.Next(ctx)
		switch {
		case err == nil && task == nil:
			// Poll timeout, loop around.
		case err == nil:
			r.processTask(ctx, task)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return ctx.Err()
		default:
			r.logger.ErrorContext(ctx, "failed to fetch next search task", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
	return ctx.Err()
}

// processTask runs the pipeline for one task and always delivers an outcome.
func (r *Runner) processTask(ctx context.Context, task *model.SearchTask) {
	r.logger.InfoContext(ctx, "processing search task",
		"correlation_id", task.CorrelationID,
		"subject_reference", task.SubjectReference,
	)

	taskCtx := ctx
	if r.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, r.config.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := r.runPipeline(taskCtx, task)
	if err != nil {
		r.logger.ErrorContext(ctx, "search pipeline failed",
			"correlation_id", task.CorrelationID,
			"error", err,
		)
		r.emitTaskMetric(metrics.ResultError, time.Since(start), err)
		if rerr := r.reporter.ReportFailure(taskCtx, task.CorrelationID, err.Error()); rerr != nil {
			r.logger.ErrorContext(ctx, "failed to deliver failure outcome",
				"correlation_id", task.CorrelationID,
				"error", rerr,
			)
		}
		return
	}

	r.emitTaskMetric(metrics.ResultSuccess, time.Since(start), nil)
	if rerr := r.reporter.ReportSuccess(taskCtx, task.CorrelationID, result); rerr != nil {
		r.logger.ErrorContext(ctx, "failed to deliver success outcome",
			"correlation_id", task.CorrelationID,
			"error", rerr,
		)
	}
}

// runPipeline resolves the subject image, embeds it, and searches the index.
func (r *Runner) runPipeline(ctx context.Context, task *model.SearchTask) (*model.SearchResult, error) {
	topK := r.resolveTopK(task.Parameters)

	image, err := r.resolver.Resolve(ctx, task.SubjectReference)
	if err != nil {
		return nil, fmt.Errorf("resolve subject image: %w", err)
	}

	embedding, err := r.embedder.Embed(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("compute face embedding: %w", err)
	}

	matches, err := r.index.Search(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("search face index: %w", err)
	}
	if matches == nil {
		matches = []model.Match{}
	}

	return &model.SearchResult{Matches: matches}, nil
}

// resolveTopK reads top_k from the task parameters, applying the configured
// default and upper bound.
func (r *Runner) resolveTopK(raw json.RawMessage) int {
	topK := r.config.DefaultTopK
	if len(raw) > 0 {
		var params model.SearchParameters
		if err := json.Unmarshal(raw, &params); err == nil && params.TopK > 0 {
			topK = params.TopK
		}
	}
	if topK <= 0 {
		topK = 1
	}
	if r.config.MaxTopK > 0 && topK > r.config.MaxTopK {
		topK = r.config.MaxTopK
	}
	return topK
}

func (r *Runner) emitTaskMetric(result string, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}

	tags := map[string]string{
		"result": result,
	}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	r.metrics.Count("worker.task", 1, tags)
	if elapsed > 0 {
		r.metrics.Timing("worker.task_duration", elapsed, metrics.CloneTags(tags))
	}
}
