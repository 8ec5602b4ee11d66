package metrics

import (
	"time"

	obserrors "github.com/nexus-vision/facesearch-go/internal/observability/errors"
	"github.com/nexus-vision/facesearch-go/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Transition constants cover the search job lifecycle.
const (
	TransitionSubmitted = "submitted"
	TransitionCompleted = "completed"
	TransitionFailed    = "failed"
	TransitionReaped    = "reaped"
	TransitionPurged    = "purged"
)

// JobMetric captures details about a search job lifecycle event for metric emission.
type JobMetric struct {
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits standardised job lifecycle metrics.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// EmitQueueDepth records the pending backlog as a gauge.
func EmitQueueDepth(sink statsd.Sink, pending int64) {
	if sink == nil {
		return
	}
	sink.Gauge("job.pending_depth", float64(pending), nil)
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
