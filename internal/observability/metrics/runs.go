package metrics

import (
	"time"

	obserrors "github.com/t3eHawk/rapo/internal/observability/errors"
	"github.com/t3eHawk/rapo/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// RunMetric captures details about a control run lifecycle event for
// metric emission.
type RunMetric struct {
	ControlType string
	Transition  string
	Result      string
	Duration    time.Duration
	Err         error
}

// EmitRunLifecycle emits standardised control run lifecycle metrics.
func EmitRunLifecycle(sink statsd.Sink, in RunMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"control_type": in.ControlType,
		"transition":   in.Transition,
		"result":       in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("run.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("run.duration", in.Duration, CloneTags(tags))
	}
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
