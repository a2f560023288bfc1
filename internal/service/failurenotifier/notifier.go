// Package failurenotifier fans control run failures out to the
// configured notification sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/sony/gobreaker"

	"github.com/t3eHawk/rapo/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable
// name for logging and an optional JMESPath filter expression. A filter
// that evaluates falsy against the payload suppresses delivery to that
// sink only.
type SinkRegistration struct {
	Name   string
	Sink   notify.Sink
	Filter string
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

type registeredSink struct {
	name    string
	sink    notify.Sink
	filter  string
	breaker *gobreaker.CircuitBreaker
}

// Service dispatches run failure events to all registered sinks. Each
// sink sits behind its own circuit breaker so a dead webhook cannot
// stall every run completion.
type Service struct {
	logger *slog.Logger
	sinks  []registeredSink
}

// NewService constructs a failure notifier. Sinks with invalid filter
// expressions are dropped with a warning rather than failing startup.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "failure_notifier")
	}

	var sinks []registeredSink
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		filter := entry.Filter
		if filter != "" {
			if _, err := jmespath.Compile(filter); err != nil {
				logger.Warn("dropping notification sink with invalid filter",
					"sink", name,
					"filter", filter,
					"error", err,
				)
				continue
			}
		}
		sinks = append(sinks, registeredSink{
			name:   name,
			sink:   entry.Sink,
			filter: filter,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name: name,
			}),
		})
	}

	return &Service{
		logger: logger,
		sinks:  sinks,
	}
}

// NotifyRunFailure fan-outs the run failure payload to all sinks.
func (s *Service) NotifyRunFailure(ctx context.Context, payload notify.RunFailurePayload) {
	if len(s.sinks) == 0 {
		return
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	doc := payload.Map()

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		if !entry.matches(doc) {
			s.logger.DebugContext(ctx, "notification filtered out",
				"sink", entry.name,
				"process_id", payload.ProcessID,
				"control_name", payload.ControlName,
			)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := entry.breaker.Execute(func() (any, error) {
				return nil, entry.sink.SendRunFailure(ctx, payload)
			})
			if err != nil {
				s.logger.Error("failure notifier delivery error",
					"sink", entry.name,
					"process_id", payload.ProcessID,
					"control_name", payload.ControlName,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

func (r registeredSink) matches(doc map[string]any) bool {
	if r.filter == "" {
		return true
	}
	result, err := jmespath.Search(r.filter, doc)
	if err != nil {
		return false
	}
	switch v := result.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	default:
		return true
	}
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}
