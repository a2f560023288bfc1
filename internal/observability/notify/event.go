package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// RunFailurePayload captures the canonical data we emit for control run
// failure notifications.
type RunFailurePayload struct {
	ProcessID   int64
	ControlID   int64
	ControlName string
	ControlType string
	Status      string
	Error       string
	ErrorClass  string
	Severity    string
	ErrorLevel  *float64
	OccurredAt  time.Time
	Metadata    map[string]string
}

// Map renders the payload as a generic document for filter expressions.
func (p RunFailurePayload) Map() map[string]any {
	doc := map[string]any{
		"process_id":   p.ProcessID,
		"control_id":   p.ControlID,
		"control_name": p.ControlName,
		"control_type": p.ControlType,
		"status":       p.Status,
		"error":        p.Error,
		"error_class":  p.ErrorClass,
		"severity":     p.Severity,
	}
	if p.ErrorLevel != nil {
		doc["error_level"] = *p.ErrorLevel
	}
	if len(p.Metadata) > 0 {
		meta := make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			meta[k] = v
		}
		doc["metadata"] = meta
	}
	return doc
}

// Sink describes a destination capable of consuming run failure notifications.
type Sink interface {
	SendRunFailure(ctx context.Context, payload RunFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload RunFailurePayload) error

// SendRunFailure implements the Sink interface.
func (f SinkFunc) SendRunFailure(ctx context.Context, payload RunFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
