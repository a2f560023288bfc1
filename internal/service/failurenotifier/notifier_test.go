package failurenotifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/t3eHawk/rapo/internal/observability/notify"
)

type captureSink struct {
	mu       sync.Mutex
	received []notify.RunFailurePayload
}

func (c *captureSink) SendRunFailure(_ context.Context, payload notify.RunFailurePayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, payload)
	return nil
}

func (c *captureSink) payloads() []notify.RunFailurePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.RunFailurePayload(nil), c.received...)
}

func TestServiceNotifyRunFailure(t *testing.T) {
	ctx := context.Background()

	capture := &captureSink{}
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{Name: "capture", Sink: capture},
		},
	})

	svc.NotifyRunFailure(ctx, notify.RunFailurePayload{
		ProcessID:   123,
		ControlName: "daily_usage_check",
	})

	received := capture.payloads()
	if len(received) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(received))
	}
	if received[0].Severity != notify.SeverityCritical {
		t.Fatalf("expected severity to default to critical, got %s", received[0].Severity)
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(Options{})
	if svc.Enabled() {
		t.Fatal("expected Enabled() to be false when no sinks registered")
	}
}

func TestServiceLogsErrors(t *testing.T) {
	// Ensure we don't panic when sink returns an error.
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "fail",
				Sink: notify.SinkFunc(func(_ context.Context, _ notify.RunFailurePayload) error {
					return errors.New("boom")
				}),
			},
		},
	})

	svc.NotifyRunFailure(context.Background(), notify.RunFailurePayload{ProcessID: 123})
}

func TestServiceFilterSuppressesDelivery(t *testing.T) {
	ctx := context.Background()

	capture := &captureSink{}
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{Name: "anl-only", Sink: capture, Filter: "control_type == 'ANL'"},
		},
	})

	svc.NotifyRunFailure(ctx, notify.RunFailurePayload{
		ProcessID:   1,
		ControlType: "REC",
	})
	svc.NotifyRunFailure(ctx, notify.RunFailurePayload{
		ProcessID:   2,
		ControlType: "ANL",
	})

	received := capture.payloads()
	if len(received) != 1 {
		t.Fatalf("expected 1 delivered payload, got %d", len(received))
	}
	if received[0].ProcessID != 2 {
		t.Fatalf("expected the ANL run to pass the filter, got %d", received[0].ProcessID)
	}
}

func TestServiceDropsInvalidFilter(t *testing.T) {
	capture := &captureSink{}
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{Name: "broken", Sink: capture, Filter: "not a valid ["},
		},
	})

	if svc.Enabled() {
		t.Fatal("sink with invalid filter must be dropped")
	}
}
