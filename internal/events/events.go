package events

import (
	"context"
	"errors"
	"time"
)

// IngestionEvent is emitted once per ingestion request that did something.
type IngestionEvent struct {
	RunID        string    `json:"run_id"`
	Home         string    `json:"home"`
	Success      bool      `json:"success"`
	MetricsSaved bool      `json:"metrics_saved"`
	PDFs         int       `json:"pdfs"`
	Excels       int       `json:"excels"`
	FailedStep   string    `json:"failed_step,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher delivers ingestion events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev IngestionEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, IngestionEvent) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev IngestionEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
