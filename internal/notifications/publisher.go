package notifications

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Publisher delivers change events to interested parties
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// MultiPublisher fans an event out to several publishers. Every publisher is attempted;
// failures are logged and joined.
type MultiPublisher struct {
	publishers []Publisher
	logger     *zap.Logger
}

// NewMultiPublisher creates a fan-out publisher; nil entries are skipped
func NewMultiPublisher(logger *zap.Logger, publishers ...Publisher) *MultiPublisher {
	active := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			active = append(active, p)
		}
	}
	return &MultiPublisher{publishers: active, logger: logger}
}

func (m *MultiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			m.logger.Warn("Failed to publish event",
				zap.String("type", event.Type),
				zap.String("subject_id", event.SubjectID),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
