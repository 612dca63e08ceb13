package port

import (
	"context"

	"github.com/lta97/junkpool/internal/core/domain"
)

type EventJournal interface {
	// AppendEvent persists one emitted notification.
	AppendEvent(ctx context.Context, event domain.Event) error

	// RecentEvents returns up to limit notifications, newest first.
	RecentEvents(ctx context.Context, limit int) ([]domain.Event, error)
}

type EventPublisher interface {
	// PublishEvent pushes one notification to external observers.
	PublishEvent(ctx context.Context, event domain.Event) error
}
