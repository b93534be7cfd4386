package port

import (
	"context"

	"github.com/rl1809/library-lending/internal/core/domain"
)

type EventPublisher interface {
	// Publish is called after the originating transaction has committed
	Publish(ctx context.Context, event domain.LendingEvent) error
}
