package messaging

import (
	"context"

	"github.com/arc-market/arc-indexer/internal/domain"
)

// Publisher defines the interface for publishing projected events to the
// message broker so downstream consumers (storefront cache invalidation,
// notifications) see cache changes as they land
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEvent publishes a normalized marketplace event
	PublishEvent(ctx context.Context, event domain.Event) error
	// Close closes the connection
	Close()
}
