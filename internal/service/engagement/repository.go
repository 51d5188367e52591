package engagement

import (
	"context"
	"time"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
)

// DeliveryRepository defines the data access contract for delivery records.
// Implementations must be safe for concurrent use.
type DeliveryRepository interface {
	// Get returns a single delivery record. Returns ErrNotFound if it
	// doesn't exist.
	Get(ctx context.Context, id string) (*domain.DeliveryRecord, error)

	// GetByProviderMessageID resolves the record for an ESP message id.
	// Returns ErrNotFound if no record carries that id.
	GetByProviderMessageID(ctx context.Context, messageID string) (*domain.DeliveryRecord, error)

	// Create inserts a new PENDING record. Used by the queuing component
	// and by tests; the tracking engine itself never creates records.
	Create(ctx context.Context, r *domain.DeliveryRecord) error

	// ApplyEvent applies one open/click occurrence to the record as an
	// atomic unit: the first-event decision must be a conditional update
	// ("set first-open timestamp only if currently unset") so that exactly
	// one concurrent caller observes FirstOpen/FirstClick true. Counter
	// bumps are atomic increments, never read-modify-write.
	// Returns ErrNotFound if the record doesn't exist.
	ApplyEvent(ctx context.Context, id string, eventType domain.EventType, observedAt time.Time, clientIP string) (domain.EventOutcome, error)

	// MarkSent transitions PENDING→SENT and stamps send metadata. The
	// returned bool reports whether this call performed the transition.
	MarkSent(ctx context.Context, id string, sentAt time.Time, fromEmail, deliveryServer, providerMessageID string) (bool, error)

	// MarkBounced and MarkFailed set the terminal statuses supplied by the
	// external delivery component. Each reports whether this call won the
	// transition, so the bounce aggregate increments exactly once.
	MarkBounced(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
}

// AggregateRepository maintains campaign-level counters. Every method is a
// single atomic increment issued to the store; implementations must never
// read the counter into memory and write it back.
type AggregateRepository interface {
	IncrementSent(ctx context.Context, campaignID string) error
	IncrementOpened(ctx context.Context, campaignID string) error
	IncrementClicked(ctx context.Context, campaignID string) error
	IncrementBounced(ctx context.Context, campaignID string) error
}

// EventRepository is the append-only tracking event log.
type EventRepository interface {
	// Append stores one event. Events are never updated or deleted.
	Append(ctx context.Context, ev *domain.TrackingEvent) error

	// ListByRecord returns events for a record, newest first. A limit of 0
	// means no limit.
	ListByRecord(ctx context.Context, recordID string, limit int) ([]domain.TrackingEvent, error)
}
