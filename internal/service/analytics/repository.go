package analytics

import (
	"context"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
)

// Repository defines the read-only data access contract for analytics.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Aggregate returns the campaign's counter row. Returns
	// ErrCampaignNotFound for an unknown campaign id.
	Aggregate(ctx context.Context, campaignID string) (*domain.CampaignAggregate, error)

	// EngagementCounts counts delivery records by engagement state:
	// opened is |{status ∈ {OPENED, CLICKED}}|, clicked is |{status == CLICKED}|.
	EngagementCounts(ctx context.Context, campaignID string) (opened, clicked int, err error)

	// TopRecords returns the campaign's delivery records ordered by
	// engagement score descending, bounded to limit.
	TopRecords(ctx context.Context, campaignID string, limit int) ([]domain.DeliveryRecord, error)

	// Records returns all delivery records for a campaign.
	Records(ctx context.Context, campaignID string) ([]domain.DeliveryRecord, error)

	// EventsByRecord returns a record's tracking events, newest first.
	// A limit of 0 means no limit. An unknown record yields an empty slice,
	// not an error.
	EventsByRecord(ctx context.Context, recordID string, limit int) ([]domain.TrackingEvent, error)
}
