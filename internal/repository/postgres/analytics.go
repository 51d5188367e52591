package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
	"github.com/brandmonkz/engagement-tracker/internal/service/analytics"
)

// AnalyticsRepo implements analytics.Repository. Read-only: rates are
// derived from delivery records at query time, independent of the aggregate
// counters, so the two remain cross-checkable.
type AnalyticsRepo struct {
	db     *sql.DB
	events *EventRepo
}

// NewAnalyticsRepo creates a Postgres-backed analytics repository.
func NewAnalyticsRepo(db *sql.DB) *AnalyticsRepo {
	return &AnalyticsRepo{db: db, events: NewEventRepo(db)}
}

func (r *AnalyticsRepo) Aggregate(ctx context.Context, campaignID string) (*domain.CampaignAggregate, error) {
	agg := &domain.CampaignAggregate{}
	err := r.db.QueryRowContext(ctx, `
		SELECT campaign_id, total_sent, total_opened, total_clicked, total_bounced,
		       created_at, updated_at
		FROM campaign_aggregates
		WHERE campaign_id = $1
	`, campaignID).Scan(
		&agg.CampaignID, &agg.TotalSent, &agg.TotalOpened, &agg.TotalClicked,
		&agg.TotalBounced, &agg.CreatedAt, &agg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, analytics.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign aggregate: %w", err)
	}
	return agg, nil
}

func (r *AnalyticsRepo) EngagementCounts(ctx context.Context, campaignID string) (int, int, error) {
	var opened, clicked int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE status IN ('OPENED', 'CLICKED')),
		       COUNT(*) FILTER (WHERE status = 'CLICKED')
		FROM delivery_records
		WHERE campaign_id = $1
	`, campaignID).Scan(&opened, &clicked)
	if err != nil {
		return 0, 0, fmt.Errorf("count engagement: %w", err)
	}
	return opened, clicked, nil
}

func (r *AnalyticsRepo) TopRecords(ctx context.Context, campaignID string, limit int) ([]domain.DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM delivery_records
		WHERE campaign_id = $1
		ORDER BY engagement_score DESC, id
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("top records: %w", err)
	}
	return collectRecords(rows)
}

func (r *AnalyticsRepo) Records(ctx context.Context, campaignID string) ([]domain.DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM delivery_records
		WHERE campaign_id = $1
		ORDER BY created_at, id
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return collectRecords(rows)
}

func (r *AnalyticsRepo) EventsByRecord(ctx context.Context, recordID string, limit int) ([]domain.TrackingEvent, error) {
	return r.events.ListByRecord(ctx, recordID, limit)
}

func collectRecords(rows *sql.Rows) ([]domain.DeliveryRecord, error) {
	defer rows.Close()
	var out []domain.DeliveryRecord
	for rows.Next() {
		rec, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
