package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// AggregateRepo implements engagement.AggregateRepository. Each increment is
// one atomic upsert, so concurrent first-event deltas from different records
// of the same campaign never lose updates.
type AggregateRepo struct{ db *sql.DB }

// NewAggregateRepo creates a Postgres-backed campaign aggregate repository.
func NewAggregateRepo(db *sql.DB) *AggregateRepo { return &AggregateRepo{db: db} }

func (r *AggregateRepo) IncrementSent(ctx context.Context, campaignID string) error {
	return r.increment(ctx, campaignID, "total_sent")
}

func (r *AggregateRepo) IncrementOpened(ctx context.Context, campaignID string) error {
	return r.increment(ctx, campaignID, "total_opened")
}

func (r *AggregateRepo) IncrementClicked(ctx context.Context, campaignID string) error {
	return r.increment(ctx, campaignID, "total_clicked")
}

func (r *AggregateRepo) IncrementBounced(ctx context.Context, campaignID string) error {
	return r.increment(ctx, campaignID, "total_bounced")
}

// increment bumps one counter column by 1, creating the campaign's row on
// first touch. The column name comes from the fixed set above, never from
// caller input.
func (r *AggregateRepo) increment(ctx context.Context, campaignID, column string) error {
	query := fmt.Sprintf(`
		INSERT INTO campaign_aggregates (campaign_id, %s, created_at, updated_at)
		VALUES ($1, 1, NOW(), NOW())
		ON CONFLICT (campaign_id)
		DO UPDATE SET %s = campaign_aggregates.%s + 1, updated_at = NOW()
	`, column, column, column)
	if _, err := r.db.ExecContext(ctx, query, campaignID); err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}
