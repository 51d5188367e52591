package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
)

// EventRepo implements engagement.EventRepository. The table is append-only;
// there is no update or delete path.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed tracking event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, ev *domain.TrackingEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.EventAt.IsZero() {
		ev.EventAt = ev.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tracking_events
			(id, delivery_record_id, campaign_id, event_type, event_at,
			 user_agent, client_ip, link_url, device_type, bot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, ev.ID, ev.DeliveryRecordID, ev.CampaignID, ev.EventType, ev.EventAt,
		ev.UserAgent, ev.ClientIP, ev.LinkURL, ev.DeviceType, ev.Bot, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append tracking event: %w", err)
	}
	return nil
}

func (r *EventRepo) ListByRecord(ctx context.Context, recordID string, limit int) ([]domain.TrackingEvent, error) {
	query := `
		SELECT id, delivery_record_id, campaign_id, event_type, event_at,
		       COALESCE(user_agent,''), COALESCE(client_ip,''), COALESCE(link_url,''),
		       COALESCE(device_type,''), bot, created_at
		FROM tracking_events
		WHERE delivery_record_id = $1
		ORDER BY event_at DESC, created_at DESC`
	args := []interface{}{recordID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracking events: %w", err)
	}
	defer rows.Close()

	var out []domain.TrackingEvent
	for rows.Next() {
		var ev domain.TrackingEvent
		if err := rows.Scan(
			&ev.ID, &ev.DeliveryRecordID, &ev.CampaignID, &ev.EventType, &ev.EventAt,
			&ev.UserAgent, &ev.ClientIP, &ev.LinkURL, &ev.DeviceType, &ev.Bot, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan tracking event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
