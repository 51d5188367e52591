// Package postgres implements the repository interfaces against PostgreSQL.
//
// Counter mutations are single atomic UPDATE statements and first-event
// decisions are conditional updates guarded by "... IS NULL", with
// RowsAffected as the race verdict. Nothing in this package reads a counter
// into memory and writes it back.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
	"github.com/brandmonkz/engagement-tracker/internal/service/engagement"
)

// DeliveryRepo implements engagement.DeliveryRepository.
type DeliveryRepo struct{ db *sql.DB }

// NewDeliveryRepo creates a Postgres-backed delivery record repository.
func NewDeliveryRepo(db *sql.DB) *DeliveryRepo { return &DeliveryRepo{db: db} }

const deliveryColumns = `
	id, campaign_id, recipient_id, status,
	sent_at, COALESCE(from_email,''), COALESCE(delivery_server,''), COALESCE(provider_message_id,''),
	total_opens, first_opened_at, last_opened_at, seconds_to_open,
	total_clicks, first_clicked_at, last_clicked_at, seconds_to_click,
	engagement_score, COALESCE(client_ip,''), created_at, updated_at`

func (r *DeliveryRepo) Get(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_records WHERE id = $1`, id)
	rec, err := scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, engagement.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery record: %w", err)
	}
	return rec, nil
}

func (r *DeliveryRepo) GetByProviderMessageID(ctx context.Context, messageID string) (*domain.DeliveryRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_records WHERE provider_message_id = $1`, messageID)
	rec, err := scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, engagement.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery record by message id: %w", err)
	}
	return rec, nil
}

func (r *DeliveryRepo) Create(ctx context.Context, rec *domain.DeliveryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = domain.DeliveryPending
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_records
			(id, campaign_id, recipient_id, status, sent_at, from_email,
			 delivery_server, provider_message_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, rec.ID, rec.CampaignID, rec.RecipientID, rec.Status, rec.SentAt,
		rec.FromEmail, rec.DeliveryServer, rec.ProviderMessageID)
	if err != nil {
		return fmt.Errorf("create delivery record: %w", err)
	}
	return nil
}

// ApplyEvent applies one open/click occurrence. The first-open and
// first-click claims are conditional updates that only fire while the
// corresponding timestamp is NULL, so exactly one concurrent caller wins
// each flag; the counter bumps are plain atomic increments.
func (r *DeliveryRepo) ApplyEvent(ctx context.Context, id string, eventType domain.EventType, observedAt time.Time, clientIP string) (domain.EventOutcome, error) {
	var out domain.EventOutcome

	switch eventType {
	case domain.EventOpen:
		won, err := r.claimFirstOpen(ctx, id, observedAt)
		if err != nil {
			return out, err
		}
		out.FirstOpen = won
		if err := r.bumpOpen(ctx, id, observedAt, clientIP); err != nil {
			return out, err
		}

	case domain.EventClick:
		// A click with no recorded open synthesizes the open first,
		// with the same timestamp.
		wonOpen, err := r.claimFirstOpen(ctx, id, observedAt)
		if err != nil {
			return out, err
		}
		out.FirstOpen = wonOpen
		if wonOpen {
			if err := r.bumpOpen(ctx, id, observedAt, clientIP); err != nil {
				return out, err
			}
		}

		wonClick, err := r.claimFirstClick(ctx, id, observedAt)
		if err != nil {
			return out, err
		}
		out.FirstClick = wonClick
		if err := r.bumpClick(ctx, id, observedAt); err != nil {
			return out, err
		}

	default:
		return out, fmt.Errorf("unknown event type %q", eventType)
	}

	return out, nil
}

func (r *DeliveryRepo) claimFirstOpen(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.claim(ctx, `
		UPDATE delivery_records SET
			first_opened_at = $2,
			seconds_to_open = CASE WHEN sent_at IS NOT NULL
				THEN GREATEST(FLOOR(EXTRACT(EPOCH FROM ($2::timestamptz - sent_at)))::int, 0) END,
			engagement_score = GREATEST(engagement_score, $3),
			status = CASE WHEN status <> 'CLICKED' THEN 'OPENED' ELSE status END,
			updated_at = NOW()
		WHERE id = $1 AND first_opened_at IS NULL
	`, id, at, domain.OpenScore)
}

func (r *DeliveryRepo) claimFirstClick(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.claim(ctx, `
		UPDATE delivery_records SET
			first_clicked_at = $2,
			seconds_to_click = CASE WHEN sent_at IS NOT NULL
				THEN GREATEST(FLOOR(EXTRACT(EPOCH FROM ($2::timestamptz - sent_at)))::int, 0) END,
			engagement_score = engagement_score + $3,
			status = 'CLICKED',
			updated_at = NOW()
		WHERE id = $1 AND first_clicked_at IS NULL
	`, id, at, domain.ClickScore)
}

// claim executes a conditional first-event update and reports whether this
// call won it. A transient failure is retried once; races resolve on retry
// because the guard column is filled by whoever won.
func (r *DeliveryRepo) claim(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		res, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return false, fmt.Errorf("first-event claim: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *DeliveryRepo) bumpOpen(ctx context.Context, id string, at time.Time, clientIP string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE delivery_records SET
			total_opens = total_opens + 1,
			last_opened_at = $2,
			client_ip = COALESCE(NULLIF($3, ''), client_ip),
			updated_at = NOW()
		WHERE id = $1
	`, id, at, clientIP)
	if err != nil {
		return fmt.Errorf("bump opens: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return engagement.ErrNotFound
	}
	return nil
}

func (r *DeliveryRepo) bumpClick(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE delivery_records SET
			total_clicks = total_clicks + 1,
			last_clicked_at = $2,
			updated_at = NOW()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("bump clicks: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return engagement.ErrNotFound
	}
	return nil
}

func (r *DeliveryRepo) MarkSent(ctx context.Context, id string, sentAt time.Time, fromEmail, deliveryServer, providerMessageID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE delivery_records SET
			status = 'SENT', sent_at = $2, from_email = $3,
			delivery_server = $4, provider_message_id = $5, updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`, id, sentAt, fromEmail, deliveryServer, providerMessageID)
	if err != nil {
		return false, fmt.Errorf("mark sent: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *DeliveryRepo) MarkBounced(ctx context.Context, id string) (bool, error) {
	return r.markTerminal(ctx, id, domain.DeliveryBounced)
}

func (r *DeliveryRepo) MarkFailed(ctx context.Context, id string) (bool, error) {
	return r.markTerminal(ctx, id, domain.DeliveryFailed)
}

func (r *DeliveryRepo) markTerminal(ctx context.Context, id string, status domain.DeliveryStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE delivery_records SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> $2
	`, id, status)
	if err != nil {
		return false, fmt.Errorf("mark %s: %w", status, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDelivery(row rowScanner) (*domain.DeliveryRecord, error) {
	rec := &domain.DeliveryRecord{}
	err := row.Scan(
		&rec.ID, &rec.CampaignID, &rec.RecipientID, &rec.Status,
		&rec.SentAt, &rec.FromEmail, &rec.DeliveryServer, &rec.ProviderMessageID,
		&rec.TotalOpens, &rec.FirstOpenedAt, &rec.LastOpenedAt, &rec.SecondsToOpen,
		&rec.TotalClicks, &rec.FirstClickedAt, &rec.LastClickedAt, &rec.SecondsToClick,
		&rec.EngagementScore, &rec.ClientIP, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
