package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
)

const (
	// TopPerformerPageSize bounds the top-engaged list.
	TopPerformerPageSize = 10
	// RecentEventLimit bounds the per-record activity annotation.
	RecentEventLimit = 5
)

// Stats holds campaign-level totals and rates. OpenRate and ClickRate are
// percentages over TotalSent, computed from delivery records at read time.
type Stats struct {
	TotalSent    int     `json:"total_sent"`
	TotalOpened  int     `json:"total_opened"`
	TotalClicked int     `json:"total_clicked"`
	TotalBounced int     `json:"total_bounced"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
}

// Performer is one entry of the top-engaged list, annotated with its most
// recent tracking events for audit display.
type Performer struct {
	RecordID        string                 `json:"record_id"`
	RecipientID     string                 `json:"recipient_id"`
	EngagementScore int                    `json:"engagement_score"`
	Opens           int                    `json:"opens"`
	Clicks          int                    `json:"clicks"`
	FirstOpenedAt   *time.Time             `json:"first_opened_at"`
	FirstClickedAt  *time.Time             `json:"first_clicked_at"`
	RecentEvents    []domain.TrackingEvent `json:"recent_events"`
}

// RecordSummary is the per-record view returned with campaign analytics.
type RecordSummary struct {
	ID              string                `json:"id"`
	RecipientID     string                `json:"recipient_id"`
	Status          domain.DeliveryStatus `json:"status"`
	SentAt          *time.Time            `json:"sent_at"`
	TotalOpens      int                   `json:"total_opens"`
	TotalClicks     int                   `json:"total_clicks"`
	EngagementScore int                   `json:"engagement_score"`
	FirstOpenedAt   *time.Time            `json:"first_opened_at"`
	LastOpenedAt    *time.Time            `json:"last_opened_at"`
	ClientIP        string                `json:"client_ip"`
}

// CampaignAnalytics is the full dashboard payload for one campaign.
type CampaignAnalytics struct {
	CampaignID    string          `json:"campaign_id"`
	Stats         Stats           `json:"stats"`
	TopPerformers []Performer     `json:"top_performers"`
	Records       []RecordSummary `json:"records"`
}

// Service computes read-only engagement rollups.
type Service struct {
	repo Repository
}

// NewService creates an analytics service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CampaignAnalytics builds the dashboard payload for one campaign.
func (s *Service) CampaignAnalytics(ctx context.Context, campaignID string) (*CampaignAnalytics, error) {
	agg, err := s.repo.Aggregate(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	opened, clicked, err := s.repo.EngagementCounts(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("engagement counts for campaign %s: %w", campaignID, err)
	}

	stats := Stats{
		TotalSent:    agg.TotalSent,
		TotalOpened:  opened,
		TotalClicked: clicked,
		TotalBounced: agg.TotalBounced,
	}
	if agg.TotalSent > 0 {
		stats.OpenRate = roundRate(float64(opened) / float64(agg.TotalSent) * 100)
		stats.ClickRate = roundRate(float64(clicked) / float64(agg.TotalSent) * 100)
	}

	top, err := s.repo.TopRecords(ctx, campaignID, TopPerformerPageSize)
	if err != nil {
		return nil, fmt.Errorf("top records for campaign %s: %w", campaignID, err)
	}
	performers := make([]Performer, 0, len(top))
	for _, r := range top {
		events, err := s.repo.EventsByRecord(ctx, r.ID, RecentEventLimit)
		if err != nil {
			return nil, fmt.Errorf("recent events for record %s: %w", r.ID, err)
		}
		performers = append(performers, Performer{
			RecordID:        r.ID,
			RecipientID:     r.RecipientID,
			EngagementScore: r.EngagementScore,
			Opens:           r.TotalOpens,
			Clicks:          r.TotalClicks,
			FirstOpenedAt:   r.FirstOpenedAt,
			FirstClickedAt:  r.FirstClickedAt,
			RecentEvents:    events,
		})
	}

	records, err := s.repo.Records(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("records for campaign %s: %w", campaignID, err)
	}
	summaries := make([]RecordSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, RecordSummary{
			ID:              r.ID,
			RecipientID:     r.RecipientID,
			Status:          r.Status,
			SentAt:          r.SentAt,
			TotalOpens:      r.TotalOpens,
			TotalClicks:     r.TotalClicks,
			EngagementScore: r.EngagementScore,
			FirstOpenedAt:   r.FirstOpenedAt,
			LastOpenedAt:    r.LastOpenedAt,
			ClientIP:        r.ClientIP,
		})
	}

	return &CampaignAnalytics{
		CampaignID:    campaignID,
		Stats:         stats,
		TopPerformers: performers,
		Records:       summaries,
	}, nil
}

// RecordEvents returns the full event history for one delivery record,
// newest first. Unknown records yield an empty slice, matching the
// append-only log's view of the world.
func (s *Service) RecordEvents(ctx context.Context, recordID string) ([]domain.TrackingEvent, error) {
	events, err := s.repo.EventsByRecord(ctx, recordID, 0)
	if err != nil {
		return nil, fmt.Errorf("events for record %s: %w", recordID, err)
	}
	if events == nil {
		events = []domain.TrackingEvent{}
	}
	return events, nil
}

func roundRate(v float64) float64 {
	return math.Round(v*100) / 100
}
