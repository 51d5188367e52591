package engagement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
	"github.com/brandmonkz/engagement-tracker/internal/pkg/logger"
)

// maxUserAgentLen bounds stored user-agent strings.
const maxUserAgentLen = 500

// EventMeta carries request metadata captured by the HTTP layer.
type EventMeta struct {
	UserAgent string
	ClientIP  string
}

// Result reports what one ingestion call did, so callers can verify the
// pairing of uniqueness flags and aggregate increments.
type Result struct {
	Record  *domain.DeliveryRecord
	Outcome domain.EventOutcome
}

// Service applies tracking events and keeps the campaign aggregates a
// consistent materialized view of the per-record state. All methods are safe
// for concurrent use if the underlying repositories are concurrency-safe.
//
// Methods return errors normally; the "swallow and always respond" contract
// of the pixel and click endpoints belongs to the HTTP layer, not here.
type Service struct {
	deliveries DeliveryRepository
	aggregates AggregateRepository
	events     EventRepository
	bots       *BotDetector
}

// NewService creates an engagement service backed by the given repositories.
func NewService(deliveries DeliveryRepository, aggregates AggregateRepository, events EventRepository) *Service {
	return &Service{
		deliveries: deliveries,
		aggregates: aggregates,
		events:     events,
		bots:       NewBotDetector(),
	}
}

// RecordOpen processes one pixel fetch observed at the given time.
// Every fetch is logged to the event stream; only the first one per record
// increments the campaign's total_opened.
func (s *Service) RecordOpen(ctx context.Context, recordID string, observedAt time.Time, meta EventMeta) (*Result, error) {
	rec, err := s.deliveries.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.deliveries.ApplyEvent(ctx, recordID, domain.EventOpen, observedAt, meta.ClientIP)
	if err != nil {
		return nil, fmt.Errorf("apply open to record %s: %w", recordID, err)
	}

	if outcome.FirstOpen {
		if err := s.aggregates.IncrementOpened(ctx, rec.CampaignID); err != nil {
			return nil, fmt.Errorf("increment opened for campaign %s: %w", rec.CampaignID, err)
		}
	}

	if err := s.appendEvent(ctx, rec, domain.EventOpen, observedAt, meta, ""); err != nil {
		return nil, err
	}

	logger.Debug("open recorded",
		"record_id", recordID, "campaign_id", rec.CampaignID, "first_open", outcome.FirstOpen)
	return &Result{Record: rec, Outcome: outcome}, nil
}

// RecordClick processes one tracked link follow. A click on a record with no
// recorded open synthesizes the open first, so both aggregate counters can
// move in a single call; the synthesized open is logged as its own event.
func (s *Service) RecordClick(ctx context.Context, recordID, destURL string, observedAt time.Time, meta EventMeta) (*Result, error) {
	rec, err := s.deliveries.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.deliveries.ApplyEvent(ctx, recordID, domain.EventClick, observedAt, meta.ClientIP)
	if err != nil {
		return nil, fmt.Errorf("apply click to record %s: %w", recordID, err)
	}

	if outcome.FirstOpen {
		if err := s.aggregates.IncrementOpened(ctx, rec.CampaignID); err != nil {
			return nil, fmt.Errorf("increment opened for campaign %s: %w", rec.CampaignID, err)
		}
	}
	if outcome.FirstClick {
		if err := s.aggregates.IncrementClicked(ctx, rec.CampaignID); err != nil {
			return nil, fmt.Errorf("increment clicked for campaign %s: %w", rec.CampaignID, err)
		}
	}

	// A synthesized open gets its own event so the log can rebuild the
	// aggregate counters.
	if outcome.FirstOpen {
		if err := s.appendEvent(ctx, rec, domain.EventOpen, observedAt, meta, ""); err != nil {
			return nil, err
		}
	}
	if destURL == "" {
		destURL = "unknown"
	}
	if err := s.appendEvent(ctx, rec, domain.EventClick, observedAt, meta, destURL); err != nil {
		return nil, err
	}

	logger.Debug("click recorded",
		"record_id", recordID, "campaign_id", rec.CampaignID,
		"first_open", outcome.FirstOpen, "first_click", outcome.FirstClick)
	return &Result{Record: rec, Outcome: outcome}, nil
}

// MarkSent records the dispatch of a queued delivery: PENDING→SENT plus one
// total_sent increment. Repeated calls for the same record are no-ops.
func (s *Service) MarkSent(ctx context.Context, recordID string, sentAt time.Time, fromEmail, deliveryServer, providerMessageID string) error {
	rec, err := s.deliveries.Get(ctx, recordID)
	if err != nil {
		return err
	}

	claimed, err := s.deliveries.MarkSent(ctx, recordID, sentAt, fromEmail, deliveryServer, providerMessageID)
	if err != nil {
		return fmt.Errorf("mark sent %s: %w", recordID, err)
	}
	if claimed {
		if err := s.aggregates.IncrementSent(ctx, rec.CampaignID); err != nil {
			return fmt.Errorf("increment sent for campaign %s: %w", rec.CampaignID, err)
		}
	}
	return nil
}

// MarkBounced records a hard bounce reported by the delivery component.
// The total_bounced increment pairs with the status transition, so double
// notifications count once.
func (s *Service) MarkBounced(ctx context.Context, recordID string) error {
	rec, err := s.deliveries.Get(ctx, recordID)
	if err != nil {
		return err
	}

	claimed, err := s.deliveries.MarkBounced(ctx, recordID)
	if err != nil {
		return fmt.Errorf("mark bounced %s: %w", recordID, err)
	}
	if claimed {
		if err := s.aggregates.IncrementBounced(ctx, rec.CampaignID); err != nil {
			return fmt.Errorf("increment bounced for campaign %s: %w", rec.CampaignID, err)
		}
	}
	return nil
}

// MarkFailed records a permanent send failure. No aggregate counter tracks
// failures; the status alone excludes the record from engagement rates.
func (s *Service) MarkFailed(ctx context.Context, recordID string) error {
	if _, err := s.deliveries.Get(ctx, recordID); err != nil {
		return err
	}
	if _, err := s.deliveries.MarkFailed(ctx, recordID); err != nil {
		return fmt.Errorf("mark failed %s: %w", recordID, err)
	}
	return nil
}

// BounceForMessage resolves an ESP bounce notification to its delivery
// record. Soft bounces are logged only; hard bounces flip the record to
// BOUNCED.
func (s *Service) BounceForMessage(ctx context.Context, providerMessageID string, hard bool) error {
	rec, err := s.deliveries.GetByProviderMessageID(ctx, providerMessageID)
	if err != nil {
		return err
	}
	if !hard {
		logger.Info("soft bounce", "record_id", rec.ID, "campaign_id", rec.CampaignID)
		return nil
	}
	return s.MarkBounced(ctx, rec.ID)
}

func (s *Service) appendEvent(ctx context.Context, rec *domain.DeliveryRecord, et domain.EventType, at time.Time, meta EventMeta, linkURL string) error {
	ua := meta.UserAgent
	if len(ua) > maxUserAgentLen {
		ua = ua[:maxUserAgentLen]
	}

	ev := &domain.TrackingEvent{
		ID:               uuid.New().String(),
		DeliveryRecordID: rec.ID,
		CampaignID:       rec.CampaignID,
		EventType:        et,
		EventAt:          at,
		UserAgent:        ua,
		ClientIP:         meta.ClientIP,
		LinkURL:          linkURL,
		DeviceType:       detectDevice(ua),
		Bot:              s.bots.IsBot(ua),
	}
	if err := s.events.Append(ctx, ev); err != nil {
		return fmt.Errorf("append %s event for record %s: %w", et, rec.ID, err)
	}
	return nil
}

func detectDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone") {
		return "mobile"
	}
	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return "tablet"
	}
	return "desktop"
}

// BotDetector flags prefetch/scanner traffic. The flag annotates events for
// audit display; it never changes counters, since proxies that prefetch the
// pixel still count as opens today.
type BotDetector struct {
	botPatterns []string
}

// NewBotDetector creates a detector with the stock pattern list.
func NewBotDetector() *BotDetector {
	return &BotDetector{
		botPatterns: []string{
			"bot", "crawler", "spider", "slurp", "googlebot", "bingbot",
			"yahoo", "baidu", "yandex", "preview", "proxy", "scanner",
		},
	}
}

// IsBot checks if the user agent matches a known bot pattern.
func (bd *BotDetector) IsBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, pattern := range bd.botPatterns {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
