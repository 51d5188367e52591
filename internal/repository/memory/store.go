// Package memory provides in-memory repository implementations used by unit
// tests and local development. The store mirrors the concurrency semantics
// of the Postgres implementations: first-event claims are decided under one
// lock, so exactly one concurrent caller wins each uniqueness flag.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
	"github.com/brandmonkz/engagement-tracker/internal/service/analytics"
	"github.com/brandmonkz/engagement-tracker/internal/service/engagement"
)

// Store holds delivery records, campaign aggregates, and the event log in
// maps. It implements the engagement and analytics repository interfaces.
type Store struct {
	mu         sync.Mutex
	records    map[string]*domain.DeliveryRecord
	aggregates map[string]*domain.CampaignAggregate
	events     map[string][]domain.TrackingEvent // keyed by record id, append order
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		records:    make(map[string]*domain.DeliveryRecord),
		aggregates: make(map[string]*domain.CampaignAggregate),
		events:     make(map[string][]domain.TrackingEvent),
	}
}

// --- engagement.DeliveryRepository ---

func (s *Store) Get(_ context.Context, id string) (*domain.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, engagement.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) GetByProviderMessageID(_ context.Context, messageID string) (*domain.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ProviderMessageID == messageID && messageID != "" {
			cp := *r
			return &cp, nil
		}
	}
	return nil, engagement.ErrNotFound
}

func (s *Store) Create(_ context.Context, r *domain.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	if cp.Status == "" {
		cp.Status = domain.DeliveryPending
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.records[cp.ID] = &cp
	return nil
}

func (s *Store) ApplyEvent(_ context.Context, id string, eventType domain.EventType, observedAt time.Time, clientIP string) (domain.EventOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return domain.EventOutcome{}, engagement.ErrNotFound
	}

	updated, outcome := domain.ApplyEvent(*r, eventType, observedAt)
	// The client IP travels with opens, including the one a click
	// synthesizes; a plain repeat click leaves it alone.
	if clientIP != "" && (eventType == domain.EventOpen || outcome.FirstOpen) {
		updated.ClientIP = clientIP
	}
	updated.UpdatedAt = observedAt
	s.records[id] = &updated
	return outcome, nil
}

func (s *Store) MarkSent(_ context.Context, id string, sentAt time.Time, fromEmail, deliveryServer, providerMessageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return false, engagement.ErrNotFound
	}
	if r.Status != domain.DeliveryPending {
		return false, nil
	}
	at := sentAt
	r.Status = domain.DeliverySent
	r.SentAt = &at
	r.FromEmail = fromEmail
	r.DeliveryServer = deliveryServer
	r.ProviderMessageID = providerMessageID
	r.UpdatedAt = sentAt
	return true, nil
}

func (s *Store) MarkBounced(_ context.Context, id string) (bool, error) {
	return s.markTerminal(id, domain.DeliveryBounced)
}

func (s *Store) MarkFailed(_ context.Context, id string) (bool, error) {
	return s.markTerminal(id, domain.DeliveryFailed)
}

func (s *Store) markTerminal(id string, status domain.DeliveryStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return false, engagement.ErrNotFound
	}
	if r.Status == status {
		return false, nil
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	return true, nil
}

// --- engagement.AggregateRepository ---

func (s *Store) IncrementSent(ctx context.Context, campaignID string) error {
	return s.bump(campaignID, func(a *domain.CampaignAggregate) { a.TotalSent++ })
}

func (s *Store) IncrementOpened(ctx context.Context, campaignID string) error {
	return s.bump(campaignID, func(a *domain.CampaignAggregate) { a.TotalOpened++ })
}

func (s *Store) IncrementClicked(ctx context.Context, campaignID string) error {
	return s.bump(campaignID, func(a *domain.CampaignAggregate) { a.TotalClicked++ })
}

func (s *Store) IncrementBounced(ctx context.Context, campaignID string) error {
	return s.bump(campaignID, func(a *domain.CampaignAggregate) { a.TotalBounced++ })
}

func (s *Store) bump(campaignID string, apply func(*domain.CampaignAggregate)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply(s.aggregate(campaignID))
	return nil
}

// aggregate upserts the counter row, matching the Postgres
// INSERT ... ON CONFLICT behavior. Callers must hold s.mu.
func (s *Store) aggregate(campaignID string) *domain.CampaignAggregate {
	a, ok := s.aggregates[campaignID]
	if !ok {
		a = &domain.CampaignAggregate{CampaignID: campaignID, CreatedAt: time.Now().UTC()}
		s.aggregates[campaignID] = a
	}
	a.UpdatedAt = time.Now().UTC()
	return a
}

func (s *Store) GetAggregate(_ context.Context, campaignID string) (*domain.CampaignAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.aggregates[campaignID]
	if !ok {
		return nil, engagement.ErrUnknownCampaign
	}
	cp := *a
	return &cp, nil
}

// --- engagement.EventRepository ---

func (s *Store) Append(_ context.Context, ev *domain.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.DeliveryRecordID] = append(s.events[ev.DeliveryRecordID], *ev)
	return nil
}

func (s *Store) ListByRecord(_ context.Context, recordID string, limit int) ([]domain.TrackingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.events[recordID]

	// Newest first
	out := make([]domain.TrackingEvent, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- analytics.Repository ---

func (s *Store) Aggregate(ctx context.Context, campaignID string) (*domain.CampaignAggregate, error) {
	a, err := s.GetAggregate(ctx, campaignID)
	if err != nil {
		return nil, analytics.ErrCampaignNotFound
	}
	return a, nil
}

func (s *Store) EngagementCounts(_ context.Context, campaignID string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var opened, clicked int
	for _, r := range s.records {
		if r.CampaignID != campaignID {
			continue
		}
		switch r.Status {
		case domain.DeliveryOpened:
			opened++
		case domain.DeliveryClicked:
			opened++
			clicked++
		}
	}
	return opened, clicked, nil
}

func (s *Store) TopRecords(_ context.Context, campaignID string, limit int) ([]domain.DeliveryRecord, error) {
	out := s.campaignRecords(campaignID)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EngagementScore > out[j].EngagementScore
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Records(_ context.Context, campaignID string) ([]domain.DeliveryRecord, error) {
	return s.campaignRecords(campaignID), nil
}

func (s *Store) EventsByRecord(ctx context.Context, recordID string, limit int) ([]domain.TrackingEvent, error) {
	return s.ListByRecord(ctx, recordID, limit)
}

func (s *Store) campaignRecords(campaignID string) []domain.DeliveryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DeliveryRecord
	for _, r := range s.records {
		if r.CampaignID == campaignID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
