package domain

import "time"

// DeliveryStatus enumerates the lifecycle states of a single delivery.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySent    DeliveryStatus = "SENT"
	DeliveryOpened  DeliveryStatus = "OPENED"
	DeliveryClicked DeliveryStatus = "CLICKED"
	DeliveryBounced DeliveryStatus = "BOUNCED"
	DeliveryFailed  DeliveryStatus = "FAILED"
)

// Engagement score points. Opening is worth 30; the score never drops below
// that once an open is recorded. Each first click adds 40 on top.
const (
	OpenScore  = 30
	ClickScore = 40
)

// DeliveryRecord tracks one recipient's copy of one campaign send.
//
// Invariants:
//   - FirstOpenedAt set ⇔ TotalOpens ≥ 1 ⇔ Status ∈ {OPENED, CLICKED}
//   - FirstClickedAt set ⇒ FirstOpenedAt set (a click implies an open,
//     synthesized if the tracking pixel was never fetched)
//   - EngagementScore never decreases
type DeliveryRecord struct {
	ID          string `json:"id" db:"id"`
	CampaignID  string `json:"campaign_id" db:"campaign_id"`
	RecipientID string `json:"recipient_id" db:"recipient_id"`

	Status DeliveryStatus `json:"status" db:"status"`

	// Send metadata, populated when the delivery component dispatches.
	SentAt            *time.Time `json:"sent_at" db:"sent_at"`
	FromEmail         string     `json:"from_email" db:"from_email"`
	DeliveryServer    string     `json:"delivery_server" db:"delivery_server"`
	ProviderMessageID string     `json:"provider_message_id" db:"provider_message_id"`

	// Open metrics. TotalOpens counts every pixel fetch; uniqueness is
	// implied by FirstOpenedAt being set.
	TotalOpens    int        `json:"total_opens" db:"total_opens"`
	FirstOpenedAt *time.Time `json:"first_opened_at" db:"first_opened_at"`
	LastOpenedAt  *time.Time `json:"last_opened_at" db:"last_opened_at"`
	SecondsToOpen *int       `json:"seconds_to_open" db:"seconds_to_open"`

	// Click metrics.
	TotalClicks    int        `json:"total_clicks" db:"total_clicks"`
	FirstClickedAt *time.Time `json:"first_clicked_at" db:"first_clicked_at"`
	LastClickedAt  *time.Time `json:"last_clicked_at" db:"last_clicked_at"`
	SecondsToClick *int       `json:"seconds_to_click" db:"seconds_to_click"`

	EngagementScore int    `json:"engagement_score" db:"engagement_score"`
	ClientIP        string `json:"client_ip" db:"client_ip"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EventOutcome reports which uniqueness flags an ApplyEvent call flipped.
// The flags must travel with the exact aggregate increments they pair with;
// they are never recomputed from a re-read.
type EventOutcome struct {
	FirstOpen  bool `json:"first_open"`
	FirstClick bool `json:"first_click"`
}

// ApplyEvent is the single transition function for a delivery record. It is
// pure: given the same record, event type, and observation time it always
// produces the same result.
//
// A CLICK on a record with no recorded open synthesizes the open first using
// the same timestamp (image-blocking clients never fetch the pixel). The
// synthesized open measures SecondsToOpen at click time, which understates
// true open latency for those clients; this mirrors what the tracking data
// has always meant and is surfaced to product before being changed.
//
// Events for BOUNCED/FAILED records are applied with no special-casing:
// delayed bounces can race a genuine open, and the uniqueness flags still
// fire exactly once either way.
func ApplyEvent(r DeliveryRecord, eventType EventType, observedAt time.Time) (DeliveryRecord, EventOutcome) {
	var out EventOutcome

	switch eventType {
	case EventOpen:
		r, out.FirstOpen = applyOpen(r, observedAt)

	case EventClick:
		if r.FirstOpenedAt == nil {
			r, out.FirstOpen = applyOpen(r, observedAt)
		}

		out.FirstClick = r.FirstClickedAt == nil
		r.TotalClicks++
		last := observedAt
		r.LastClickedAt = &last

		if out.FirstClick {
			first := observedAt
			r.FirstClickedAt = &first
			if r.SentAt != nil {
				secs := secondsBetween(*r.SentAt, observedAt)
				r.SecondsToClick = &secs
			}
			r.EngagementScore += ClickScore
			r.Status = DeliveryClicked
		}
	}

	return r, out
}

func applyOpen(r DeliveryRecord, observedAt time.Time) (DeliveryRecord, bool) {
	first := r.FirstOpenedAt == nil
	r.TotalOpens++
	last := observedAt
	r.LastOpenedAt = &last

	if first {
		firstAt := observedAt
		r.FirstOpenedAt = &firstAt
		if r.SentAt != nil {
			secs := secondsBetween(*r.SentAt, observedAt)
			r.SecondsToOpen = &secs
		}
		if r.EngagementScore < OpenScore {
			r.EngagementScore = OpenScore
		}
		// Status never regresses past CLICKED.
		if r.Status != DeliveryClicked {
			r.Status = DeliveryOpened
		}
	}

	return r, first
}

func secondsBetween(from, to time.Time) int {
	secs := int(to.Sub(from).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}
