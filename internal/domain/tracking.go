package domain

import "time"

// EventType identifies a tracking event.
type EventType string

const (
	EventOpen  EventType = "OPEN"
	EventClick EventType = "CLICK"
)

// TrackingEvent is one append-only occurrence of an open or click. Events
// are never updated or deleted; the recent-activity feed reads them newest
// first, and the campaign aggregate can be rebuilt from them if it ever
// drifts.
type TrackingEvent struct {
	ID               string    `json:"id" db:"id"`
	DeliveryRecordID string    `json:"delivery_record_id" db:"delivery_record_id"`
	CampaignID       string    `json:"campaign_id" db:"campaign_id"`
	EventType        EventType `json:"event_type" db:"event_type"`
	EventAt          time.Time `json:"event_at" db:"event_at"`
	UserAgent        string    `json:"user_agent" db:"user_agent"`
	ClientIP         string    `json:"client_ip" db:"client_ip"`
	LinkURL          string    `json:"link_url,omitempty" db:"link_url"`
	DeviceType       string    `json:"device_type" db:"device_type"`
	Bot              bool      `json:"bot" db:"bot"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// CampaignAggregate holds campaign-level engagement totals.
//
// TotalOpened and TotalClicked are a materialized view of the per-record
// state: TotalOpened == |{r : r.Status ∈ {OPENED, CLICKED}}| and
// TotalClicked == |{r : r.Status == CLICKED}| over the campaign's delivery
// records. Every first-open/first-click transition pairs with exactly one
// increment here, so the counters must only ever be mutated by single
// atomic increments issued to the store.
type CampaignAggregate struct {
	CampaignID   string    `json:"campaign_id" db:"campaign_id"`
	TotalSent    int       `json:"total_sent" db:"total_sent"`
	TotalOpened  int       `json:"total_opened" db:"total_opened"`
	TotalClicked int       `json:"total_clicked" db:"total_clicked"`
	TotalBounced int       `json:"total_bounced" db:"total_bounced"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
