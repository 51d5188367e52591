package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
)

func TestEventRepo_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()
	repo := NewEventRepo(db)

	mock.ExpectExec("INSERT INTO tracking_events").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ev := &domain.TrackingEvent{
		DeliveryRecordID: "rec-1",
		CampaignID:       "camp-1",
		EventType:        domain.EventOpen,
		EventAt:          t0,
		UserAgent:        "Mozilla/5.0",
		ClientIP:         "10.0.0.1",
		DeviceType:       "desktop",
	}
	if err := repo.Append(context.Background(), ev); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ev.ID == "" {
		t.Error("Append() should assign an id")
	}
	if ev.CreatedAt.IsZero() {
		t.Error("Append() should stamp created_at")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "delivery_record_id", "campaign_id", "event_type", "event_at",
		"user_agent", "client_ip", "link_url", "device_type", "bot", "created_at",
	})
}

func TestEventRepo_ListByRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()
	repo := NewEventRepo(db)

	mock.ExpectQuery("FROM tracking_events").
		WithArgs("rec-1").
		WillReturnRows(eventRows().
			AddRow("ev-2", "rec-1", "camp-1", "CLICK", t0, "ua", "ip", "https://brandmonkz.com/x", "mobile", false, t0).
			AddRow("ev-1", "rec-1", "camp-1", "OPEN", t0, "ua", "ip", "", "mobile", false, t0))

	events, err := repo.ListByRecord(context.Background(), "rec-1", 0)
	if err != nil {
		t.Fatalf("ListByRecord() error = %v", err)
	}
	if len(events) != 2 || events[0].EventType != domain.EventClick {
		t.Errorf("events = %+v", events)
	}
}

func TestEventRepo_ListByRecordLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()
	repo := NewEventRepo(db)

	mock.ExpectQuery("LIMIT").
		WithArgs("rec-1", 5).
		WillReturnRows(eventRows())

	events, err := repo.ListByRecord(context.Background(), "rec-1", 5)
	if err != nil {
		t.Fatalf("ListByRecord() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %d, want 0", len(events))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
