package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/brandmonkz/engagement-tracker/internal/service/analytics"
)

func newAnalyticsMock(t *testing.T) (*AnalyticsRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAnalyticsRepo(db), mock
}

func TestAnalyticsRepo_Aggregate(t *testing.T) {
	repo, mock := newAnalyticsMock(t)

	mock.ExpectQuery("FROM campaign_aggregates").
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"campaign_id", "total_sent", "total_opened", "total_clicked", "total_bounced",
			"created_at", "updated_at",
		}).AddRow("camp-1", 100, 40, 10, 2, t0, t0))

	agg, err := repo.Aggregate(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if agg.TotalSent != 100 || agg.TotalOpened != 40 || agg.TotalClicked != 10 || agg.TotalBounced != 2 {
		t.Errorf("aggregate = %+v", agg)
	}
}

func TestAnalyticsRepo_AggregateNotFound(t *testing.T) {
	repo, mock := newAnalyticsMock(t)

	mock.ExpectQuery("FROM campaign_aggregates").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id"}))

	_, err := repo.Aggregate(context.Background(), "ghost")
	if err != analytics.ErrCampaignNotFound {
		t.Errorf("Aggregate() error = %v, want ErrCampaignNotFound", err)
	}
}

func TestAnalyticsRepo_EngagementCounts(t *testing.T) {
	repo, mock := newAnalyticsMock(t)

	mock.ExpectQuery("COUNT").
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows([]string{"opened", "clicked"}).AddRow(40, 10))

	opened, clicked, err := repo.EngagementCounts(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("EngagementCounts() error = %v", err)
	}
	if opened != 40 || clicked != 10 {
		t.Errorf("counts = %d/%d, want 40/10", opened, clicked)
	}
}

func TestAnalyticsRepo_TopRecords(t *testing.T) {
	repo, mock := newAnalyticsMock(t)

	mock.ExpectQuery("ORDER BY engagement_score DESC").
		WithArgs("camp-1", 10).
		WillReturnRows(deliveryRows().
			AddRow("rec-a", "camp-1", "rcpt-a", "CLICKED",
				t0, "f@b.com", "ses-1", "msg-a",
				2, t0, t0, 5,
				1, t0, t0, 40,
				70, "10.0.0.1", t0, t0).
			AddRow("rec-b", "camp-1", "rcpt-b", "OPENED",
				t0, "f@b.com", "ses-1", "msg-b",
				1, t0, t0, 9,
				0, nil, nil, nil,
				30, "10.0.0.2", t0, t0))

	records, err := repo.TopRecords(context.Background(), "camp-1", 10)
	if err != nil {
		t.Fatalf("TopRecords() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].ID != "rec-a" || records[0].EngagementScore != 70 {
		t.Errorf("top record = %+v", records[0])
	}
	if records[1].FirstClickedAt != nil {
		t.Error("rec-b first_clicked_at should scan as nil")
	}
}
