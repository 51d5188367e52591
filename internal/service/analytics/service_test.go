package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
	"github.com/brandmonkz/engagement-tracker/internal/repository/memory"
	"github.com/brandmonkz/engagement-tracker/internal/service/analytics"
	"github.com/brandmonkz/engagement-tracker/internal/service/engagement"
)

var t0 = time.Date(2025, 10, 13, 9, 0, 0, 0, time.UTC)

// seedCampaign loads a campaign with four deliveries: one clicked, one
// opened, one sent-only, one bounced.
func seedCampaign(t *testing.T, campaignID string) (*analytics.Service, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	eng := engagement.NewService(store, store, store)

	for _, id := range []string{"rec-a", "rec-b", "rec-c", "rec-d"} {
		err := store.Create(ctx, &domain.DeliveryRecord{ID: id, CampaignID: campaignID, RecipientID: "rcpt-" + id})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		if err := eng.MarkSent(ctx, id, t0, "offers@brandmonkz.com", "ses-1", "msg-"+id); err != nil {
			t.Fatalf("mark sent %s: %v", id, err)
		}
	}

	meta := engagement.EventMeta{UserAgent: "Mozilla/5.0", ClientIP: "10.0.0.1"}
	if _, err := eng.RecordClick(ctx, "rec-a", "https://brandmonkz.com/offer", t0.Add(40*time.Second), meta); err != nil {
		t.Fatalf("click rec-a: %v", err)
	}
	if _, err := eng.RecordOpen(ctx, "rec-b", t0.Add(5*time.Second), meta); err != nil {
		t.Fatalf("open rec-b: %v", err)
	}
	if err := eng.MarkBounced(ctx, "rec-d"); err != nil {
		t.Fatalf("bounce rec-d: %v", err)
	}

	return analytics.NewService(store), store
}

func TestCampaignAnalytics(t *testing.T) {
	svc, _ := seedCampaign(t, "camp-1")

	out, err := svc.CampaignAnalytics(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}

	if out.CampaignID != "camp-1" {
		t.Errorf("campaign id = %q", out.CampaignID)
	}
	s := out.Stats
	if s.TotalSent != 4 || s.TotalOpened != 2 || s.TotalClicked != 1 || s.TotalBounced != 1 {
		t.Errorf("stats = %+v, want sent 4 opened 2 clicked 1 bounced 1", s)
	}
	if s.OpenRate != 50 {
		t.Errorf("open rate = %v, want 50", s.OpenRate)
	}
	if s.ClickRate != 25 {
		t.Errorf("click rate = %v, want 25", s.ClickRate)
	}

	if len(out.TopPerformers) != 4 {
		t.Fatalf("top performers = %d, want 4", len(out.TopPerformers))
	}
	if out.TopPerformers[0].RecordID != "rec-a" || out.TopPerformers[0].EngagementScore != 70 {
		t.Errorf("top performer = %+v, want rec-a with score 70", out.TopPerformers[0])
	}
	if out.TopPerformers[1].RecordID != "rec-b" {
		t.Errorf("second performer = %q, want rec-b", out.TopPerformers[1].RecordID)
	}
	if len(out.TopPerformers[0].RecentEvents) != 2 {
		t.Errorf("rec-a recent events = %d, want 2 (synthesized open + click)", len(out.TopPerformers[0].RecentEvents))
	}

	if len(out.Records) != 4 {
		t.Errorf("records = %d, want 4", len(out.Records))
	}
}

func TestCampaignAnalyticsRateRounding(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	eng := engagement.NewService(store, store, store)

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := store.Create(ctx, &domain.DeliveryRecord{ID: id, CampaignID: "camp-r", RecipientID: "x"}); err != nil {
			t.Fatal(err)
		}
		if err := eng.MarkSent(ctx, id, t0, "f@b.com", "s", "m-"+id); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := eng.RecordOpen(ctx, "r1", t0.Add(time.Second), engagement.EventMeta{}); err != nil {
		t.Fatal(err)
	}

	out, err := analytics.NewService(store).CampaignAnalytics(ctx, "camp-r")
	if err != nil {
		t.Fatal(err)
	}
	// 1/3 of 100, rounded to two decimals.
	if out.Stats.OpenRate != 33.33 {
		t.Errorf("open rate = %v, want 33.33", out.Stats.OpenRate)
	}
}

func TestCampaignAnalyticsUnknownCampaign(t *testing.T) {
	svc := analytics.NewService(memory.NewStore())
	_, err := svc.CampaignAnalytics(context.Background(), "ghost")
	if err != analytics.ErrCampaignNotFound {
		t.Errorf("err = %v, want ErrCampaignNotFound", err)
	}
}

func TestRecordEvents(t *testing.T) {
	svc, _ := seedCampaign(t, "camp-1")

	events, err := svc.RecordEvents(context.Background(), "rec-a")
	if err != nil {
		t.Fatalf("record events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].EventType != domain.EventClick {
		t.Errorf("newest event = %s, want CLICK", events[0].EventType)
	}

	empty, err := svc.RecordEvents(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("record events: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("unknown record should yield an empty slice, got %v", empty)
	}
}
