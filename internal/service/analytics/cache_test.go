package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
	"github.com/brandmonkz/engagement-tracker/internal/repository/memory"
	"github.com/brandmonkz/engagement-tracker/internal/service/analytics"
	"github.com/brandmonkz/engagement-tracker/internal/service/engagement"
)

func newCached(t *testing.T, ttl time.Duration) (*analytics.CachedService, *memory.Store, *miniredis.Miniredis) {
	t.Helper()
	svc, store := seedCampaign(t, "camp-1")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return analytics.NewCachedService(svc, rdb, ttl), store, mr
}

func TestCachedAnalyticsServesFromCache(t *testing.T) {
	cached, store, _ := newCached(t, 30*time.Second)
	ctx := context.Background()

	first, err := cached.CampaignAnalytics(ctx, "camp-1")
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if first.Stats.TotalClicked != 1 {
		t.Fatalf("total_clicked = %d, want 1", first.Stats.TotalClicked)
	}

	// Change the underlying data; a cached read must not see it yet.
	eng := engagement.NewService(store, store, store)
	if _, err := eng.RecordClick(ctx, "rec-b", "https://brandmonkz.com/x", t0.Add(time.Minute), engagement.EventMeta{}); err != nil {
		t.Fatalf("click: %v", err)
	}

	second, err := cached.CampaignAnalytics(ctx, "camp-1")
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if second.Stats.TotalClicked != 1 {
		t.Errorf("total_clicked = %d within TTL, want cached value 1", second.Stats.TotalClicked)
	}
}

func TestCachedAnalyticsRefreshesAfterTTL(t *testing.T) {
	cached, store, mr := newCached(t, 30*time.Second)
	ctx := context.Background()

	if _, err := cached.CampaignAnalytics(ctx, "camp-1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	eng := engagement.NewService(store, store, store)
	if _, err := eng.RecordClick(ctx, "rec-b", "https://brandmonkz.com/x", t0.Add(time.Minute), engagement.EventMeta{}); err != nil {
		t.Fatalf("click: %v", err)
	}

	mr.FastForward(31 * time.Second)

	out, err := cached.CampaignAnalytics(ctx, "camp-1")
	if err != nil {
		t.Fatalf("read after TTL: %v", err)
	}
	if out.Stats.TotalClicked != 2 {
		t.Errorf("total_clicked = %d after TTL, want fresh value 2", out.Stats.TotalClicked)
	}
}

func TestCachedAnalyticsNotFoundIsNotCached(t *testing.T) {
	cached, store, _ := newCached(t, 30*time.Second)
	ctx := context.Background()

	if _, err := cached.CampaignAnalytics(ctx, "camp-new"); err != analytics.ErrCampaignNotFound {
		t.Fatalf("err = %v, want ErrCampaignNotFound", err)
	}

	// The campaign appears; the next read must see it immediately.
	eng := engagement.NewService(store, store, store)
	if err := store.Create(ctx, &domain.DeliveryRecord{ID: "rec-n", CampaignID: "camp-new", RecipientID: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := eng.MarkSent(ctx, "rec-n", t0, "f@b.com", "s", "m-n"); err != nil {
		t.Fatal(err)
	}

	out, err := cached.CampaignAnalytics(ctx, "camp-new")
	if err != nil {
		t.Fatalf("read after create: %v", err)
	}
	if out.Stats.TotalSent != 1 {
		t.Errorf("total_sent = %d, want 1", out.Stats.TotalSent)
	}
}

func TestCachedAnalyticsCorruptEntryRecomputes(t *testing.T) {
	cached, _, mr := newCached(t, 30*time.Second)

	if err := mr.Set("analytics:campaign:camp-1", "{not json"); err != nil {
		t.Fatal(err)
	}

	out, err := cached.CampaignAnalytics(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("read with corrupt cache: %v", err)
	}
	if out.Stats.TotalSent != 4 {
		t.Errorf("total_sent = %d, want 4", out.Stats.TotalSent)
	}
}

func TestCachedAnalyticsNilClientPassesThrough(t *testing.T) {
	svc, _ := seedCampaign(t, "camp-1")
	cached := analytics.NewCachedService(svc, nil, time.Second)

	out, err := cached.CampaignAnalytics(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Stats.TotalSent != 4 {
		t.Errorf("total_sent = %d, want 4", out.Stats.TotalSent)
	}
}

func TestCachedAnalyticsRedisDownDegrades(t *testing.T) {
	cached, _, mr := newCached(t, 30*time.Second)
	mr.Close()

	out, err := cached.CampaignAnalytics(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("read with redis down: %v", err)
	}
	if out.Stats.TotalSent != 4 {
		t.Errorf("total_sent = %d, want 4", out.Stats.TotalSent)
	}
}
