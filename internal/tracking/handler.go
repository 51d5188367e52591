// Package tracking exposes the HTTP surface of the engagement engine: the
// open pixel, the click redirect, the analytics reads, and the ESP bounce
// webhook.
//
// The pixel and click endpoints are rendering surfaces embedded in already
// delivered email, not interactive clients. They therefore never return an
// error to the requester: every internal failure is logged and swallowed,
// the pixel response is always the same GIF bytes, and a click always lands
// somewhere. Do not "fix" this into conventional error propagation.
package tracking

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
	"github.com/brandmonkz/engagement-tracker/internal/pkg/httputil"
	"github.com/brandmonkz/engagement-tracker/internal/pkg/logger"
	"github.com/brandmonkz/engagement-tracker/internal/service/analytics"
	"github.com/brandmonkz/engagement-tracker/internal/service/engagement"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Config holds the handler's redirect policy.
type Config struct {
	AllowedRedirectHosts []string
	DefaultLandingURL    string
}

// AnalyticsProvider is the read side consumed by the dashboard endpoints.
// Both analytics.Service and analytics.CachedService satisfy it.
type AnalyticsProvider interface {
	CampaignAnalytics(ctx context.Context, campaignID string) (*analytics.CampaignAnalytics, error)
	RecordEvents(ctx context.Context, recordID string) ([]domain.TrackingEvent, error)
}

// Handler serves the tracking routes.
type Handler struct {
	svc       *engagement.Service
	analytics AnalyticsProvider
	cfg       Config
	now       func() time.Time
}

// NewHandler creates a tracking handler.
func NewHandler(svc *engagement.Service, ap AnalyticsProvider, cfg Config) *Handler {
	return &Handler{svc: svc, analytics: ap, cfg: cfg, now: time.Now}
}

// Routes returns the tracking router, mounted by the caller under its own
// prefix.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/tracking/open/{recordID}", h.HandleOpen)
	r.Get("/tracking/click/{recordID}", h.HandleClick)
	r.Get("/tracking/analytics/{campaignID}", h.HandleAnalytics)
	r.Get("/tracking/events/{recordID}", h.HandleEvents)
	r.Post("/tracking/webhooks/ses", h.HandleSESWebhook)
	r.Get("/health", h.HandleHealth)
	return r
}

// HandleOpen records a pixel fetch. The response is the GIF no matter what:
// unknown records, storage failures, everything is logged and swallowed so
// the email never renders a broken image.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")

	_, err := h.svc.RecordOpen(r.Context(), recordID, h.now().UTC(), metaFrom(r))
	switch {
	case err == nil:
	case errors.Is(err, engagement.ErrNotFound):
		logger.Debug("open for unknown record", "record_id", recordID)
	default:
		logger.Error("open tracking failed", "record_id", recordID, "error", err)
	}

	h.servePixel(w)
}

// HandleClick records a link follow and redirects. Tracking failures never
// block the redirect, and an unsafe destination silently becomes the default
// landing page.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")
	dest := r.URL.Query().Get("url")

	_, err := h.svc.RecordClick(r.Context(), recordID, dest, h.now().UTC(), metaFrom(r))
	switch {
	case err == nil:
	case errors.Is(err, engagement.ErrNotFound):
		logger.Debug("click for unknown record", "record_id", recordID)
	default:
		logger.Error("click tracking failed", "record_id", recordID, "error", err)
	}

	target := h.cfg.DefaultLandingURL
	if IsSafeRedirect(dest, h.cfg.AllowedRedirectHosts) {
		target = dest
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleAnalytics serves the campaign dashboard payload. Unlike the
// ingestion endpoints this propagates errors normally.
func (h *Handler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	out, err := h.analytics.CampaignAnalytics(r.Context(), campaignID)
	if err != nil {
		if errors.Is(err, analytics.ErrCampaignNotFound) {
			httputil.NotFound(w, "campaign not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, out)
}

// HandleEvents serves a record's event history, newest first. A record with
// no events yields an empty array, not a 404.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")

	events, err := h.analytics.RecordEvents(r.Context(), recordID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, events)
}

// HandleHealth is the liveness probe.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func metaFrom(r *http.Request) engagement.EventMeta {
	return engagement.EventMeta{
		UserAgent: r.UserAgent(),
		ClientIP:  realIP(r),
	}
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
