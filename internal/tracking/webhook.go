package tracking

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brandmonkz/engagement-tracker/internal/pkg/logger"
	"github.com/brandmonkz/engagement-tracker/internal/service/engagement"
)

// sesNotification is the subset of an SES/SNS delivery notification the
// tracker cares about. The provider message id links the notification back
// to a delivery record.
type sesNotification struct {
	NotificationType string `json:"notificationType"`
	Bounce           struct {
		BounceType        string `json:"bounceType"`
		BouncedRecipients []struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"bouncedRecipients"`
	} `json:"bounce"`
	Mail struct {
		MessageID string `json:"messageId"`
	} `json:"mail"`
}

// HandleSESWebhook ingests bounce notifications from the delivery side.
// Permanent bounces flip the record to BOUNCED (and bump the campaign's
// bounce counter once); transient bounces are logged only. The response is
// always 200 so the provider doesn't retry notifications for records we no
// longer know about.
func (h *Handler) HandleSESWebhook(w http.ResponseWriter, r *http.Request) {
	var n sesNotification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		logger.Warn("undecodable ses notification", "error", err)
		h.webhookOK(w)
		return
	}

	if n.NotificationType == "Bounce" && n.Mail.MessageID != "" {
		hard := n.Bounce.BounceType == "Permanent"
		err := h.svc.BounceForMessage(r.Context(), n.Mail.MessageID, hard)
		switch {
		case err == nil:
		case errors.Is(err, engagement.ErrNotFound):
			logger.Debug("bounce for unknown message", "message_id", n.Mail.MessageID)
		default:
			logger.Error("bounce processing failed", "message_id", n.Mail.MessageID, "error", err)
		}
	}

	h.webhookOK(w)
}

func (h *Handler) webhookOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
