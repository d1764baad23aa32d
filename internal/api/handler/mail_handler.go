package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/deskhub/helpdesk/internal/api/middleware"
)

// ImportTrigger runs one locked import cycle on demand.
// Implemented by scheduler.Poller.
type ImportTrigger interface {
	RunOnce(ctx context.Context) (int, error)
}

// MailHandler exposes the manual import trigger operators use to pull
// mail outside the polling schedule.
type MailHandler struct {
	trigger ImportTrigger
	logger  *zap.Logger
}

func NewMailHandler(trigger ImportTrigger, logger *zap.Logger) *MailHandler {
	return &MailHandler{trigger: trigger, logger: logger}
}

// TriggerImport handles POST /api/v1/mail/import
//
// Contention with the scheduled poll (or another operator) maps to 409;
// the caller can simply wait for the in-flight run to finish.
func (h *MailHandler) TriggerImport(w http.ResponseWriter, r *http.Request) {
	count, err := h.trigger.RunOnce(r.Context())
	if err != nil {
		h.logger.Warn("manual mail import failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"imported": count})
}
