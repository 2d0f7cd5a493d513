package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/josepablo-design/marketplace/internal/adapter/http/middleware"
	"github.com/josepablo-design/marketplace/internal/adapter/observ"
	"github.com/josepablo-design/marketplace/internal/logging"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

const webhookTimeout = 10 * time.Second

type EventHandler interface {
	HandleEvent(ctx context.Context, ev usecase.PaymentEvent) (usecase.Outcome, error)
}

type WebhookHandler struct {
	events EventHandler
}

func NewWebhookHandler(events EventHandler) *WebhookHandler {
	return &WebhookHandler{events: events}
}

// Handle runs after middleware.WebhookVerify. Processing failures are logged
// and still acknowledged: a non-2xx answer makes the processor redeliver.
func (h *WebhookHandler) Handle(c *gin.Context) {
	ev, ok := middleware.EventFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), webhookTimeout)
	defer cancel()

	out, err := h.events.HandleEvent(ctx, ev)
	if err != nil {
		logging.From(c).Error("webhook processing failed", "event_id", ev.ID, "event_type", ev.Type, "err", err)
		observ.WebhookEvent(ev.Type, "error")
	} else {
		observ.WebhookEvent(ev.Type, string(out))
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
