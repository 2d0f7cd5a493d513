package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/josepablo-design/marketplace/internal/adapter/observ"
	"github.com/josepablo-design/marketplace/internal/adapter/payment"
	"github.com/josepablo-design/marketplace/internal/logging"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

type EventHandler interface {
	HandleEvent(ctx context.Context, ev usecase.PaymentEvent) (usecase.Outcome, error)
}

// PaymentEventHandler feeds relayed processor events into settlement. The
// relay verified the signatures; message values are raw event JSON.
type PaymentEventHandler struct {
	events EventHandler
}

func NewPaymentEventHandler(events EventHandler) *PaymentEventHandler {
	return &PaymentEventHandler{events: events}
}

func (h *PaymentEventHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ev, err := payment.ParseEvent(msg.Value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSkip, err)
	}
	out, err := h.events.HandleEvent(ctx, ev)
	if err != nil {
		observ.WebhookEvent(ev.Type, "error")
		return err
	}
	observ.WebhookEvent(ev.Type, string(out))
	logging.FromCtx(ctx).Debug("relayed event handled", "event_id", ev.ID, "outcome", out)
	return nil
}
