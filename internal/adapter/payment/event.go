package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/josepablo-design/marketplace/internal/usecase"
)

const MetaOrderID = "orderId"

var ErrMalformedEvent = errors.New("malformed event")

// ParseEvent decodes a processor event body. Only the fields the settlement
// flow needs are extracted; unknown event types come back with just ID/Type.
func ParseEvent(raw []byte) (usecase.PaymentEvent, error) {
	var ev stripe.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return usecase.PaymentEvent{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return usecase.PaymentEvent{}, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	out := usecase.PaymentEvent{ID: ev.ID, Type: string(ev.Type), Created: time.Unix(ev.Created, 0).UTC()}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, nil
	}

	switch out.Type {
	case usecase.EventPaymentSucceeded, usecase.EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return usecase.PaymentEvent{}, fmt.Errorf("%w: payment intent: %w", ErrMalformedEvent, err)
		}
		out.IntentID = pi.ID
		out.OrderID = pi.Metadata[MetaOrderID]
	case usecase.EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return usecase.PaymentEvent{}, fmt.Errorf("%w: charge: %w", ErrMalformedEvent, err)
		}
		out.ChargeID = ch.ID
		if ch.PaymentIntent != nil {
			out.IntentID = ch.PaymentIntent.ID
		}
		out.OrderID = ch.Metadata[MetaOrderID]
	}
	return out, nil
}
