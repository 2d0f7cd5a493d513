package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/josepablo-design/marketplace/internal/entity"
	"github.com/josepablo-design/marketplace/internal/logging"
)

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeNoop      Outcome = "noop"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDropped   Outcome = "dropped"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeNotFound  Outcome = "not_found"
)

// Trigger names what caused a transition; it travels with published events.
type Trigger string

const (
	TriggerPaymentSucceeded Trigger = "payment_succeeded"
	TriggerPaymentFailed    Trigger = "payment_failed"
	TriggerRefunded         Trigger = "refunded"
	TriggerManualConfirm    Trigger = "manual_confirm"
	TriggerReconcile        Trigger = "reconcile"
)

// Anomaly kinds reported through the anomaly hook.
const (
	AnomalyMissingOrderID   = "missing_order_id"
	AnomalyMissingIntentID  = "missing_payment_intent"
	AnomalyPaidAfterCancel  = "paid_after_cancel"
	AnomalyProductNotActive = "product_not_active"
	AnomalyIntentMismatch   = "intent_mismatch"
	AnomalyUnknownOrder     = "unknown_order"
)

const (
	eventScope     = "stripe-event"
	releaseTimeout = 2 * time.Second
)

// Settlement applies payment outcomes to orders and their products. Every
// transition is a conditional update, so repeated or reordered deliveries
// converge: a succeeded payment wins over a later failure, and a cancelled
// order is never resurrected.
type Settlement struct {
	orders  OrderRepo
	dedupe  IdempotencyStore
	cache   OrderCache
	pub     SettlementPublisher
	anomaly func(kind string)
	now     func() time.Time
}

type SettlementOption func(*Settlement)

func WithEventDedupe(s IdempotencyStore) SettlementOption {
	return func(st *Settlement) { st.dedupe = s }
}
func WithStatusCache(c OrderCache) SettlementOption {
	return func(st *Settlement) { st.cache = c }
}
func WithPublisher(p SettlementPublisher) SettlementOption {
	return func(st *Settlement) { st.pub = p }
}
func WithAnomalyHook(f func(kind string)) SettlementOption {
	return func(st *Settlement) { st.anomaly = f }
}

func NewSettlement(orders OrderRepo, opts ...SettlementOption) *Settlement {
	s := &Settlement{orders: orders, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleEvent dispatches a verified processor event. Malformed events are
// dropped with a nil error; only store failures are returned.
func (s *Settlement) HandleEvent(ctx context.Context, ev PaymentEvent) (Outcome, error) {
	l := logging.FromCtx(ctx).With("event_id", ev.ID, "event_type", ev.Type)
	ctx = logging.WithCtx(ctx, l)

	switch ev.Type {
	case EventPaymentSucceeded, EventPaymentFailed, EventChargeRefunded:
	default:
		l.Info("unhandled event type")
		return OutcomeIgnored, nil
	}

	locked := false
	if s.dedupe != nil && ev.ID != "" {
		ok, err := s.dedupe.TryLock(ctx, eventScope, ev.ID)
		switch {
		case err != nil:
			l.Warn("event dedupe unavailable", "err", err)
		case !ok:
			l.Info("event already processed")
			return OutcomeDuplicate, nil
		default:
			locked = true
		}
	}

	out, err := s.dispatch(ctx, ev)
	if err != nil && locked {
		s.releaseEvent(ctx, l, ev.ID)
	}
	return out, err
}

// releaseEvent drops the dedupe marker so a redelivery is processed again.
// The caller's ctx is often the one that just expired.
func (s *Settlement) releaseEvent(ctx context.Context, l *slog.Logger, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.dedupe.Release(ctx, eventScope, id); err != nil {
		l.Error("event dedupe release failed; redeliveries will be skipped until the marker expires", "err", err)
	}
}

func (s *Settlement) dispatch(ctx context.Context, ev PaymentEvent) (Outcome, error) {
	l := logging.FromCtx(ctx)
	switch ev.Type {
	case EventPaymentSucceeded:
		if ev.OrderID == "" {
			s.report(l, AnomalyMissingOrderID, "payment intent without orderId metadata", "intent_id", ev.IntentID)
			return OutcomeDropped, nil
		}
		return s.MarkPaid(ctx, ev.OrderID, ev.IntentID, TriggerPaymentSucceeded)
	case EventPaymentFailed:
		if ev.OrderID == "" {
			s.report(l, AnomalyMissingOrderID, "payment intent without orderId metadata", "intent_id", ev.IntentID)
			return OutcomeDropped, nil
		}
		return s.MarkFailed(ctx, ev.OrderID)
	default:
		if ev.IntentID == "" {
			s.report(l, AnomalyMissingIntentID, "charge without payment intent", "charge_id", ev.ChargeID)
			return OutcomeDropped, nil
		}
		return s.MarkRefunded(ctx, ev.IntentID)
	}
}

// MarkPaid moves a pending order to paid and its product from active to sold
// in one store transaction.
func (s *Settlement) MarkPaid(ctx context.Context, orderID, intentID string, trigger Trigger) (Outcome, error) {
	l := logging.FromCtx(ctx).With("order_id", orderID, "trigger", trigger)

	res, err := s.orders.Transition(ctx, Transition{
		OrderID:         orderID,
		From:            domain.Transitions[domain.StatusPaid],
		To:              domain.StatusPaid,
		PaymentIntentID: intentID,
		Product:         &ProductTransition{From: domain.ProductActive, To: domain.ProductSold},
	})
	if errors.Is(err, ErrNotFound) {
		s.report(l, AnomalyUnknownOrder, "order not found")
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: mark order %s paid: %w", ErrInternal, orderID, err)
	}

	if intentID != "" && res.Order.PaymentIntentID != "" && res.Order.PaymentIntentID != intentID {
		s.report(l, AnomalyIntentMismatch, "event intent differs from stored intent",
			"event_intent", intentID, "stored_intent", res.Order.PaymentIntentID)
	}

	if !res.OrderChanged {
		if res.Order.Status == domain.StatusCancelled {
			s.report(l, AnomalyPaidAfterCancel, "payment succeeded for a cancelled order, refund required")
		} else {
			l.Info("order already paid")
		}
		return OutcomeNoop, nil
	}
	if !res.ProductChanged {
		s.report(l, AnomalyProductNotActive, "order paid but product was not active", "product_id", res.Order.ProductID)
	}

	l.Info("order marked as paid")
	s.afterTransition(ctx, res, trigger)
	return OutcomeApplied, nil
}

// MarkFailed cancels a pending order. The product stays listed.
func (s *Settlement) MarkFailed(ctx context.Context, orderID string) (Outcome, error) {
	return s.cancel(ctx, orderID, TriggerPaymentFailed)
}

// Cancel cancels a pending order on behalf of the reconciler.
func (s *Settlement) Cancel(ctx context.Context, orderID string) (Outcome, error) {
	return s.cancel(ctx, orderID, TriggerReconcile)
}

func (s *Settlement) cancel(ctx context.Context, orderID string, trigger Trigger) (Outcome, error) {
	l := logging.FromCtx(ctx).With("order_id", orderID, "trigger", trigger)

	res, err := s.orders.Transition(ctx, Transition{
		OrderID: orderID,
		From:    domain.Transitions[domain.StatusCancelled],
		To:      domain.StatusCancelled,
	})
	if errors.Is(err, ErrNotFound) {
		s.report(l, AnomalyUnknownOrder, "order not found")
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: cancel order %s: %w", ErrInternal, orderID, err)
	}
	if !res.OrderChanged {
		l.Info("cancel ignored", "status", res.Order.Status)
		return OutcomeNoop, nil
	}

	l.Info("order marked as cancelled")
	s.afterTransition(ctx, res, trigger)
	return OutcomeApplied, nil
}

// MarkRefunded finds the order by its payment intent, cancels it and relists
// the product unless another order for it is paid.
func (s *Settlement) MarkRefunded(ctx context.Context, intentID string) (Outcome, error) {
	l := logging.FromCtx(ctx).With("intent_id", intentID, "trigger", TriggerRefunded)

	o, err := s.orders.GetByPaymentIntent(ctx, intentID)
	if errors.Is(err, ErrNotFound) {
		s.report(l, AnomalyUnknownOrder, "order not found for refund")
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: find order by intent %s: %w", ErrInternal, intentID, err)
	}
	l = l.With("order_id", o.ID)

	res, err := s.orders.Transition(ctx, Transition{
		OrderID: o.ID,
		From:    domain.RefundSources,
		To:      domain.StatusCancelled,
		Product: &ProductTransition{From: domain.ProductSold, To: domain.ProductActive, UnlessPaidElsewhere: true},
	})
	if errors.Is(err, ErrNotFound) {
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: refund order %s: %w", ErrInternal, o.ID, err)
	}
	if !res.OrderChanged {
		l.Info("refund already applied")
		return OutcomeNoop, nil
	}

	l.Info("order marked as cancelled due to refund", "product_relisted", res.ProductChanged)
	s.afterTransition(ctx, res, TriggerRefunded)
	return OutcomeApplied, nil
}

// afterTransition runs the best-effort side effects of an applied transition.
func (s *Settlement) afterTransition(ctx context.Context, res TransitionResult, trigger Trigger) {
	l := logging.FromCtx(ctx)
	o := res.Order
	if s.cache != nil {
		if err := s.cache.SetStatus(ctx, o.ID, string(o.Status)); err != nil {
			l.Warn("status cache update failed", "err", err)
		}
	}
	if s.pub != nil {
		msg := SettledMsg{
			OrderID:   o.ID,
			ProductID: o.ProductID,
			BuyerID:   o.BuyerID,
			SellerID:  o.SellerID,
			Status:    string(o.Status),
			Trigger:   string(trigger),
			Amount:    o.Amount.StringFixed(2),
			Currency:  o.Currency,

			ProductChanged: res.ProductChanged,
			At:             s.now().UTC(),
		}
		if err := s.pub.PublishSettled(ctx, msg); err != nil {
			l.Warn("publish settled event failed", "err", err)
		}
	}
}

func (s *Settlement) report(l *slog.Logger, kind, msg string, args ...any) {
	l.Warn(msg, append([]any{"anomaly", kind}, args...)...)
	if s.anomaly != nil {
		s.anomaly(kind)
	}
}
