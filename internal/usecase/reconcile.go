package usecase

import (
	"context"
	"time"

	"github.com/josepablo-design/marketplace/internal/logging"
)

type ReconcileReport struct {
	Scanned   int `json:"scanned"`
	Paid      int `json:"paid"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Reconciler sweeps pending orders that outlived checkout: orders whose intent
// was never attached, and orders whose webhook never arrived.
type Reconciler struct {
	orders     OrderRepo
	gw         PaymentGateway
	settle     *Settlement
	staleAfter time.Duration
	batch      int
	now        func() time.Time
}

func NewReconciler(orders OrderRepo, gw PaymentGateway, settle *Settlement, staleAfter time.Duration, batch int) *Reconciler {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	if batch <= 0 {
		batch = 100
	}
	return &Reconciler{orders: orders, gw: gw, settle: settle, staleAfter: staleAfter, batch: batch, now: time.Now}
}

func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport
	l := logging.FromCtx(ctx).With("component", "reconciler")

	stale, err := r.orders.ListStalePending(ctx, r.now().Add(-r.staleAfter).UTC(), r.batch)
	if err != nil {
		return rep, err
	}

	for _, o := range stale {
		rep.Scanned++
		octx := logging.WithCtx(ctx, l.With("order_id", o.ID))

		if o.PaymentIntentID == "" {
			r.apply(octx, &rep, func() (Outcome, error) { return r.settle.Cancel(octx, o.ID) }, false)
			continue
		}

		intent, err := r.gw.GetIntent(octx, o.PaymentIntentID)
		if err != nil {
			l.Warn("intent lookup failed", "order_id", o.ID, "err", err)
			rep.Failed++
			continue
		}

		switch intent.Status {
		case IntentSucceeded:
			r.apply(octx, &rep, func() (Outcome, error) {
				return r.settle.MarkPaid(octx, o.ID, intent.ID, TriggerReconcile)
			}, true)
		case IntentCanceled:
			r.apply(octx, &rep, func() (Outcome, error) { return r.settle.Cancel(octx, o.ID) }, false)
		case IntentRequiresPaymentMethod, IntentRequiresConfirmation, IntentRequiresAction:
			// abandoned: close the intent first so it can no longer be paid
			if err := r.gw.CancelIntent(octx, intent.ID); err != nil {
				l.Warn("cancel intent failed", "order_id", o.ID, "err", err)
				rep.Failed++
				continue
			}
			r.apply(octx, &rep, func() (Outcome, error) { return r.settle.Cancel(octx, o.ID) }, false)
		default:
			rep.Skipped++
		}
	}

	l.Info("reconcile finished", "scanned", rep.Scanned, "paid", rep.Paid,
		"cancelled", rep.Cancelled, "skipped", rep.Skipped, "failed", rep.Failed)
	return rep, nil
}

func (r *Reconciler) apply(ctx context.Context, rep *ReconcileReport, f func() (Outcome, error), paid bool) {
	out, err := f()
	switch {
	case err != nil:
		logging.FromCtx(ctx).Error("reconcile transition failed", "err", err)
		rep.Failed++
	case out != OutcomeApplied:
		rep.Skipped++
	case paid:
		rep.Paid++
	default:
		rep.Cancelled++
	}
}

// Loop runs Run every interval until ctx is done. onReport may be nil.
func (r *Reconciler) Loop(ctx context.Context, interval time.Duration, onReport func(ReconcileReport)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rep, err := r.Run(ctx)
			if err != nil {
				logging.FromCtx(ctx).Error("reconcile run failed", "err", err)
				continue
			}
			if onReport != nil {
				onReport(rep)
			}
		}
	}
}
