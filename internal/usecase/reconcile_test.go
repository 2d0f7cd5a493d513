package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/josepablo-design/marketplace/internal/entity"
)

func TestReconciler_Run(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-3 * time.Hour)

	store := newMemStore()
	store.addProduct(domain.Product{ID: "prod-1", SellerID: "s", Price: decimal.NewFromInt(10), Status: domain.ProductActive})
	add := func(id, intent string, created time.Time) {
		store.addOrder(domain.Order{
			ID: id, ProductID: "prod-1", BuyerID: "b", SellerID: "s", Amount: decimal.NewFromInt(10),
			Currency: "ARS", PaymentIntentID: intent, Status: domain.StatusPending, CreatedAt: created,
		})
	}
	add("orphan", "", old)
	add("paid", "pi_paid", old.Add(time.Minute))
	add("canceled", "pi_canceled", old.Add(2*time.Minute))
	add("abandoned", "pi_abandoned", old.Add(3*time.Minute))
	add("processing", "pi_processing", old.Add(4*time.Minute))
	add("lookup-fails", "pi_missing", old.Add(5*time.Minute))
	add("fresh", "pi_fresh", now.Add(-time.Minute))

	gw := newFakeGateway()
	gw.Intents["pi_paid"] = Intent{ID: "pi_paid", Status: IntentSucceeded}
	gw.Intents["pi_canceled"] = Intent{ID: "pi_canceled", Status: IntentCanceled}
	gw.Intents["pi_abandoned"] = Intent{ID: "pi_abandoned", Status: IntentRequiresPaymentMethod}
	gw.Intents["pi_processing"] = Intent{ID: "pi_processing", Status: IntentProcessing}
	gw.Intents["pi_fresh"] = Intent{ID: "pi_fresh", Status: IntentSucceeded}

	pub := &recordingPublisher{}
	r := NewReconciler(orderRepo{store}, gw, NewSettlement(orderRepo{store}, WithPublisher(pub)), time.Hour, 0)
	r.now = func() time.Time { return now }

	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReconcileReport{Scanned: 6, Paid: 1, Cancelled: 3, Skipped: 1, Failed: 1}, rep)

	assert.Equal(t, domain.StatusCancelled, store.order("orphan").Status)
	assert.Equal(t, domain.StatusPaid, store.order("paid").Status)
	assert.Equal(t, domain.StatusCancelled, store.order("canceled").Status)
	assert.Equal(t, domain.StatusCancelled, store.order("abandoned").Status)
	assert.Equal(t, domain.StatusPending, store.order("processing").Status)
	assert.Equal(t, domain.StatusPending, store.order("lookup-fails").Status)
	assert.Equal(t, domain.StatusPending, store.order("fresh").Status)
	assert.Equal(t, domain.ProductSold, store.product("prod-1").Status)

	assert.Equal(t, []string{"pi_abandoned"}, gw.CancelCalls)
	for _, m := range pub.Msgs {
		assert.Equal(t, string(TriggerReconcile), m.Trigger)
	}

	// a second pass finds only what is still pending and stale
	rep, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Scanned)
}

func TestReconciler_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.addOrder(domain.Order{ID: "o", ProductID: "p", Amount: decimal.NewFromInt(1), Status: domain.StatusPending})
	store.TransitionErr = ErrMockStore

	r := NewReconciler(orderRepo{store}, newFakeGateway(), NewSettlement(orderRepo{store}), time.Nanosecond, 10)
	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
}

func TestReconciler_LoopStopsWithContext(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(orderRepo{store}, newFakeGateway(), NewSettlement(orderRepo{store}), time.Hour, 10)

	ctx, cancel := context.WithCancel(context.Background())
	reports := make(chan ReconcileReport, 8)
	done := make(chan struct{})
	go func() {
		r.Loop(ctx, 5*time.Millisecond, func(rep ReconcileReport) { reports <- rep })
		close(done)
	}()

	select {
	case <-reports:
	case <-time.After(time.Second):
		t.Fatal("no reconcile report")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
