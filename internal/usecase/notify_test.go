package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_PostsOncePerStatus(t *testing.T) {
	convs := &memConversations{}
	n := NewNotifier(convs, newMemIdem(), "system")
	ctx := context.Background()
	msg := SettledMsg{OrderID: "o1", ProductID: "p1", BuyerID: "b1", SellerID: "s1", Status: "paid", Trigger: string(TriggerPaymentSucceeded), Amount: "1000.00", Currency: "ARS"}

	require.NoError(t, n.HandleSettled(ctx, msg))
	require.NoError(t, n.HandleSettled(ctx, msg))
	require.Len(t, convs.Messages, 1)
	assert.Equal(t, "conv-p1|system|Payment of 1000.00 ARS received for order o1. The product is now sold.", convs.Messages[0])

	msg.Status = "cancelled"
	msg.Trigger = string(TriggerRefunded)
	require.NoError(t, n.HandleSettled(ctx, msg))
	require.Len(t, convs.Messages, 2)
	assert.Contains(t, convs.Messages[1], "refunded")
}

func TestNotifier_FailureAllowsRetry(t *testing.T) {
	convs := &memConversations{Err: ErrMockStore}
	n := NewNotifier(convs, newMemIdem(), "system")
	ctx := context.Background()
	msg := SettledMsg{OrderID: "o1", ProductID: "p1", Status: "cancelled", Trigger: string(TriggerPaymentFailed)}

	require.ErrorIs(t, n.HandleSettled(ctx, msg), ErrMockStore)

	convs.Err = nil
	require.NoError(t, n.HandleSettled(ctx, msg))
	require.Len(t, convs.Messages, 1)
	assert.Contains(t, convs.Messages[0], "did not complete")
}

func TestSettledText(t *testing.T) {
	assert.Contains(t, SettledText(SettledMsg{OrderID: "o", Status: "paid", Amount: "5.00", Currency: "USD"}), "5.00 USD")
	assert.Contains(t, SettledText(SettledMsg{OrderID: "o", Status: "cancelled", Trigger: string(TriggerReconcile)}), "cancelled")

	relisted := SettledText(SettledMsg{OrderID: "o", Status: "cancelled", Trigger: string(TriggerRefunded), ProductChanged: true})
	assert.Contains(t, relisted, "listed again")
	kept := SettledText(SettledMsg{OrderID: "o", Status: "cancelled", Trigger: string(TriggerRefunded)})
	assert.Contains(t, kept, "refunded")
	assert.NotContains(t, kept, "listed again")

	assert.Contains(t, SettledText(SettledMsg{OrderID: "o", Status: "paid", ProductChanged: true}), "now sold")
	assert.NotContains(t, SettledText(SettledMsg{OrderID: "o", Status: "paid"}), "now sold")
}
