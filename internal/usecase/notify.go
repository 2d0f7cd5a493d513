package usecase

import (
	"context"
	"fmt"

	"github.com/josepablo-design/marketplace/internal/logging"
)

const notifyScope = "settled-notice"

// Notifier posts a chat message into the buyer/seller conversation whenever an
// order settles.
type Notifier struct {
	convs    ConversationRepo
	idem     IdempotencyStore // optional
	senderID string
}

func NewNotifier(convs ConversationRepo, idem IdempotencyStore, senderID string) *Notifier {
	return &Notifier{convs: convs, idem: idem, senderID: senderID}
}

// HandleSettled is used with queue.JSONHandler[SettledMsg]. It posts at most
// one message per order and status.
func (n *Notifier) HandleSettled(ctx context.Context, msg SettledMsg) (err error) {
	key := msg.OrderID + ":" + msg.Status
	if n.idem != nil {
		ok, lerr := n.idem.TryLock(ctx, notifyScope, key)
		if lerr == nil && !ok {
			return nil
		}
		if lerr == nil {
			defer func() {
				if err != nil {
					rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
					defer cancel()
					if rerr := n.idem.Release(rctx, notifyScope, key); rerr != nil {
						logging.FromCtx(ctx).Warn("settlement notice release failed", "order_id", msg.OrderID, "err", rerr)
					}
				}
			}()
		}
	}

	convID, err := n.convs.FindOrCreateConversation(ctx, msg.ProductID, msg.BuyerID, msg.SellerID)
	if err != nil {
		return fmt.Errorf("find conversation: %w", err)
	}
	if err := n.convs.InsertMessage(ctx, convID, n.senderID, SettledText(msg)); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	logging.FromCtx(ctx).Info("settlement notice posted", "order_id", msg.OrderID, "conversation_id", convID)
	return nil
}

// SettledText renders the chat message for a settled order.
func SettledText(msg SettledMsg) string {
	switch {
	case msg.Status == "paid" && msg.ProductChanged:
		return fmt.Sprintf("Payment of %s %s received for order %s. The product is now sold.", msg.Amount, msg.Currency, msg.OrderID)
	case msg.Status == "paid":
		return fmt.Sprintf("Payment of %s %s received for order %s.", msg.Amount, msg.Currency, msg.OrderID)
	case msg.Trigger == string(TriggerRefunded) && msg.ProductChanged:
		return fmt.Sprintf("Order %s was refunded and cancelled. The product is listed again.", msg.OrderID)
	case msg.Trigger == string(TriggerRefunded):
		return fmt.Sprintf("Order %s was refunded and cancelled.", msg.OrderID)
	default:
		return fmt.Sprintf("Order %s was cancelled because the payment did not complete.", msg.OrderID)
	}
}
