package queue

import (
	"context"
	"fmt"

	"github.com/josepablo-design/marketplace/internal/usecase"
)

type SettledNotifier interface {
	HandleSettled(ctx context.Context, msg usecase.SettledMsg) error
}

// SettledHandler turns order.settled messages into conversation notices.
type SettledHandler struct {
	n SettledNotifier
}

func NewSettledHandler(n SettledNotifier) *SettledHandler {
	return &SettledHandler{n: n}
}

func (h *SettledHandler) HandleSettled(ctx context.Context, msg usecase.SettledMsg) error {
	if msg.OrderID == "" || msg.Status == "" {
		return fmt.Errorf("%w: settled message without orderId/status", ErrPoison)
	}
	return h.n.HandleSettled(ctx, msg)
}

// JSON returns the delivery handler to register on the notify queue.
func (h *SettledHandler) JSON() Handler {
	return JSONHandler[usecase.SettledMsg]{HandleFunc: h.HandleSettled}
}
