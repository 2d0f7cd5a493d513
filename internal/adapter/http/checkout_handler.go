package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/josepablo-design/marketplace/internal/adapter/observ"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

const (
	checkoutTimeout  = 15 * time.Second
	maxCheckoutBytes = 64 << 10
)

type Checkouter interface {
	Execute(ctx context.Context, in usecase.CheckoutInput) (usecase.CheckoutOutput, error)
}

type CheckoutHandler struct {
	uc Checkouter
}

func NewCheckoutHandler(uc Checkouter) *CheckoutHandler {
	return &CheckoutHandler{uc: uc}
}

type checkoutReq struct {
	ProductID string `json:"productId"`
	BuyerID   string `json:"buyerId"`
}

type checkoutResp struct {
	ClientSecret     string  `json:"clientSecret"`
	OrderID          string  `json:"orderId"`
	PaymentIntentID  string  `json:"paymentIntentId"`
	Currency         string  `json:"currency"`
	Amount           float64 `json:"amount"`
	CommissionRate   float64 `json:"commissionRate"`
	CommissionAmount float64 `json:"commissionAmount"`
	SellerPayout     float64 `json:"sellerPayout"`
}

// CreatePaymentIntent starts checkout for a product: POST /api/create-payment-intent
func (h *CheckoutHandler) CreatePaymentIntent(c *gin.Context) {
	var req checkoutReq
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCheckoutBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		observ.Checkout("validation")
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkoutTimeout)
	defer cancel()

	out, err := h.uc.Execute(ctx, usecase.CheckoutInput{
		ProductID:      req.ProductID,
		BuyerID:        req.BuyerID,
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"),
	})
	if err != nil {
		observ.Checkout(errorKind(err))
		writeError(c, err)
		return
	}
	observ.Checkout("ok")

	c.JSON(http.StatusOK, checkoutResp{
		ClientSecret:     out.ClientSecret,
		OrderID:          out.OrderID,
		PaymentIntentID:  out.PaymentIntentID,
		Currency:         out.Currency,
		Amount:           out.Amount.InexactFloat64(),
		CommissionRate:   out.CommissionRate.InexactFloat64(),
		CommissionAmount: out.CommissionAmount.InexactFloat64(),
		SellerPayout:     out.SellerPayout.InexactFloat64(),
	})
}
