package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	domain "github.com/josepablo-design/marketplace/internal/entity"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

const queryTimeout = 3 * time.Second

type OrderService interface {
	List(ctx context.Context, userID string, limit int) (usecase.OrderList, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	Status(ctx context.Context, id string) (domain.Status, error)
	Confirm(ctx context.Context, id string) (*domain.Order, error)
	Refund(ctx context.Context, id string, amount *decimal.Decimal) (usecase.RefundRecord, error)
}

type OrderHandler struct {
	orders OrderService
}

func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type orderResp struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"productId"`
	BuyerID          string    `json:"buyerId"`
	SellerID         string    `json:"sellerId"`
	Amount           float64   `json:"amount"`
	Currency         string    `json:"currency"`
	CommissionRate   float64   `json:"commissionRate"`
	CommissionAmount float64   `json:"commissionAmount"`
	PlatformFee      float64   `json:"platformFee"`
	SellerPayout     float64   `json:"sellerPayout"`
	Status           string    `json:"status"`
	PaymentIntentID  string    `json:"paymentIntentId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toOrderResp(o *domain.Order) orderResp {
	return orderResp{
		ID:               o.ID,
		ProductID:        o.ProductID,
		BuyerID:          o.BuyerID,
		SellerID:         o.SellerID,
		Amount:           o.Amount.InexactFloat64(),
		Currency:         o.Currency,
		CommissionRate:   o.CommissionRate.InexactFloat64(),
		CommissionAmount: o.CommissionAmount.InexactFloat64(),
		PlatformFee:      o.PlatformFee.InexactFloat64(),
		SellerPayout:     o.SellerPayout.InexactFloat64(),
		Status:           string(o.Status),
		PaymentIntentID:  o.PaymentIntentID,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// ListOrders: GET /api/orders?userId=&limit=
func (h *OrderHandler) ListOrders(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	list, err := h.orders.List(ctx, c.Query("userId"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]orderResp, 0, len(list.Orders))
	for _, o := range list.Orders {
		out = append(out, toOrderResp(o))
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":          out,
		"totalCommission": list.TotalCommission.InexactFloat64(),
	})
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	o, err := h.orders.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResp(o))
}

func (h *OrderHandler) GetOrderStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	id := c.Param("id")
	st, err := h.orders.Status(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": st})
}

// ConfirmOrder marks a pending order paid without a processor event.
func (h *OrderHandler) ConfirmOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	o, err := h.orders.Confirm(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResp(o))
}

type refundReq struct {
	Amount *float64 `json:"amount"`
}

func (h *OrderHandler) RefundOrder(c *gin.Context) {
	var req refundReq
	// the body is optional; no body refunds the full amount
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	var amount *decimal.Decimal
	if req.Amount != nil {
		d := decimal.NewFromFloat(*req.Amount)
		amount = &d
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkoutTimeout)
	defer cancel()

	rec, err := h.orders.Refund(ctx, c.Param("id"), amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, rec)
}
