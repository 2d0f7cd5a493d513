package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josepablo-design/marketplace/internal/commission"
	domain "github.com/josepablo-design/marketplace/internal/entity"
	"github.com/josepablo-design/marketplace/internal/logging"
)

type CheckoutInput struct {
	ProductID, BuyerID, IdempotencyKey string
}

type CheckoutOutput struct {
	ClientSecret     string          `json:"clientSecret"`
	OrderID          string          `json:"orderId"`
	PaymentIntentID  string          `json:"paymentIntentId"`
	Currency         string          `json:"currency"`
	Amount           decimal.Decimal `json:"amount"`
	CommissionRate   decimal.Decimal `json:"commissionRate"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	SellerPayout     decimal.Decimal `json:"sellerPayout"`
}

type Checkout struct {
	products        ProductRepo
	orders          OrderRepo
	gw              PaymentGateway
	engine          *commission.Engine
	idem            IdempotencyStore // optional
	defaultCurrency string
	newID           func() string
	now             func() time.Time
}

func NewCheckout(products ProductRepo, orders OrderRepo, gw PaymentGateway, engine *commission.Engine, idem IdempotencyStore, defaultCurrency string) *Checkout {
	if defaultCurrency == "" {
		defaultCurrency = "ARS"
	}
	return &Checkout{
		products:        products,
		orders:          orders,
		gw:              gw,
		engine:          engine,
		idem:            idem,
		defaultCurrency: defaultCurrency,
		newID:           uuid.NewString,
		now:             time.Now,
	}
}

// Execute creates a pending order and a payment intent for it. A failure after
// the order insert leaves the order pending without an intent; the reconciler
// cancels those.
func (uc *Checkout) Execute(ctx context.Context, in CheckoutInput) (out CheckoutOutput, err error) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.BuyerID = strings.TrimSpace(in.BuyerID)
	if in.ProductID == "" || in.BuyerID == "" {
		return CheckoutOutput{}, fmt.Errorf("%w: missing required fields: productId, buyerId", ErrValidation)
	}

	scope := "checkout:" + in.BuyerID
	if in.IdempotencyKey != "" && uc.idem != nil {
		// Fast path: idempotency recall
		if raw, ok, _ := uc.idem.Recall(ctx, scope, in.IdempotencyKey); ok {
			var prev CheckoutOutput
			if json.Unmarshal([]byte(raw), &prev) == nil {
				return prev, nil
			}
		}
		ok, lerr := uc.idem.TryLock(ctx, scope, in.IdempotencyKey)
		if lerr != nil {
			return CheckoutOutput{}, fmt.Errorf("%w: idempotency lock: %w", ErrInternal, lerr)
		}
		if !ok {
			return CheckoutOutput{}, ErrDuplicate
		}
		defer func() {
			if err != nil {
				_ = uc.idem.Release(ctx, scope, in.IdempotencyKey)
				return
			}
			if b, merr := json.Marshal(out); merr == nil {
				_ = uc.idem.Remember(ctx, scope, in.IdempotencyKey, string(b))
			}
		}()
	}

	l := logging.FromCtx(ctx).With("product_id", in.ProductID, "buyer_id", in.BuyerID)

	p, err := uc.products.GetByID(ctx, in.ProductID)
	if errors.Is(err, ErrNotFound) {
		return CheckoutOutput{}, fmt.Errorf("%w: product %s", ErrNotFound, in.ProductID)
	}
	if err != nil {
		return CheckoutOutput{}, fmt.Errorf("%w: load product: %w", ErrInternal, err)
	}
	if !p.Purchasable() {
		return CheckoutOutput{}, fmt.Errorf("%w: product %s is not available", ErrNotFound, in.ProductID)
	}
	if p.SellerID == in.BuyerID {
		return CheckoutOutput{}, fmt.Errorf("%w: buyer cannot purchase own product", ErrValidation)
	}

	calc, err := uc.engine.Calculate(p.Price, p.SellerCategory)
	if err != nil {
		return CheckoutOutput{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	currency := p.Currency
	if currency == "" {
		currency = uc.defaultCurrency
	}
	now := uc.now().UTC()
	order := &domain.Order{
		ID:               uc.newID(),
		ProductID:        p.ID,
		BuyerID:          in.BuyerID,
		SellerID:         p.SellerID,
		Amount:           p.Price,
		Currency:         currency,
		CommissionRate:   calc.CommissionRate,
		CommissionAmount: calc.CommissionAmount,
		PlatformFee:      calc.PlatformFee,
		SellerPayout:     calc.SellerPayout,
		Status:           domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := order.Validate(); err != nil {
		return CheckoutOutput{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := uc.orders.Create(ctx, order); err != nil {
		return CheckoutOutput{}, fmt.Errorf("%w: create order: %w", ErrInternal, err)
	}
	l = l.With("order_id", order.ID)

	intent, err := uc.gw.CreateIntent(ctx, IntentRequest{
		AmountMinor: domain.ToMinorUnits(p.Price),
		Currency:    currency,
		OrderID:     order.ID,
		BuyerID:     in.BuyerID,
		SellerID:    p.SellerID,
		ProductID:   p.ID,
		Metadata: map[string]string{
			"productTitle":     p.Title,
			"commissionAmount": calc.CommissionAmount.StringFixed(2),
		},
	})
	if err != nil {
		l.Warn("payment intent failed, order left pending", "err", err)
		if !errors.Is(err, ErrGateway) {
			err = fmt.Errorf("%w: %w", ErrGateway, err)
		}
		return CheckoutOutput{}, err
	}

	attached, err := uc.orders.AttachPaymentIntent(ctx, order.ID, intent.ID)
	if err != nil {
		l.Error("attach payment intent failed", "intent_id", intent.ID, "err", err)
		return CheckoutOutput{}, fmt.Errorf("%w: attach payment intent: %w", ErrInternal, err)
	}
	if !attached {
		l.Warn("order already had a payment intent", "intent_id", intent.ID)
	}

	l.Info("checkout created", "intent_id", intent.ID, "amount", p.Price.StringFixed(2))
	return CheckoutOutput{
		ClientSecret:     intent.ClientSecret,
		OrderID:          order.ID,
		PaymentIntentID:  intent.ID,
		Currency:         currency,
		Amount:           p.Price,
		CommissionRate:   calc.CommissionRate,
		CommissionAmount: calc.CommissionAmount,
		SellerPayout:     calc.SellerPayout,
	}, nil
}
