package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/josepablo-design/marketplace/internal/commission"
	domain "github.com/josepablo-design/marketplace/internal/entity"
	"github.com/josepablo-design/marketplace/internal/logging"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Orders serves order queries and the operator actions on a single order.
type Orders struct {
	repo          OrderRepo
	cache         OrderCache // optional
	gw            PaymentGateway
	settle        *Settlement
	manualConfirm bool
}

func NewOrders(repo OrderRepo, cache OrderCache, gw PaymentGateway, settle *Settlement, allowManualConfirm bool) *Orders {
	return &Orders{repo: repo, cache: cache, gw: gw, settle: settle, manualConfirm: allowManualConfirm}
}

type OrderList struct {
	Orders          []*domain.Order
	TotalCommission decimal.Decimal
}

// List returns the orders where userID is buyer or seller, newest first.
func (uc *Orders) List(ctx context.Context, userID string, limit int) (OrderList, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderList{}, fmt.Errorf("%w: userId required", ErrValidation)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	list, err := uc.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return OrderList{}, fmt.Errorf("%w: list orders: %w", ErrInternal, err)
	}
	return OrderList{Orders: list, TotalCommission: commission.TotalCommission(list)}, nil
}

func (uc *Orders) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := uc.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load order: %w", ErrInternal, err)
	}
	return o, nil
}

// Status reads the status cache first and falls back to the store.
func (uc *Orders) Status(ctx context.Context, id string) (domain.Status, error) {
	if uc.cache != nil {
		if s, ok, err := uc.cache.GetStatus(ctx, id); err == nil && ok {
			if st, perr := domain.ParseStatus(s); perr == nil {
				return st, nil
			}
		}
	}
	o, err := uc.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if uc.cache != nil {
		_ = uc.cache.SetStatus(ctx, o.ID, string(o.Status))
	}
	return o.Status, nil
}

// Confirm marks an order paid without a processor event. Only enabled for
// demo deployments where payments are simulated.
func (uc *Orders) Confirm(ctx context.Context, id string) (*domain.Order, error) {
	if !uc.manualConfirm {
		return nil, fmt.Errorf("%w: manual confirmation", ErrForbidden)
	}
	out, err := uc.settle.MarkPaid(ctx, id, "", TriggerManualConfirm)
	if err != nil {
		return nil, err
	}
	if out == OutcomeNotFound {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	o, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.StatusPaid {
		return nil, fmt.Errorf("%w: order is %s", ErrConflict, o.Status)
	}
	return o, nil
}

// Refund asks the processor to refund a paid order. The order itself changes
// when the charge.refunded event arrives.
func (uc *Orders) Refund(ctx context.Context, id string, amount *decimal.Decimal) (RefundRecord, error) {
	o, err := uc.Get(ctx, id)
	if err != nil {
		return RefundRecord{}, err
	}
	if o.Status != domain.StatusPaid {
		return RefundRecord{}, fmt.Errorf("%w: order is %s", ErrConflict, o.Status)
	}
	if o.PaymentIntentID == "" {
		return RefundRecord{}, fmt.Errorf("%w: order has no payment intent", ErrConflict)
	}

	var minor *int64
	if amount != nil {
		if !amount.IsPositive() || amount.GreaterThan(o.Amount) {
			return RefundRecord{}, fmt.Errorf("%w: refund amount must be within (0, %s]", ErrValidation, o.Amount.StringFixed(2))
		}
		m := domain.ToMinorUnits(*amount)
		if m < 1 {
			return RefundRecord{}, fmt.Errorf("%w: refund amount is below the smallest currency unit", ErrValidation)
		}
		minor = &m
	}

	rec, err := uc.gw.Refund(ctx, o.PaymentIntentID, minor)
	if err != nil {
		if !errors.Is(err, ErrGateway) {
			err = fmt.Errorf("%w: %w", ErrGateway, err)
		}
		return RefundRecord{}, err
	}
	logging.FromCtx(ctx).Info("refund requested", "order_id", o.ID, "refund_id", rec.ID, "amount", rec.Amount)
	return rec, nil
}
