package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrUnknownStatus = errors.New("unknown status")
)

// ParseStatus validates a status value read from the store.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusPaid, StatusCancelled:
		return st, nil
	}
	return "", ErrUnknownStatus
}

// Order is created once at checkout and afterwards only moved between statuses.
// Amount and the commission breakdown never change after creation.
type Order struct {
	ID        string
	ProductID string
	BuyerID   string
	SellerID  string

	Amount           decimal.Decimal
	Currency         string
	CommissionRate   decimal.Decimal
	CommissionAmount decimal.Decimal
	PlatformFee      decimal.Decimal
	SellerPayout     decimal.Decimal

	// PaymentIntentID is empty until the gateway intent has been attached.
	PaymentIntentID string
	Status          Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) Validate() error {
	if o.Amount.IsNegative() || o.Currency == "" {
		return ErrInvalidAmount
	}
	if o.CommissionAmount.IsNegative() || o.SellerPayout.IsNegative() || o.PlatformFee.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Transitions lists, per target status, the statuses an order may be moved from.
// paid -> cancelled is only reachable through a refund, see RefundSources.
var Transitions = map[Status][]Status{
	StatusPaid:      {StatusPending},
	StatusCancelled: {StatusPending},
}

// RefundSources are the statuses a refund may cancel. A refund can overtake the
// succeeded event, so pending is accepted as well.
var RefundSources = []Status{StatusPaid, StatusPending}

// CanTransition reports whether from -> to is allowed outside of refunds.
func CanTransition(from, to Status) bool {
	for _, s := range Transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}
