// Package commission computes the platform fee and seller payout for an order.
package commission

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	domain "github.com/josepablo-design/marketplace/internal/entity"
)

var ErrInvalidRate = errors.New("commission rate must be within [0,1]")

// Config holds the default rate and optional per-category overrides.
type Config struct {
	DefaultRate decimal.Decimal
	Overrides   map[domain.SellerCategory]decimal.Decimal
}

// DefaultConfig charges 10% for every seller category.
func DefaultConfig() Config {
	ten := decimal.RequireFromString("0.10")
	return Config{
		DefaultRate: ten,
		Overrides: map[domain.SellerCategory]decimal.Decimal{
			domain.SellerArtist:     ten,
			domain.SellerStore:      ten,
			domain.SellerIndividual: ten,
		},
	}
}

// Calculation is recomputed on demand and never persisted as such.
type Calculation struct {
	OrderAmount      decimal.Decimal `json:"orderAmount"`
	CommissionRate   decimal.Decimal `json:"commissionRate"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	PlatformFee      decimal.Decimal `json:"platformFee"`
	SellerPayout     decimal.Decimal `json:"sellerPayout"`
}

type Engine struct {
	cfg Config
}

func New(cfg Config) (*Engine, error) {
	if !validRate(cfg.DefaultRate) {
		return nil, fmt.Errorf("default: %w", ErrInvalidRate)
	}
	for cat, r := range cfg.Overrides {
		if !validRate(r) {
			return nil, fmt.Errorf("%s: %w", cat, ErrInvalidRate)
		}
	}
	return &Engine{cfg: cfg}, nil
}

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThanOrEqual(decimal.NewFromInt(1))
}

// Rate resolves the category override, falling back to the default rate for
// categories without one (including unknown categories).
func (e *Engine) Rate(cat domain.SellerCategory) decimal.Decimal {
	if r, ok := e.cfg.Overrides[cat]; ok {
		return r
	}
	return e.cfg.DefaultRate
}

// Calculate returns the breakdown for amount. Monetary outputs are rounded to
// two places and commission + payout always equals the rounded amount.
func (e *Engine) Calculate(amount decimal.Decimal, cat domain.SellerCategory) (Calculation, error) {
	if amount.IsNegative() {
		return Calculation{}, domain.ErrInvalidAmount
	}
	rate := e.Rate(cat)
	total := amount.Round(2)
	fee := amount.Mul(rate).Round(2)

	return Calculation{
		OrderAmount:      amount,
		CommissionRate:   rate,
		CommissionAmount: fee,
		PlatformFee:      fee,
		SellerPayout:     total.Sub(fee),
	}, nil
}

// CalculateFloat is Calculate for callers holding a float amount.
func (e *Engine) CalculateFloat(amount float64, cat domain.SellerCategory) (Calculation, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Calculation{}, domain.ErrInvalidAmount
	}
	return e.Calculate(decimal.NewFromFloat(amount), cat)
}

// TotalCommission sums the stored commission of the given orders.
func TotalCommission(orders []*domain.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.CommissionAmount)
	}
	return total
}
