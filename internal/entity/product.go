package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductActive ProductStatus = "active"
	ProductSold   ProductStatus = "sold"
)

// SellerCategory comes from profiles.seller_type and selects the commission rate.
type SellerCategory string

const (
	SellerArtist     SellerCategory = "artist"
	SellerStore      SellerCategory = "store"
	SellerIndividual SellerCategory = "individual"
)

var ErrInvalidProduct = errors.New("invalid product record")

type Product struct {
	ID             string
	SellerID       string
	Title          string
	Price          decimal.Decimal
	Currency       string
	Status         ProductStatus
	SellerCategory SellerCategory
}

// Purchasable reports whether checkout may start for the product.
func (p *Product) Purchasable() bool {
	return p.Status == ProductActive
}

func (p *Product) Validate() error {
	if p.ID == "" || p.SellerID == "" || p.Price.IsNegative() {
		return ErrInvalidProduct
	}
	switch p.Status {
	case ProductActive, ProductSold:
		return nil
	}
	return ErrInvalidProduct
}
