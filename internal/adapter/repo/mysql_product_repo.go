package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/josepablo-design/marketplace/internal/entity"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

type MySQLProductRepo struct{ db *sql.DB }

func NewMySQLProductRepo(db *sql.DB) *MySQLProductRepo { return &MySQLProductRepo{db: db} }

// GetByID loads a product with its seller's category. Rows that do not form a
// valid product are rejected here instead of reaching checkout.
func (r *MySQLProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT p.id, p.seller_id, COALESCE(p.title,''), p.price, COALESCE(p.currency,''), p.status, COALESCE(pr.seller_type,'')
FROM products p LEFT JOIN profiles pr ON pr.id = p.seller_id
WHERE p.id=?`, id)

	var (
		p        domain.Product
		status   string
		category string
	)
	err := row.Scan(&p.ID, &p.SellerID, &p.Title, &p.Price, &p.Currency, &status, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toProduct(p, status, category)
}

func toProduct(p domain.Product, status, category string) (*domain.Product, error) {
	p.Status = domain.ProductStatus(status)
	p.SellerCategory = domain.SellerCategory(category)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("product %s: %w", p.ID, err)
	}
	return &p, nil
}

var _ usecase.ProductRepo = (*MySQLProductRepo)(nil)
