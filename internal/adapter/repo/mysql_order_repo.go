package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/josepablo-design/marketplace/internal/entity"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

var ErrNotFound = usecase.ErrNotFound

// MySQLOrderRepo stores orders through database/sql. The statements stay within
// the dialect MySQL and SQLite share, so tests run against an in-memory SQLite.
type MySQLOrderRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo {
	return &MySQLOrderRepo{db: db, now: time.Now}
}

const orderColumns = `id,product_id,buyer_id,seller_id,amount,currency,commission_rate,commission_amount,
platform_fee,seller_payout,status,stripe_payment_intent_id,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
		intent sql.NullString
	)
	err := row.Scan(&o.ID, &o.ProductID, &o.BuyerID, &o.SellerID, &o.Amount, &o.Currency,
		&o.CommissionRate, &o.CommissionAmount, &o.PlatformFee, &o.SellerPayout,
		&status, &intent, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w %q", o.ID, err, status)
	}
	o.Status = st
	o.PaymentIntentID = intent.String
	return &o, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *MySQLOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO orders (`+orderColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
`, o.ID, o.ProductID, o.BuyerID, o.SellerID, o.Amount, o.Currency, o.CommissionRate, o.CommissionAmount,
		o.PlatformFee, o.SellerPayout, string(o.Status), nullable(o.PaymentIntentID), o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	return err
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE id=?`, id)
}

func (r *MySQLOrderRepo) GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	return r.getOne(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE stripe_payment_intent_id=?`, intentID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *MySQLOrderRepo) getOne(ctx context.Context, q queryer, query string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

// AttachPaymentIntent sets the intent id unless the order already has one.
func (r *MySQLOrderRepo) AttachPaymentIntent(ctx context.Context, orderID, intentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET stripe_payment_intent_id = ?, updated_at = ?
        WHERE id = ? AND stripe_payment_intent_id IS NULL`,
		intentID, r.now().UTC(), orderID,
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *MySQLOrderRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
WHERE buyer_id=? OR seller_id=? ORDER BY created_at DESC LIMIT ?`, userID, userID, limit)
}

func (r *MySQLOrderRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
WHERE status=? AND created_at < ? ORDER BY created_at LIMIT ?`, string(domain.StatusPending), before.UTC(), limit)
}

func (r *MySQLOrderRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Transition applies the conditional status update and the optional product
// update in one transaction. A status outside t.From leaves both untouched.
func (r *MySQLOrderRepo) Transition(ctx context.Context, t usecase.Transition) (res usecase.TransitionResult, err error) {
	if len(t.From) == 0 {
		return res, fmt.Errorf("transition %s: no source status", t.OrderID)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	now := r.now().UTC()

	args := []any{string(t.To), now, nullable(t.PaymentIntentID), t.OrderID}
	for _, s := range t.From {
		args = append(args, string(s))
	}
	upd, err := tx.ExecContext(ctx, `
        UPDATE orders
        SET status = ?, updated_at = ?, stripe_payment_intent_id = COALESCE(stripe_payment_intent_id, ?)
        WHERE id = ? AND status IN (`+placeholders(len(t.From))+`)`, args...)
	if err != nil {
		return res, err
	}
	n, err := upd.RowsAffected()
	if err != nil {
		return res, err
	}
	res.OrderChanged = n > 0

	res.Order, err = r.getOne(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE id=?`, t.OrderID)
	if err != nil {
		return res, err
	}

	if res.OrderChanged && t.Product != nil {
		q := `UPDATE products SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
		pargs := []any{string(t.Product.To), now, res.Order.ProductID, string(t.Product.From)}
		if t.Product.UnlessPaidElsewhere {
			q += ` AND NOT EXISTS (SELECT 1 FROM orders WHERE product_id = ? AND status = ? AND id <> ?)`
			pargs = append(pargs, res.Order.ProductID, string(domain.StatusPaid), res.Order.ID)
		}
		pu, err := tx.ExecContext(ctx, q, pargs...)
		if err != nil {
			return res, err
		}
		pn, err := pu.RowsAffected()
		if err != nil {
			return res, err
		}
		res.ProductChanged = pn > 0
	}

	if err = tx.Commit(); err != nil {
		return res, err
	}
	return res, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
