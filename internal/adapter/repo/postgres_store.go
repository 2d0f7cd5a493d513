package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/josepablo-design/marketplace/internal/entity"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

// OpenPostgres connects a pgx pool, e.g. to the Supabase database the mobile
// app already uses.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// pgID normalizes a uuid key. A malformed id cannot match any row, so callers
// treat it as not found instead of letting the cast fail in the database.
func pgID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// PostgresStore implements the product, order and conversation ports on a
// pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// Products exposes the product lookup; its GetByID would clash with the order one.
func (s *PostgresStore) Products() usecase.ProductRepo { return pgProducts{s} }

type pgProducts struct{ s *PostgresStore }

func (p pgProducts) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	id, ok := pgID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var (
		prod             domain.Product
		status, category string
	)
	err := p.s.pool.QueryRow(ctx, `
SELECT p.id::text, p.seller_id::text, COALESCE(p.title,''), p.price, COALESCE(p.currency,''), p.status, COALESCE(pr.seller_type,'')
FROM products p LEFT JOIN profiles pr ON pr.id = p.seller_id
WHERE p.id = $1::uuid`, id).Scan(&prod.ID, &prod.SellerID, &prod.Title, &prod.Price, &prod.Currency, &status, &category)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toProduct(prod, status, category)
}

const pgOrderColumns = `id::text,product_id::text,buyer_id::text,seller_id::text,amount,currency,commission_rate,
commission_amount,platform_fee,seller_payout,status,stripe_payment_intent_id,created_at,updated_at`

func scanPgOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
		intent *string
	)
	err := row.Scan(&o.ID, &o.ProductID, &o.BuyerID, &o.SellerID, &o.Amount, &o.Currency,
		&o.CommissionRate, &o.CommissionAmount, &o.PlatformFee, &o.SellerPayout,
		&status, &intent, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w %q", o.ID, err, status)
	}
	o.Status = st
	if intent != nil {
		o.PaymentIntentID = *intent
	}
	return &o, nil
}

func (s *PostgresStore) Create(ctx context.Context, o *domain.Order) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO orders (id,product_id,buyer_id,seller_id,amount,currency,commission_rate,commission_amount,
platform_fee,seller_payout,status,stripe_payment_intent_id,created_at,updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.ProductID, o.BuyerID, o.SellerID, o.Amount, o.Currency, o.CommissionRate, o.CommissionAmount,
		o.PlatformFee, o.SellerPayout, string(o.Status), optString(o.PaymentIntentID), o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	return err
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	id, ok := pgID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return scanPgOrder(s.pool.QueryRow(ctx, `SELECT `+pgOrderColumns+` FROM orders WHERE id=$1::uuid`, id))
}

func (s *PostgresStore) GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	return scanPgOrder(s.pool.QueryRow(ctx, `SELECT `+pgOrderColumns+` FROM orders WHERE stripe_payment_intent_id=$1`, intentID))
}

func (s *PostgresStore) AttachPaymentIntent(ctx context.Context, orderID, intentID string) (bool, error) {
	orderID, ok := pgID(orderID)
	if !ok {
		return false, nil
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE orders SET stripe_payment_intent_id=$1, updated_at=$2
WHERE id=$3::uuid AND stripe_payment_intent_id IS NULL`, intentID, s.now().UTC(), orderID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Order, error) {
	userID, ok := pgID(userID)
	if !ok {
		return nil, nil
	}
	return s.list(ctx, `SELECT `+pgOrderColumns+` FROM orders
WHERE buyer_id=$1::uuid OR seller_id=$1::uuid ORDER BY created_at DESC LIMIT $2`, userID, limit)
}

func (s *PostgresStore) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Order, error) {
	return s.list(ctx, `SELECT `+pgOrderColumns+` FROM orders
WHERE status=$1 AND created_at < $2 ORDER BY created_at LIMIT $3`, string(domain.StatusPending), before.UTC(), limit)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanPgOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Transition(ctx context.Context, t usecase.Transition) (res usecase.TransitionResult, err error) {
	if len(t.From) == 0 {
		return res, fmt.Errorf("transition %s: no source status", t.OrderID)
	}
	orderID, ok := pgID(t.OrderID)
	if !ok {
		return res, ErrNotFound
	}
	from := make([]string, len(t.From))
	for i, st := range t.From {
		from[i] = string(st)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	now := s.now().UTC()

	tag, err := tx.Exec(ctx, `
UPDATE orders
SET status=$1, updated_at=$2, stripe_payment_intent_id=COALESCE(stripe_payment_intent_id, $3)
WHERE id=$4::uuid AND status = ANY($5)`, string(t.To), now, optString(t.PaymentIntentID), orderID, from)
	if err != nil {
		return res, err
	}
	res.OrderChanged = tag.RowsAffected() > 0

	res.Order, err = scanPgOrder(tx.QueryRow(ctx, `SELECT `+pgOrderColumns+` FROM orders WHERE id=$1::uuid`, orderID))
	if err != nil {
		return res, err
	}

	if res.OrderChanged && t.Product != nil {
		q := `UPDATE products SET status=$1, updated_at=$2 WHERE id=$3::uuid AND status=$4`
		args := []any{string(t.Product.To), now, res.Order.ProductID, string(t.Product.From)}
		if t.Product.UnlessPaidElsewhere {
			q += ` AND NOT EXISTS (SELECT 1 FROM orders WHERE product_id=$3::uuid AND status=$5 AND id<>$6::uuid)`
			args = append(args, string(domain.StatusPaid), res.Order.ID)
		}
		ptag, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return res, err
		}
		res.ProductChanged = ptag.RowsAffected() > 0
	}

	if err = tx.Commit(ctx); err != nil {
		return res, err
	}
	return res, nil
}

func (s *PostgresStore) FindOrCreateConversation(ctx context.Context, productID, buyerID, sellerID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
INSERT INTO conversations (id,product_id,buyer_id,seller_id,created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (product_id,buyer_id,seller_id) DO UPDATE SET product_id=EXCLUDED.product_id
RETURNING id::text`, uuid.NewString(), productID, buyerID, sellerID, s.now().UTC()).Scan(&id)
	return id, err
}

func (s *PostgresStore) InsertMessage(ctx context.Context, convID, senderID, content string) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO messages (id,conversation_id,sender_id,content,created_at) VALUES ($1,$2,$3,$4,$5)`,
		uuid.NewString(), convID, senderID, content, s.now().UTC())
	return err
}

var (
	_ usecase.OrderRepo        = (*PostgresStore)(nil)
	_ usecase.ConversationRepo = (*PostgresStore)(nil)
)
