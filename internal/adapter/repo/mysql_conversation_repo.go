package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/josepablo-design/marketplace/internal/usecase"
)

// MySQLConversationRepo writes into the buyer/seller chat tables the mobile
// app reads.
type MySQLConversationRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLConversationRepo(db *sql.DB) *MySQLConversationRepo {
	return &MySQLConversationRepo{db: db, now: time.Now}
}

func (r *MySQLConversationRepo) FindOrCreateConversation(ctx context.Context, productID, buyerID, sellerID string) (string, error) {
	id, err := r.find(ctx, productID, buyerID, sellerID)
	if err == nil || !errors.Is(err, sql.ErrNoRows) {
		return id, err
	}

	id = uuid.NewString()
	_, ierr := r.db.ExecContext(ctx, `
INSERT INTO conversations (id,product_id,buyer_id,seller_id,created_at)
VALUES (?,?,?,?,?)
`, id, productID, buyerID, sellerID, r.now().UTC())
	if ierr == nil {
		return id, nil
	}
	// lost a race against the unique key; the winner's row is there now
	if existing, err := r.find(ctx, productID, buyerID, sellerID); err == nil {
		return existing, nil
	}
	return "", ierr
}

func (r *MySQLConversationRepo) find(ctx context.Context, productID, buyerID, sellerID string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
SELECT id FROM conversations WHERE product_id=? AND buyer_id=? AND seller_id=? LIMIT 1`,
		productID, buyerID, sellerID).Scan(&id)
	return id, err
}

func (r *MySQLConversationRepo) InsertMessage(ctx context.Context, convID, senderID, content string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO messages (id,conversation_id,sender_id,content,created_at)
VALUES (?,?,?,?,?)
`, uuid.NewString(), convID, senderID, content, r.now().UTC())
	return err
}

var _ usecase.ConversationRepo = (*MySQLConversationRepo)(nil)
