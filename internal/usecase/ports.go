package usecase

import (
	"context"
	"time"

	domain "github.com/josepablo-design/marketplace/internal/entity"
)

type ProductRepo interface {
	// GetByID returns the product joined with its seller category, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// ProductTransition moves the product referenced by the order inside the same
// store transaction as the order transition.
type ProductTransition struct {
	From, To domain.ProductStatus
	// UnlessPaidElsewhere skips the product update when another order for the
	// same product is paid.
	UnlessPaidElsewhere bool
}

// Transition is a conditional "set status to To where status in From".
type Transition struct {
	OrderID string
	From    []domain.Status
	To      domain.Status
	// PaymentIntentID is stored only when the order has none yet.
	PaymentIntentID string
	Product         *ProductTransition
}

type TransitionResult struct {
	Order          *domain.Order // state after the transaction
	OrderChanged   bool
	ProductChanged bool
}

type OrderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error)
	// AttachPaymentIntent sets the intent id if it is still unset.
	AttachPaymentIntent(ctx context.Context, orderID, intentID string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Order, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Order, error)
	Transition(ctx context.Context, t Transition) (TransitionResult, error)
}

type ConversationRepo interface {
	FindOrCreateConversation(ctx context.Context, productID, buyerID, sellerID string) (string, error)
	InsertMessage(ctx context.Context, conversationID, senderID, content string) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID string, status string) error
	GetStatus(ctx context.Context, orderID string) (string, bool, error)
}

type SettlementPublisher interface {
	PublishSettled(ctx context.Context, msg SettledMsg) error
}

// IntentStatus mirrors the processor's payment intent status values.
type IntentStatus string

const (
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentRequiresCapture       IntentStatus = "requires_capture"
)

type IntentRequest struct {
	AmountMinor int64
	Currency    string
	OrderID     string
	BuyerID     string
	SellerID    string
	ProductID   string
	Metadata    map[string]string
}

type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       IntentStatus
}

type RefundRecord struct {
	ID       string `json:"id"`
	IntentID string `json:"paymentIntentId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	GetIntent(ctx context.Context, intentID string) (Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	// Refund refunds amountMinor, or the full amount when nil.
	Refund(ctx context.Context, intentID string, amountMinor *int64) (RefundRecord, error)
}

type WebhookVerifier interface {
	VerifyWebhook(raw []byte, signatureHeader string) (PaymentEvent, error)
}
