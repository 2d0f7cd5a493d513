package usecase

import "time"

// Processor event types the settlement reacts to.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
)

// PaymentEvent is a verified processor event reduced to what settlement needs.
type PaymentEvent struct {
	ID       string
	Type     string
	Created  time.Time
	IntentID string // for charges: the charge's payment intent
	ChargeID string
	OrderID  string // metadata.orderId; empty when missing
}

// Published on RabbitMQ after a transition was applied
type SettledMsg struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	BuyerID   string `json:"buyerId"`
	SellerID  string `json:"sellerId"`
	Status    string `json:"status"`
	Trigger   string `json:"trigger"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	// ProductChanged reports whether the product status moved with the order.
	ProductChanged bool      `json:"productChanged"`
	At             time.Time `json:"at"`
}
