package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/josepablo-design/marketplace/internal/logging"
	"github.com/josepablo-design/marketplace/internal/security"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

type Options struct {
	SecretKey string
	// APIURL overrides the processor endpoint (stripe-mock, tests).
	APIURL  string
	Timeout time.Duration
}

// StripeGateway talks to the payment processor and verifies its webhooks.
type StripeGateway struct {
	api    *client.API
	signer security.WebhookSigner
}

func NewStripeGateway(opt Options, signer security.WebhookSigner) *StripeGateway {
	if opt.Timeout <= 0 {
		opt.Timeout = 30 * time.Second
	}
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: opt.Timeout},
		LeveledLogger:     slogLeveled{l: logging.Base().With("component", "stripe")},
		MaxNetworkRetries: stripe.Int64(2),
	}
	if opt.APIURL != "" {
		cfg.URL = stripe.String(strings.TrimSuffix(opt.APIURL, "/"))
	}
	api := &client.API{}
	api.Init(opt.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackend(stripe.ConnectBackend),
		Uploads: stripe.GetBackend(stripe.UploadsBackend),
	})
	return &StripeGateway{api: api, signer: signer}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req usecase.IntentRequest) (usecase.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	// a retried checkout for the same order must not create a second intent
	params.SetIdempotencyKey("order-" + req.OrderID)
	params.AddMetadata(MetaOrderID, req.OrderID)
	params.AddMetadata("buyerId", req.BuyerID)
	params.AddMetadata("sellerId", req.SellerID)
	params.AddMetadata("productId", req.ProductID)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return usecase.Intent{}, gatewayErr("create payment intent", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, intentID string) (usecase.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return usecase.Intent{}, gatewayErr("get payment intent", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	if _, err := g.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return gatewayErr("cancel payment intent", err)
	}
	return nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, amountMinor *int64) (usecase.RefundRecord, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	if amountMinor != nil {
		params.Amount = stripe.Int64(*amountMinor)
	}
	params.Context = ctx
	r, err := g.api.Refunds.New(params)
	if err != nil {
		return usecase.RefundRecord{}, gatewayErr("create refund", err)
	}
	return usecase.RefundRecord{
		ID:       r.ID,
		IntentID: intentID,
		Amount:   r.Amount,
		Currency: strings.ToUpper(string(r.Currency)),
		Status:   string(r.Status),
	}, nil
}

// VerifyWebhook checks the signature header against the raw body and decodes
// the event.
func (g *StripeGateway) VerifyWebhook(raw []byte, signatureHeader string) (usecase.PaymentEvent, error) {
	if err := g.signer.Verify(raw, signatureHeader); err != nil {
		return usecase.PaymentEvent{}, fmt.Errorf("%w: %w", usecase.ErrInvalidSignature, err)
	}
	ev, err := ParseEvent(raw)
	if err != nil {
		return usecase.PaymentEvent{}, fmt.Errorf("%w: %w", usecase.ErrInvalidSignature, err)
	}
	return ev, nil
}

func toIntent(pi *stripe.PaymentIntent) usecase.Intent {
	return usecase.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		Status:       usecase.IntentStatus(pi.Status),
	}
}

// gatewayErr keeps processor detail in the chain for logs; handlers only
// expose the generic message.
func gatewayErr(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Errorf("%w: %s: %s (%s, status %d, request %s)", usecase.ErrGateway, op, se.Msg, se.Code, se.HTTPStatusCode, se.RequestID)
	}
	return fmt.Errorf("%w: %s: %w", usecase.ErrGateway, op, err)
}

// slogLeveled routes the client's own logging through slog.
type slogLeveled struct{ l *slog.Logger }

func (s slogLeveled) Debugf(format string, v ...interface{}) { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s slogLeveled) Infof(format string, v ...interface{})  { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s slogLeveled) Warnf(format string, v ...interface{})  { s.l.Warn(fmt.Sprintf(format, v...)) }
func (s slogLeveled) Errorf(format string, v ...interface{}) { s.l.Error(fmt.Sprintf(format, v...)) }

var (
	_ usecase.PaymentGateway  = (*StripeGateway)(nil)
	_ usecase.WebhookVerifier = (*StripeGateway)(nil)
)
