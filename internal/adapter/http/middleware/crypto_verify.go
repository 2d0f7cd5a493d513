package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/josepablo-design/marketplace/internal/logging"
	"github.com/josepablo-design/marketplace/internal/security"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

const (
	eventKey        = "payment_event"
	maxWebhookBytes = 1 << 20 // 1MB
	SignatureHeader = "Stripe-Signature"
)

// WebhookVerify authenticates processor webhooks on the raw request bytes
// before anything parses them.
type WebhookVerify struct {
	verifier usecase.WebhookVerifier
	signer   security.WebhookSigner
}

func NewWebhookVerify(v usecase.WebhookVerifier, signer security.WebhookSigner) *WebhookVerify {
	return &WebhookVerify{verifier: v, signer: signer}
}

func (wv *WebhookVerify) Verify() gin.HandlerFunc {
	return func(c *gin.Context) {
		// --- Read raw body ---
		rawBody, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to read request body"})
			return
		}
		defer c.Request.Body.Close()

		// --- Verify signature, then decode ---
		ev, err := wv.verifier.VerifyWebhook(rawBody, c.GetHeader(SignatureHeader))
		if err != nil {
			logging.From(c).Warn("webhook rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}

		c.Set(eventKey, ev)
		c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))
		c.Next()
	}
}

// EventFrom returns the event stored by Verify.
func EventFrom(c *gin.Context) (usecase.PaymentEvent, bool) {
	v, ok := c.Get(eventKey)
	if !ok {
		return usecase.PaymentEvent{}, false
	}
	ev, ok := v.(usecase.PaymentEvent)
	return ev, ok
}

// SignWebhook body: raw event JSON - returns: { header: "t=...,v1=..." }
// Dev only; lets a local client exercise the webhook endpoint.
func (wv *WebhookVerify) SignWebhook() gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil || len(payload) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"header":     wv.signer.Sign(payload, time.Now()),
			"headerName": SignatureHeader,
		})
	}
}
