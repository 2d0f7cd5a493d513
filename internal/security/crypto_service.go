package security

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrBadSignature = errors.New("invalid webhook signature")

// WebhookSigner signs and verifies processor webhook payloads. The header has
// the form "t=<unix>,v1=<hex hmac-sha256(secret, t + "." + payload)>".
type WebhookSigner interface {
	Sign(payload []byte, at time.Time) string
	Verify(payload []byte, header string) error
}

type webhookSigner struct {
	keys *Keyring
}

func NewWebhookSigner(k *Keyring) (WebhookSigner, error) {
	if k == nil || len(k.Secrets) == 0 {
		return nil, errors.New("webhook keyring is empty")
	}
	return &webhookSigner{keys: k}, nil
}

func (s *webhookSigner) Sign(payload []byte, at time.Time) string {
	sig := webhook.ComputeSignature(at, payload, s.keys.Current())
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

// Verify accepts the payload if any secret in the keyring produced one of the
// header's v1 signatures within the tolerance window.
func (s *webhookSigner) Verify(payload []byte, header string) error {
	if header == "" {
		return fmt.Errorf("%w: %w", ErrBadSignature, webhook.ErrNotSigned)
	}
	var last error
	for _, secret := range s.keys.Secrets {
		err := webhook.ValidatePayloadWithTolerance(payload, header, secret, s.keys.Tolerance)
		if err == nil {
			return nil
		}
		// header problems do not depend on the secret
		if errors.Is(err, webhook.ErrInvalidHeader) || errors.Is(err, webhook.ErrNotSigned) || errors.Is(err, webhook.ErrTooOld) {
			return fmt.Errorf("%w: %w", ErrBadSignature, err)
		}
		last = err
	}
	return fmt.Errorf("%w: %w", ErrBadSignature, last)
}

// VerifyWebhookSignature checks header against a single secret, judging the
// timestamp against now instead of the wall clock.
func VerifyWebhookSignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return fmt.Errorf("%w: %w", ErrBadSignature, webhook.ErrNotSigned)
	}
	if err := webhook.ValidatePayloadIgnoringTolerance(payload, header, secret); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	at, err := signedAt(header)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	if d := now.Sub(at); d > tolerance || d < -tolerance {
		return fmt.Errorf("%w: %w", ErrBadSignature, webhook.ErrTooOld)
	}
	return nil
}

func signedAt(header string) (time.Time, error) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && k == "t" {
			sec, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return time.Time{}, webhook.ErrInvalidHeader
			}
			return time.Unix(sec, 0), nil
		}
	}
	return time.Time{}, webhook.ErrInvalidHeader
}
