package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josepablo-design/marketplace/configs"
)

func newSigner(t *testing.T, secrets ...string) WebhookSigner {
	t.Helper()
	var c configs.Config
	c.Stripe.WebhookSecrets = secrets
	k, err := LoadKeyring(c)
	require.NoError(t, err)
	s, err := NewWebhookSigner(k)
	require.NoError(t, err)
	return s
}

func TestWebhookSigner_SignMatchesHMAC(t *testing.T) {
	s := newSigner(t, "whsec_test")
	payload := []byte(`{"id":"evt_1"}`)
	at := time.Unix(1700000000, 0)

	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write([]byte("1700000000." + string(payload)))
	want := fmt.Sprintf("t=1700000000,v1=%s", hex.EncodeToString(mac.Sum(nil)))

	assert.Equal(t, want, s.Sign(payload, at))
}

func TestWebhookSigner_Verify(t *testing.T) {
	s := newSigner(t, "whsec_new", "whsec_old")
	old := newSigner(t, "whsec_old")
	stranger := newSigner(t, "whsec_other")
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Now()

	require.NoError(t, s.Verify(payload, s.Sign(payload, now)))
	// signed with the previous secret during rotation
	require.NoError(t, s.Verify(payload, old.Sign(payload, now)))

	tests := []struct {
		name   string
		body   []byte
		header string
	}{
		{"missing header", payload, ""},
		{"garbage header", payload, "nonsense"},
		{"wrong secret", payload, stranger.Sign(payload, now)},
		{"tampered body", []byte(`{"id":"evt_2"}`), s.Sign(payload, now)},
		{"outside tolerance", payload, s.Sign(payload, now.Add(-10*time.Minute))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Verify(tt.body, tt.header)
			require.ErrorIs(t, err, ErrBadSignature)
		})
	}
}

func TestLoadKeyring(t *testing.T) {
	var c configs.Config
	_, err := LoadKeyring(c)
	require.Error(t, err)

	c.Stripe.WebhookSecrets = []string{" ", "whsec_a"}
	k, err := LoadKeyring(c)
	require.NoError(t, err)
	assert.Equal(t, "whsec_a", k.Current())
	assert.Equal(t, DefaultTolerance, k.Tolerance)
}

func TestClientRegistry_Authenticate(t *testing.T) {
	r := NewClientRegistry([]configs.ClientConfig{
		{ID: "ops", Secret: "s3cret", Perms: []string{PermOrdersRead}},
		{ID: "off", Secret: "x", Disabled: true},
		{ID: "nosecret"},
	})

	c, ok := r.Authenticate("ops", "s3cret")
	require.True(t, ok)
	assert.Equal(t, []string{PermOrdersRead}, c.Perms)

	_, ok = r.Authenticate("ops", "wrong")
	assert.False(t, ok)
	_, ok = r.Authenticate("off", "x")
	assert.False(t, ok)
	_, ok = r.Authenticate("nosecret", "")
	assert.False(t, ok)
	_, ok = r.Authenticate("ghost", "x")
	assert.False(t, ok)
}

func TestVerifyWebhookSignature(t *testing.T) {
	s := newSigner(t, "whsec_test")
	payload := []byte(`{"id":"evt_1"}`)
	at := time.Unix(1700000000, 0)
	header := s.Sign(payload, at)

	require.NoError(t, VerifyWebhookSignature(payload, header, "whsec_test", 5*time.Minute, at.Add(4*time.Minute)))

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		now     time.Time
	}{
		{name: "stale", payload: payload, header: header, secret: "whsec_test", now: at.Add(6 * time.Minute)},
		{name: "from the future", payload: payload, header: header, secret: "whsec_test", now: at.Add(-6 * time.Minute)},
		{name: "wrong secret", payload: payload, header: header, secret: "whsec_other", now: at},
		{name: "tampered payload", payload: []byte(`{"id":"evt_2"}`), header: header, secret: "whsec_test", now: at},
		{name: "empty header", payload: payload, secret: "whsec_test", now: at},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyWebhookSignature(tt.payload, tt.header, tt.secret, 5*time.Minute, tt.now)
			require.ErrorIs(t, err, ErrBadSignature)
		})
	}
}

func TestOperatorClaims(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := NewOperatorClaims(Client{ID: "ops", Perms: []string{PermOrdersRead, PermOrdersRefund}}, "iss", "aud", now, 10*time.Minute)

	assert.Equal(t, "ops", c.Subject)
	assert.Equal(t, now.Add(10*time.Minute).Unix(), c.ExpiresAt.Unix())
	assert.True(t, c.Has(PermOrdersRead))
	assert.True(t, c.Has(PermOrdersRead, PermOrdersRefund))
	assert.False(t, c.Has(PermOrdersRead, PermOrdersConfirm))
	assert.True(t, c.Has())
}
