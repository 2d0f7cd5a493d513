package security

import (
	"errors"
	"strings"
	"time"

	"github.com/josepablo-design/marketplace/configs"
)

const DefaultTolerance = 5 * time.Minute

// Keyring holds the webhook signing secrets. The first secret is current; the
// rest are accepted while a rotation is in progress.
type Keyring struct {
	Secrets   []string
	Tolerance time.Duration
}

func LoadKeyring(c configs.Config) (*Keyring, error) {
	var secrets []string
	for _, s := range c.Stripe.WebhookSecrets {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) == 0 {
		return nil, errors.New("missing stripe.webhook_secrets")
	}
	tol := c.Stripe.WebhookTolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	return &Keyring{Secrets: secrets, Tolerance: tol}, nil
}

func (k *Keyring) Current() string { return k.Secrets[0] }
