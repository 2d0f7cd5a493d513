package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_LayersBaseEnvFileAndVariables(t *testing.T) {
	t.Setenv("MARKETPLACE_STORE__DSN", "postgres://u:p@db/app")
	t.Setenv("MARKETPLACE_STORE__DRIVER", "postgres")
	t.Setenv("MARKETPLACE_STRIPE__WEBHOOK_SECRETS", "whsec_new,whsec_old")

	cfg, err := Load(".", "dev")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://u:p@db/app", cfg.Store.DSN)
	assert.Equal(t, []string{"whsec_new", "whsec_old"}, cfg.Stripe.WebhookSecrets)
	assert.Equal(t, 5*time.Minute, cfg.Stripe.WebhookTolerance)
	assert.Equal(t, "ARS", cfg.Checkout.DefaultCurrency)
	assert.True(t, cfg.Checkout.AllowManualConfirm)
	assert.InDelta(t, 0.10, cfg.Commission.Artist, 1e-9)
	require.Len(t, cfg.Security.Clients, 2)
	assert.Equal(t, []string{"orders.read", "orders.confirm", "orders.refund"}, cfg.Security.Clients[0].Perms)
	assert.True(t, cfg.IsDev())
}

func TestLoad_MissingEnvFileIsAllowed(t *testing.T) {
	dir := t.TempDir()
	base, err := os.ReadFile("base.yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), base, 0o600))
	t.Setenv("MARKETPLACE_STRIPE__SECRET_KEY", "sk_test_x")
	t.Setenv("MARKETPLACE_STRIPE__WEBHOOK_SECRETS", "whsec_x")

	cfg, err := Load(dir, "staging")
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.App.Env)
	assert.False(t, cfg.IsDev())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.App.HTTPAddr = ":8080"
		c.Store.Driver = "mysql"
		c.Store.DSN = "dsn"
		c.Stripe.SecretKey = "sk"
		c.Stripe.WebhookSecrets = []string{"whsec"}
		c.Commission.Default = 0.1
		return c
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"no addr":         func(c *Config) { c.App.HTTPAddr = "" },
		"unknown driver":  func(c *Config) { c.Store.Driver = "oracle" },
		"no dsn":          func(c *Config) { c.Store.DSN = "" },
		"no stripe key":   func(c *Config) { c.Stripe.SecretKey = "" },
		"no secrets":      func(c *Config) { c.Stripe.WebhookSecrets = nil },
		"rate above one":  func(c *Config) { c.Commission.Artist = 1.5 },
		"negative rate":   func(c *Config) { c.Commission.Default = -0.1 },
		"kafka w/o topic": func(c *Config) { c.Kafka.Brokers = []string{"k:9092"} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
