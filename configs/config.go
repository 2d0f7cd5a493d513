package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "MARKETPLACE_"

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		Env      string `koanf:"env"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Store struct {
		Driver          string        `koanf:"driver"` // mysql | postgres
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"store"`

	Redis struct {
		Addr      string        `koanf:"addr"`
		Password  string        `koanf:"password"`
		DB        int           `koanf:"db"`
		StatusTTL time.Duration `koanf:"status_ttl"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Rabbit struct {
		URL        string `koanf:"url"`
		Exchange   string `koanf:"exchange"`
		RoutingKey string `koanf:"routing_key"`
		Queue      string `koanf:"queue"`
		Prefetch   int    `koanf:"prefetch"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers []string `koanf:"brokers"`
		GroupID string   `koanf:"group_id"`
		Topic   string   `koanf:"topic"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string         `koanf:"jwt_secret"`
		Issuer    string         `koanf:"issuer"`
		Audience  string         `koanf:"audience"`
		TTL       time.Duration  `koanf:"ttl"`
		Clients   []ClientConfig `koanf:"clients"`
	} `koanf:"security"`

	Stripe struct {
		SecretKey        string        `koanf:"secret_key"`
		APIURL           string        `koanf:"api_url"`
		WebhookSecrets   []string      `koanf:"webhook_secrets"`
		WebhookTolerance time.Duration `koanf:"webhook_tolerance"`
	} `koanf:"stripe"`

	Commission struct {
		Default    float64 `koanf:"default"`
		Artist     float64 `koanf:"artist"`
		Store      float64 `koanf:"store"`
		Individual float64 `koanf:"individual"`
	} `koanf:"commission"`

	Checkout struct {
		DefaultCurrency    string `koanf:"default_currency"`
		AllowManualConfirm bool   `koanf:"allow_manual_confirm"`
	} `koanf:"checkout"`

	Reconcile struct {
		Interval   time.Duration `koanf:"interval"`
		StaleAfter time.Duration `koanf:"stale_after"`
		BatchSize  int           `koanf:"batch_size"`
	} `koanf:"reconcile"`

	Notify struct {
		SystemSenderID string `koanf:"system_sender_id"`
	} `koanf:"notify"`
}

// ClientConfig is an operator client allowed to request tokens.
type ClientConfig struct {
	ID       string   `koanf:"id"`
	Secret   string   `koanf:"secret"`
	Perms    []string `koanf:"perms"`
	Disabled bool     `koanf:"disabled"`
}

func (c Config) IsDev() bool {
	return c.App.Env == "" || c.App.Env == "dev"
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix MARKETPLACE_, nested with __)
	// e.g. MARKETPLACE_STORE__DSN, MARKETPLACE_STRIPE__WEBHOOK_SECRETS=whsec_a,whsec_b
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if cfg.App.Env == "" {
		cfg.App.Env = envName
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	switch c.Store.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("store.driver must be mysql or postgres, got %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn required")
	}
	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("stripe.secret_key required")
	}
	if len(c.Stripe.WebhookSecrets) == 0 || c.Stripe.WebhookSecrets[0] == "" {
		return fmt.Errorf("stripe.webhook_secrets requires at least one secret")
	}
	for name, r := range map[string]float64{
		"default":    c.Commission.Default,
		"artist":     c.Commission.Artist,
		"store":      c.Commission.Store,
		"individual": c.Commission.Individual,
	} {
		if r < 0 || r > 1 {
			return fmt.Errorf("commission.%s must be within [0,1], got %v", name, r)
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic required when kafka.brokers is set")
	}
	return nil
}
