// Package bootstrap builds the dependency graph shared by the API server and
// the operator CLI.
package bootstrap

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/josepablo-design/marketplace/configs"
	"github.com/josepablo-design/marketplace/internal/adapter/cache"
	"github.com/josepablo-design/marketplace/internal/adapter/observ"
	"github.com/josepablo-design/marketplace/internal/adapter/payment"
	"github.com/josepablo-design/marketplace/internal/adapter/queue"
	"github.com/josepablo-design/marketplace/internal/adapter/repo"
	"github.com/josepablo-design/marketplace/internal/commission"
	domain "github.com/josepablo-design/marketplace/internal/entity"
	"github.com/josepablo-design/marketplace/internal/logging"
	"github.com/josepablo-design/marketplace/internal/security"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

type App struct {
	Config configs.Config

	Products usecase.ProductRepo
	Orders   usecase.OrderRepo
	Convs    usecase.ConversationRepo

	Redis *redis.Client
	Idem  *cache.RedisIdempotencyStore
	Cache *cache.RedisCache

	Signer  security.WebhookSigner
	Gateway *payment.StripeGateway
	Engine  *commission.Engine

	Settlement *usecase.Settlement
	Checkout   *usecase.Checkout
	OrderSvc   *usecase.Orders
	Reconciler *usecase.Reconciler
	// Notifier is nil when settlement notices are disabled.
	Notifier *usecase.Notifier

	// Rabbit is nil when rabbitmq.url is empty.
	Rabbit   *amqp.Connection
	Topology queue.Topology
}

// Init connects every configured backend. The returned cleanup closes them in
// reverse order and is safe to call when Init failed halfway.
func Init(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, func() {}, err
	}
	l := logging.FromCtx(ctx)
	a := &App{Config: cfg}

	// store
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := repo.OpenPostgres(ctx, cfg.Store.DSN, int32(cfg.Store.MaxOpenConns))
		if err != nil {
			return fail(fmt.Errorf("postgres: %w", err))
		}
		closers = append(closers, pool.Close)
		st := repo.NewPostgresStore(pool)
		a.Products, a.Orders, a.Convs = st.Products(), st, st
	default:
		db, err := repo.OpenMySQL(ctx, cfg.Store.DSN, repo.PoolOptions{
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
		if err != nil {
			return fail(fmt.Errorf("mysql: %w", err))
		}
		closers = append(closers, func() { _ = db.Close() })
		a.Products = repo.NewMySQLProductRepo(db)
		a.Orders = repo.NewMySQLOrderRepo(db)
		a.Convs = repo.NewMySQLConversationRepo(db)
	}

	// redis
	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	closers = append(closers, func() { _ = a.Redis.Close() })
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return fail(fmt.Errorf("redis: %w", err))
	}
	a.Idem = cache.NewRedisIdempotencyStore(a.Redis, cfg.Idempotency.TTL)
	a.Cache = cache.NewRedisCache(a.Redis, cfg.Redis.StatusTTL)

	// payment processor
	keys, err := security.LoadKeyring(cfg)
	if err != nil {
		return fail(err)
	}
	if a.Signer, err = security.NewWebhookSigner(keys); err != nil {
		return fail(err)
	}
	a.Gateway = payment.NewStripeGateway(payment.Options{SecretKey: cfg.Stripe.SecretKey, APIURL: cfg.Stripe.APIURL}, a.Signer)

	if a.Engine, err = commission.New(CommissionConfig(cfg)); err != nil {
		return fail(err)
	}

	// rabbitmq (optional)
	opts := []usecase.SettlementOption{
		usecase.WithEventDedupe(a.Idem),
		usecase.WithStatusCache(a.Cache),
		usecase.WithAnomalyHook(observ.Anomaly),
	}
	if cfg.Rabbit.URL != "" {
		a.Topology = queue.Topology{Exchange: cfg.Rabbit.Exchange, RoutingKey: cfg.Rabbit.RoutingKey, Queue: cfg.Rabbit.Queue}
		conn, ch, err := queue.Dial(cfg.Rabbit.URL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		if err := queue.Declare(ch, a.Topology); err != nil {
			return fail(err)
		}
		producer, err := queue.NewRabbitProducer(ch, a.Topology)
		if err != nil {
			return fail(err)
		}
		a.Rabbit = conn
		opts = append(opts, usecase.WithPublisher(producer))
	} else {
		l.Warn("rabbitmq.url empty; settlement events are not published")
	}

	a.Settlement = usecase.NewSettlement(a.Orders, opts...)
	a.Checkout = usecase.NewCheckout(a.Products, a.Orders, a.Gateway, a.Engine, a.Idem, cfg.Checkout.DefaultCurrency)
	a.OrderSvc = usecase.NewOrders(a.Orders, a.Cache, a.Gateway, a.Settlement, cfg.Checkout.AllowManualConfirm)
	a.Reconciler = usecase.NewReconciler(a.Orders, a.Gateway, a.Settlement, cfg.Reconcile.StaleAfter, cfg.Reconcile.BatchSize)
	if a.Rabbit != nil && cfg.Notify.SystemSenderID != "" {
		a.Notifier = usecase.NewNotifier(a.Convs, a.Idem, cfg.Notify.SystemSenderID)
	}

	return a, cleanup, nil
}

// CommissionConfig maps the configured rates. A category rate of 0 means
// "use the default"; an unset default keeps the built-in rate.
func CommissionConfig(cfg configs.Config) commission.Config {
	c := commission.Config{
		DefaultRate: commission.DefaultConfig().DefaultRate,
		Overrides:   map[domain.SellerCategory]decimal.Decimal{},
	}
	if cfg.Commission.Default != 0 {
		c.DefaultRate = decimal.NewFromFloat(cfg.Commission.Default)
	}
	for cat, r := range map[domain.SellerCategory]float64{
		domain.SellerArtist:     cfg.Commission.Artist,
		domain.SellerStore:      cfg.Commission.Store,
		domain.SellerIndividual: cfg.Commission.Individual,
	} {
		if r > 0 {
			c.Overrides[cat] = decimal.NewFromFloat(r)
		}
	}
	return c
}
