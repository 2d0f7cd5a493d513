package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/josepablo-design/marketplace/configs"
	httpapi "github.com/josepablo-design/marketplace/internal/adapter/http"
	"github.com/josepablo-design/marketplace/internal/adapter/http/middleware"
	"github.com/josepablo-design/marketplace/internal/adapter/kafka"
	"github.com/josepablo-design/marketplace/internal/adapter/observ"
	"github.com/josepablo-design/marketplace/internal/adapter/queue"
	"github.com/josepablo-design/marketplace/internal/bootstrap"
	"github.com/josepablo-design/marketplace/internal/logging"
	"github.com/josepablo-design/marketplace/internal/security"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

// Run serves HTTP and the background workers until ctx is cancelled.
func Run(ctx context.Context, cfg configs.Config) error {
	l := logging.FromCtx(ctx)
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	a, cleanup, err := bootstrap.Init(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	l.Info("settlement-api: starting up", "env", cfg.App.Env, "store", cfg.Store.Driver)

	if err := setupQueue(ctx, a); err != nil {
		return err
	}
	if err := setupKafkaListener(ctx, a); err != nil {
		return err
	}
	if cfg.Reconcile.Interval > 0 {
		go a.Reconciler.Loop(ctx, cfg.Reconcile.Interval, func(rep usecase.ReconcileReport) {
			observ.ReconcileReport(rep.Paid, rep.Cancelled, rep.Skipped, rep.Failed)
		})
	}

	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      newRouter(a),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		l.Info("listening", "addr", cfg.App.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	grace := cfg.HTTP.ShutdownTimeout
	if grace <= 0 {
		grace = 15 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	l.Info("shutting down")
	return srv.Shutdown(sctx)
}

func newRouter(a *bootstrap.App) *gin.Engine {
	cfg := a.Config
	return httpapi.NewRouter(httpapi.Handlers{
		Checkout: httpapi.NewCheckoutHandler(a.Checkout),
		Webhook:  httpapi.NewWebhookHandler(a.Settlement),
		Orders:   httpapi.NewOrderHandler(a.OrderSvc),
		Token:    httpapi.NewTokenHandler(cfg, security.NewClientRegistry(cfg.Security.Clients)),
		Authz:    middleware.NewAuthz(cfg),
		Verify:   middleware.NewWebhookVerify(a.Gateway, a.Signer),
		Dev:      cfg.IsDev(),
	})
}

// setupQueue consumes order.settled into conversation notices.
func setupQueue(ctx context.Context, a *bootstrap.App) error {
	if a.Notifier == nil {
		return nil
	}
	ch, err := a.Rabbit.Channel()
	if err != nil {
		return err
	}
	h := queue.NewSettledHandler(a.Notifier)

	router := queue.NewRouter(ch, queue.WithPrefetch(a.Config.Rabbit.Prefetch))
	router.Register(a.Topology.Queue, h.JSON())
	return router.Start(ctx)
}

// setupKafkaListener feeds relayed processor events into settlement.
func setupKafkaListener(ctx context.Context, a *bootstrap.App) error {
	cfg := a.Config.Kafka
	if len(cfg.Brokers) == 0 {
		return nil
	}
	grp, err := kafka.NewGroup(cfg.Brokers, cfg.GroupID)
	if err != nil {
		return err
	}

	h := kafka.NewPaymentEventHandler(a.Settlement)
	consumer := kafka.NewConsumer(grp, []string{cfg.Topic}, h.Handle)

	go func() {
		defer grp.Close()
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.FromCtx(ctx).Error("kafka consumer stopped", "err", err)
		}
	}()
	return nil
}
