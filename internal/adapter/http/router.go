package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josepablo-design/marketplace/internal/adapter/http/middleware"
	"github.com/josepablo-design/marketplace/internal/logging"
	"github.com/josepablo-design/marketplace/internal/security"
)

type Handlers struct {
	Checkout *CheckoutHandler
	Webhook  *WebhookHandler
	Orders   *OrderHandler
	Token    *TokenHandler
	Authz    *middleware.Authz
	Verify   *middleware.WebhookVerify
	// Dev mounts the /_test helpers.
	Dev bool
}

func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())
	r.Use(middleware.Logging(logging.New("http")))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/token", h.Token.IssueToken)
		api.POST("/create-payment-intent", h.Checkout.CreatePaymentIntent)
		api.POST("/stripe-webhook", h.Verify.Verify(), h.Webhook.Handle)

		orders := api.Group("/orders")
		orders.GET("", h.Authz.Require(security.PermOrdersRead), h.Orders.ListOrders)
		orders.GET("/:id", h.Authz.Require(security.PermOrdersRead), h.Orders.GetOrderByID)
		orders.GET("/:id/status", h.Authz.Require(security.PermOrdersRead), h.Orders.GetOrderStatus)
		orders.POST("/:id/confirm", h.Authz.Require(security.PermOrdersConfirm), h.Orders.ConfirmOrder)
		orders.POST("/:id/refund", h.Authz.Require(security.PermOrdersRefund), h.Orders.RefundOrder)
	}

	if h.Dev {
		r.POST("/_test/sign-webhook", h.Verify.SignWebhook())
	}
	return r
}
