package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/josepablo-design/marketplace/internal/logging"
)

// Router manages multiple consumers (one per registered queue) on a single AMQP channel.
type Router struct {
	ch            *amqp.Channel
	prefetch      int
	callTimeout   time.Duration
	requeueOnErr  bool
	log           *slog.Logger
	registrations []registration
}

type registration struct {
	queueName   string
	handler     Handler
	consumerTag string
}

// --- Options ---

type RouterOption func(*Router)

func WithPrefetch(n int) RouterOption          { return func(r *Router) { r.prefetch = n } }
func WithTimeout(d time.Duration) RouterOption { return func(r *Router) { r.callTimeout = d } }
func WithRequeue(b bool) RouterOption          { return func(r *Router) { r.requeueOnErr = b } }

// NewRouter constructs a Router. Defaults: prefetch=50, timeout=10s, requeueOnErr=true.
func NewRouter(ch *amqp.Channel, opts ...RouterOption) *Router {
	r := &Router{
		ch:           ch,
		prefetch:     50,
		callTimeout:  10 * time.Second,
		requeueOnErr: true,
		log:          logging.New("rabbitmq"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register associates a queue with a handler. Call multiple times for multiple queues.
func (r *Router) Register(queueName string, h Handler) {
	r.registrations = append(r.registrations, registration{
		queueName:   queueName,
		handler:     h,
		consumerTag: "c_" + queueName,
	})
}

// Start begins consuming; non-blocking (spawns one goroutine per queue).
// QoS (prefetch) is set per-channel and applies to all consumers on this channel.
// Consumers are cancelled when ctx is done.
func (r *Router) Start(ctx context.Context) error {
	if err := r.ch.Qos(r.prefetch, 0, false); err != nil {
		return err
	}

	for _, reg := range r.registrations {
		deliveries, err := r.ch.Consume(
			reg.queueName,
			reg.consumerTag,
			false, // manual ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			return err
		}

		go func(reg registration, msgs <-chan amqp.Delivery) {
			l := r.log.With("queue", reg.queueName, "tag", reg.consumerTag)
			for {
				select {
				case <-ctx.Done():
					_ = r.ch.Cancel(reg.consumerTag, false)
					l.Info("consumer cancelled")
					return
				case d, ok := <-msgs:
					if !ok {
						l.Warn("consumer stopped")
						return
					}
					r.dispatch(ctx, l, reg.handler, d)
				}
			}
		}(reg, deliveries)
	}

	return nil
}

// dispatch runs h on one delivery and settles it. Poison messages are dropped;
// other failures follow requeueOnErr.
func (r *Router) dispatch(ctx context.Context, l *slog.Logger, h Handler, d amqp.Delivery) {
	hctx, cancel := context.WithTimeout(logging.WithCtx(ctx, l), r.callTimeout)
	err := h.Handle(hctx, d)
	cancel()

	if err == nil {
		_ = d.Ack(false)
		return
	}
	requeue := r.requeueOnErr && !errors.Is(err, ErrPoison)
	// a redelivered message that fails again is not retried a second time
	if d.Redelivered {
		requeue = false
	}
	l.Error("handler error", "rk", d.RoutingKey, "message_id", d.MessageId, "err", err, "requeue", requeue)
	_ = d.Nack(false, requeue)
}
