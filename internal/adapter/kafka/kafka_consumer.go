package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/josepablo-design/marketplace/internal/logging"
)

// ErrSkip tells the consumer to commit past a message that can never be
// processed.
var ErrSkip = errors.New("skip message")

// HandlerFunc processes one message.
type HandlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// Consumer consumes a topic with a single handler.
type Consumer struct {
	Group  sarama.ConsumerGroup
	Topics []string
	Handle HandlerFunc
	// RetryBackoff is the pause before rejoining after a failed message.
	RetryBackoff time.Duration
	log          *slog.Logger
}

func NewConsumer(group sarama.ConsumerGroup, topics []string, h HandlerFunc) *Consumer {
	return &Consumer{
		Group:        group,
		Topics:       topics,
		Handle:       h,
		RetryBackoff: 2 * time.Second,
		log:          logging.New("kafka"),
	}
}

// Start blocks until ctx is cancelled or the group is closed.
func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.Group.Errors() {
			c.log.Error("consumer group error", "err", err)
		}
	}()

	handler := &cgHandler{handle: c.Handle, log: c.log}
	for {
		err := c.Group.Consume(ctx, c.Topics, handler)
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if err != nil {
			return err
		}
		// When Consume returns, it’s because ctx was cancelled, a rebalance
		// happened, or a message failed and its claim gave up.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if handler.failed() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.RetryBackoff):
			}
		}
	}
}

type cgHandler struct {
	handle HandlerFunc
	log    *slog.Logger
	fail   atomic.Bool
}

func (h *cgHandler) Setup(sarama.ConsumerGroupSession) error {
	h.fail.Store(false)
	return nil
}

func (h *cgHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *cgHandler) failed() bool { return h.fail.Load() }

// ConsumeClaim marks every handled message. On a failure it returns without
// marking, which ends the session; the next one resumes at the failed offset.
func (h *cgHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		l := h.log.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		err := h.handle(logging.WithCtx(sess.Context(), l), msg)
		switch {
		case err == nil:
			sess.MarkMessage(msg, "")
		case errors.Is(err, ErrSkip):
			l.Warn("skipping message", "err", err)
			sess.MarkMessage(msg, "skipped")
		default:
			l.Error("handler error, will retry", "err", err)
			h.fail.Store(true)
			return nil
		}
	}
	return nil
}
