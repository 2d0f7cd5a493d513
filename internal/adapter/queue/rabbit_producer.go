package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/josepablo-design/marketplace/internal/usecase"
)

// Topology names the exchange, routing key and queue for settlement events.
type Topology struct {
	Exchange   string
	RoutingKey string
	Queue      string
}

// Dial opens a connection and one channel on it.
func Dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	return conn, ch, nil
}

// Declare sets up the exchange, queue, and binding. Safe to call on every start.
func Declare(ch *amqp.Channel, t Topology) error {
	// 1. declare exchange (topic type, durable)
	if err := ch.ExchangeDeclare(
		t.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// 2. declare queue
	q, err := ch.QueueDeclare(
		t.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// 3. bind queue → exchange
	if err := ch.QueueBind(q.Name, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	return nil
}

// RabbitProducer implements usecase.SettlementPublisher
type RabbitProducer struct {
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

// NewRabbitProducer puts ch into confirm mode; Declare must have run before.
func NewRabbitProducer(ch *amqp.Channel, t Topology) (*RabbitProducer, error) {
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &RabbitProducer{ch: ch, exchange: t.Exchange, routingKey: t.RoutingKey}, nil
}

// PublishSettled sends an order.settled event and waits for the broker ack.
func (p *RabbitProducer) PublishSettled(ctx context.Context, msg usecase.SettledMsg) error {
	pub, err := settledPublishing(msg)
	if err != nil {
		return err
	}

	conf, err := p.ch.PublishWithDeferredConfirmWithContext(
		ctx,
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		pub,
	)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("publish: broker nacked order %s", msg.OrderID)
	}
	return nil
}

func settledPublishing(msg usecase.SettledMsg) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		MessageId:    msg.OrderID + ":" + msg.Status,
		Timestamp:    msg.At,
		Type:         "order.settled",
		Body:         body,
	}, nil
}

var _ usecase.SettlementPublisher = (*RabbitProducer)(nil)
