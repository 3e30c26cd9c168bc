package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange     = "mejaku.events"
	NotificationsQueue = "mejaku.notifications"

	KitchenJobsExchange = "mejaku.kitchen_jobs"
	KitchenJobsQueue    = "mejaku.kitchen_jobs.process"
	KitchenJobsDLQ      = "mejaku.kitchen_jobs.dlq"
	KitchenJobsRK       = "process"
	KitchenJobsDeadRK   = "dead"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func New(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, ch: ch}, nil
}

func (c *Client) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// EnsureTopology declares the order-event topic exchange, the notifications
// queue bound to every order.* routing key, and the kitchen-job direct
// exchange with its dead-letter queue.
func (c *Client) EnsureTopology() error {
	if err := c.EnsureExchangeKind(EventsExchange, "topic"); err != nil {
		return err
	}
	if _, err := c.EnsureQueue(NotificationsQueue); err != nil {
		return err
	}
	// '#' rather than '*': routing keys like 'order.status.updated' span
	// multiple segments.
	if err := c.BindQueue(NotificationsQueue, EventsExchange, "order.#"); err != nil {
		return err
	}

	if err := c.EnsureExchangeKind(KitchenJobsExchange, "direct"); err != nil {
		return err
	}
	if _, err := c.EnsureQueue(KitchenJobsDLQ); err != nil {
		return err
	}
	if err := c.BindQueue(KitchenJobsDLQ, KitchenJobsExchange, KitchenJobsDeadRK); err != nil {
		return err
	}
	if _, err := c.EnsureQueueWithArgs(KitchenJobsQueue, amqp.Table{
		"x-dead-letter-exchange":    KitchenJobsExchange,
		"x-dead-letter-routing-key": KitchenJobsDeadRK,
	}); err != nil {
		return err
	}
	return c.BindQueue(KitchenJobsQueue, KitchenJobsExchange, KitchenJobsRK)
}

func (c *Client) EnsureExchangeKind(name string, kind string) error {
	if kind == "" {
		kind = "topic"
	}
	return c.ch.ExchangeDeclare(
		name,
		kind,
		true,
		false,
		false,
		false,
		nil,
	)
}

func (c *Client) EnsureQueue(name string) (amqp.Queue, error) {
	return c.EnsureQueueWithArgs(name, nil)
}

func (c *Client) EnsureQueueWithArgs(name string, args amqp.Table) (amqp.Queue, error) {
	return c.ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		args,
	)
}

func (c *Client) BindQueue(queueName, exchange, routingKey string) error {
	return c.ch.QueueBind(queueName, routingKey, exchange, false, nil)
}

func (c *Client) PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   time.Now(),
	})
}
