package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RetryCountHeader carries the redelivery count for bounded worker retries.
const RetryCountHeader = "x-retry-count"

// Publisher sends JSON task payloads to one durable queue.
type Publisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewPublisher(conn *amqp.Connection, queueName string) *Publisher {
	return &Publisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *Publisher) Publish(ctx context.Context, payload any) error {
	return p.publish(ctx, payload, nil)
}

// PublishRetry republishes a failed task with its retry count stamped in the
// message headers, so the consumer can bound redeliveries.
func (p *Publisher) PublishRetry(ctx context.Context, payload any, retryCount int) error {
	return p.publish(ctx, payload, amqp.Table{RetryCountHeader: int32(retryCount)})
}

func (p *Publisher) publish(ctx context.Context, payload any, headers amqp.Table) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal task payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
		},
	); err != nil {
		return fmt.Errorf("publish task failed: %w", err)
	}
	return nil
}

// RetryCount reads the retry counter from a delivery; zero when absent.
func RetryCount(d amqp.Delivery) int {
	raw, ok := d.Headers[RetryCountHeader]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
