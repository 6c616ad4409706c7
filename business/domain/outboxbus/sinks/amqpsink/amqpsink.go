// Package amqpsink publishes outbox messages to a RabbitMQ topic exchange.
package amqpsink

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Sink publishes persistent messages routed by event code and waits for the
// broker confirm of each one.
type Sink struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// New dials the broker, declares the durable topic exchange and puts the
// channel in confirm mode.
func New(url string, exchange string) (*Sink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("confirm mode: %w", err)
	}

	return &Sink{conn: conn, ch: ch, exchange: exchange}, nil
}

// Deliver implements outboxbus.Sink.
func (s *Sink) Deliver(ctx context.Context, msg outboxbus.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w: %w", outboxbus.ErrPermanent, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.EventID.String(),
		Type:         msg.EventCode,
		Timestamp:    msg.CreatedAt,
		Headers:      amqp.Table{"tenant_id": msg.TenantID.String()},
		Body:         data,
	}

	conf, err := s.ch.PublishWithDeferredConfirmWithContext(ctx, s.exchange, msg.EventCode, false, false, pub)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}

	if !acked {
		return errors.New("broker nacked message")
	}

	return nil
}

// Close closes the channel and the connection.
func (s *Sink) Close() error {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
