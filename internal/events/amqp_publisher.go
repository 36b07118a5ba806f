package events

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rabbitmq/amqp091-go"

	"github.com/hackgods/doctor-appointments/internal/appointment"
)

// AMQPPublisher publishes to a durable topic exchange, one routing key per
// event type.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, exchange: Exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev appointment.EventLog) error {
	body, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", ev.ID, err)
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    strconv.FormatInt(ev.ID, 10),
		Timestamp:    ev.CreatedAt,
		Type:         ev.EventType,
		Body:         body,
	}

	if err := p.channel.PublishWithContext(ctx, p.exchange, RoutingKey(ev.EventType), false, false, msg); err != nil {
		return fmt.Errorf("publish event %d: %w", ev.ID, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}
