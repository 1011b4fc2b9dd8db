package rabbitmq

import (
	"context"
	"encoding/json"
	amqp "github.com/rabbitmq/amqp091-go"
	"sync"
	"worker-minutes/config"
)

// Publisher sends JSON messages to the exchange the consumer is bound to.
type Publisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ

	mu       sync.Mutex
	ch       *amqp.Channel
	declared bool
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) *Publisher {
	return &Publisher{
		conn: conn,
		cfg:  cfg,
	}
}

func (p *Publisher) Publish(ctx context.Context, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx,
		p.cfg.ExchangeName,
		p.cfg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		_ = ch.Close()
		p.ch = nil
		return err
	}
	return nil
}

// channel reuses one channel across publishes and reopens it after a failure.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	if !p.declared {
		err = ch.ExchangeDeclare(p.cfg.ExchangeName, p.cfg.Kind, true, false, false, false, nil)
		if err != nil {
			_ = ch.Close()
			return nil, err
		}
		p.declared = true
	}
	p.ch = ch
	return ch, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}
