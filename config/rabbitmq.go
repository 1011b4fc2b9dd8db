package config

import (
	"context"
	"fmt"
	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"net/url"
	"time"
)

// URL builds the AMQP dial address, escaping the credentials.
func (r *RabbitMQ) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(r.User, r.Pass),
		Host:   fmt.Sprintf("%s:%d", r.Host, r.Port),
		Path:   "/",
	}
	return u.String()
}

func NewRabbitMQConn(ctx context.Context, cfg *RabbitMQ) (*amqp.Connection, error) {
	connAddr := cfg.URL()

	operation := func() (*amqp.Connection, error) {
		return amqp.Dial(connAddr)
	}
	notify := func(err error, wait time.Duration) {
		zerolog.Ctx(ctx).Error().Err(err).Dur("wait", wait).Msg("Failed to connect to RabbitMQ. Retrying...")
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	maxRetries := uint(5)
	conn, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(maxRetries), backoff.WithNotify(notify))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("host", cfg.Host).Msg("Failed to connect to RabbitMQ")
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("host", cfg.Host).Msg("Successfully connected to RabbitMQ")
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		select {
		case <-ctx.Done():
			if err := conn.Close(); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to close RabbitMQ connection")
			}
			zerolog.Ctx(ctx).Info().Msg("RabbitMQ connection closed")
		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				zerolog.Ctx(ctx).Error().Str("reason", amqpErr.Reason).Int("code", amqpErr.Code).Msg("RabbitMQ connection lost")
			}
		}
	}()

	return conn, nil
}
