// Package redissink appends outbox messages to a Redis stream.
package redissink

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus"
)

// Config holds the stream settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// Sink appends each message with XADD. Consumers dedupe on event_id.
type Sink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// New constructs the sink and checks the server is reachable.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Sink{client: client, stream: cfg.Stream, maxLen: cfg.MaxLen}, nil
}

// Deliver implements outboxbus.Sink.
func (s *Sink) Deliver(ctx context.Context, msg outboxbus.Message) error {
	args := redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"event_id":   msg.EventID.String(),
			"event_code": msg.EventCode,
			"tenant_id":  msg.TenantID.String(),
			"payload":    string(msg.Payload),
			"attempt":    msg.Attempt,
		},
	}

	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, &args).Err(); err != nil {
		return fmt.Errorf("xadd: %w", err)
	}

	return nil
}

// Close closes the client.
func (s *Sink) Close() error {
	return s.client.Close()
}
