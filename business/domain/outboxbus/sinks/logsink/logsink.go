// Package logsink writes outbox messages to the service log. It is the
// default sink when no broker is configured.
package logsink

import (
	"context"

	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Sink logs every message at info level.
type Sink struct {
	log *logger.Logger
}

// New constructs the sink.
func New(log *logger.Logger) *Sink {
	return &Sink{log: log}
}

// Deliver implements outboxbus.Sink.
func (s *Sink) Deliver(ctx context.Context, msg outboxbus.Message) error {
	s.log.Info(ctx, "outbox event", "event_id", msg.EventID, "event_code", msg.EventCode, "tenant_id", msg.TenantID, "attempt", msg.Attempt, "payload", string(msg.Payload))
	return nil
}
