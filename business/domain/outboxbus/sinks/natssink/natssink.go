// Package natssink publishes outbox messages to NATS.
package natssink

import (
	"context"
	"fmt"

	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus"
	"github.com/nats-io/nats.go"
)

// Sink publishes each message on "<prefix>.<tenant_id>.<event_code>". The
// event id travels in the Nats-Msg-Id header so a JetStream stream bound to
// the subject drops redeliveries.
type Sink struct {
	nc     *nats.Conn
	prefix string
}

// New connects to the NATS server at url.
func New(url string, prefix string) (*Sink, error) {
	nc, err := nats.Connect(url, nats.Name("spi-agenda-outbox"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &Sink{nc: nc, prefix: prefix}, nil
}

// Deliver implements outboxbus.Sink. It returns once the server has
// acknowledged the publish.
func (s *Sink) Deliver(ctx context.Context, msg outboxbus.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w: %w", outboxbus.ErrPermanent, err)
	}

	m := nats.NewMsg(fmt.Sprintf("%s.%s.%s", s.prefix, msg.TenantID, msg.EventCode))
	m.Data = data
	m.Header.Set(nats.MsgIdHdr, msg.EventID.String())

	if err := s.nc.PublishMsg(m); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	if err := s.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}

// Close drains the connection.
func (s *Sink) Close() error {
	return s.nc.Drain()
}
