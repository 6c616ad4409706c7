// Package httpsink posts outbox messages to a webhook endpoint.
package httpsink

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus"
)

// Header names set on every delivery.
const (
	HeaderEventCode   = "X-Event-Code"
	HeaderSignature   = "X-Signature"
	HeaderIdempotency = "Idempotency-Key"
)

// Config holds the endpoint settings.
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Sink posts the JSON message. A 2xx answer is success, 408, 429 and 5xx
// are retried, any other status fails the event permanently.
type Sink struct {
	client *resty.Client
	url    string
	secret []byte
}

// New constructs the sink.
func New(cfg Config) *Sink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Sink{
		client: client,
		url:    cfg.URL,
		secret: []byte(cfg.Secret),
	}
}

// Deliver implements outboxbus.Sink.
func (s *Sink) Deliver(ctx context.Context, msg outboxbus.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w: %w", outboxbus.ErrPermanent, err)
	}

	req := s.client.R().
		SetContext(ctx).
		SetHeader(HeaderEventCode, msg.EventCode).
		SetHeader(HeaderIdempotency, msg.EventID.String()).
		SetBody(data)

	if len(s.secret) > 0 {
		req.SetHeader(HeaderSignature, Sign(s.secret, data))
	}

	resp, err := req.Post(s.url)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("post: status %d", code)
	default:
		return fmt.Errorf("post: status %d: %w", code, outboxbus.ErrPermanent)
	}
}

// Sign returns the "sha256=<hex>" HMAC of body under secret.
func Sign(secret []byte, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
