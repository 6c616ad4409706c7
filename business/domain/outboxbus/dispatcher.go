package outboxbus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/jcpaschoal/spi-agenda/foundation/otel"
	"golang.org/x/sync/errgroup"
)

// ErrPermanent marks a delivery failure that retrying cannot fix. Sinks wrap
// it and the event goes straight to failed.
var ErrPermanent = errors.New("permanent delivery failure")

// Sink delivers a message to the outside world.
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
}

// DispatchConfig tunes the dispatcher.
type DispatchConfig struct {
	BatchSize    int
	Workers      int
	PollInterval time.Duration
	Lease        time.Duration
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	MaxAttempts  int
}

func (cfg DispatchConfig) withDefaults() DispatchConfig {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return cfg
}

// Result summarises one dispatch round.
type Result struct {
	Claimed   int
	Delivered int
	Retried   int
	Failed    int
}

// Dispatcher claims ready events and hands them to a Sink.
type Dispatcher struct {
	core *Core
	sink Sink
	cfg  DispatchConfig
}

// NewDispatcher constructs a dispatcher over core, which must not be bound
// to a transaction.
func NewDispatcher(core *Core, sink Sink, cfg DispatchConfig) *Dispatcher {
	return &Dispatcher{
		core: core,
		sink: sink,
		cfg:  cfg.withDefaults(),
	}
}

// Run dispatches until ctx is cancelled. A round that fills a whole batch is
// followed immediately by the next one. The onRound hook, when set, sees the
// result of each round.
func (d *Dispatcher) Run(ctx context.Context, onRound func(Result)) error {
	log := d.core.log

	log.Info(ctx, "outbox dispatcher: started", "batch", d.cfg.BatchSize, "workers", d.cfg.Workers, "poll", d.cfg.PollInterval)
	defer log.Info(ctx, "outbox dispatcher: stopped")

	for {
		res, err := d.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error(ctx, "outbox dispatcher: round", "ERROR", err)
		}

		if onRound != nil && res.Claimed > 0 {
			onRound(res)
		}

		if err == nil && res.Claimed == d.cfg.BatchSize {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.cfg.PollInterval):
		}
	}
}

// RunOnce claims one batch and delivers it. Claiming moves the rows to
// delivering with a lease, so concurrent dispatchers never pick the same
// event and a crashed dispatcher's events come back once the lease expires.
func (d *Dispatcher) RunOnce(ctx context.Context) (Result, error) {
	ctx, span := otel.AddSpan(ctx, "business.outboxbus.dispatch")
	defer span.End()

	now := d.core.now().UTC()

	events, err := d.core.storer.Claim(ctx, now, now.Add(d.cfg.Lease), d.cfg.BatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("claim: %w", err)
	}

	slices.SortFunc(events, func(a, b Event) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	var delivered, retried, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)

	for _, e := range events {
		g.Go(func() error {
			switch d.deliver(ctx, e) {
			case outcomeDelivered:
				delivered.Add(1)
			case outcomeRetry:
				retried.Add(1)
			case outcomeFailed:
				failed.Add(1)
			}
			return nil
		})
	}

	g.Wait()

	res := Result{
		Claimed:   len(events),
		Delivered: int(delivered.Load()),
		Retried:   int(retried.Load()),
		Failed:    int(failed.Load()),
	}

	return res, nil
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeDelivered
	outcomeRetry
	outcomeFailed
)

func (d *Dispatcher) deliver(ctx context.Context, e Event) outcome {
	log := d.core.log
	storer := d.core.storer

	sendErr := d.sink.Deliver(ctx, toMessage(e))
	now := d.core.now().UTC()

	var err error
	var out outcome

	switch {
	case sendErr == nil:
		out = outcomeDelivered
		err = storer.MarkDelivered(ctx, e, now)

	case errors.Is(sendErr, ErrPermanent) || e.Attempts >= d.cfg.MaxAttempts:
		out = outcomeFailed
		log.Warn(ctx, "outbox: event failed", "event_id", e.ID, "event_code", e.Code, "attempts", e.Attempts, "ERROR", sendErr)
		err = storer.MarkFailed(ctx, e, sendErr.Error())

	default:
		out = outcomeRetry
		readyAt := now.Add(Backoff(e.Attempts, d.cfg.BaseBackoff, d.cfg.MaxBackoff))
		log.Info(ctx, "outbox: delivery retry scheduled", "event_id", e.ID, "attempts", e.Attempts, "ready_at", readyAt, "ERROR", sendErr)
		err = storer.MarkRetry(ctx, e, readyAt, sendErr.Error())
	}

	if err != nil {
		log.Warn(ctx, "outbox: recording delivery outcome", "event_id", e.ID, "ERROR", err)
		return outcomeNone
	}

	return out
}

// Backoff returns the wait before attempt+1 after attempt failed deliveries:
// base doubled for every failure, capped at max.
func Backoff(attempt int, base time.Duration, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	wait := base
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= max || wait <= 0 {
			return max
		}
	}

	return min(wait, max)
}
