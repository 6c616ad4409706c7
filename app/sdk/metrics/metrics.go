// Package metrics constructs the metrics the application will track.
package metrics

import (
	"context"
	"expvar"
	"runtime"
)

// This holds the single instance of the metrics value needed for
// collecting metrics. The expvar package is already based on a singleton
// for the different metrics that are registered with the package so there
// isn't much choice here.
var m metrics

// metrics represents the set of metrics we gather. These fields are
// safe to be accessed concurrently.
type metrics struct {
	goroutines      *expvar.Int
	requests        *expvar.Int
	errors          *expvar.Int
	panics          *expvar.Int
	conflicts       *expvar.Int
	denied          *expvar.Int
	outboxDelivered *expvar.Int
	outboxRetried   *expvar.Int
	outboxFailed    *expvar.Int
	inboxDuplicates *expvar.Int
}

// init constructs the metrics value that will be used to capture metrics.
// The metrics value is stored in a package level variable since everything
// inside of expvar is registered as a singleton.
func init() {
	m = metrics{
		goroutines:      expvar.NewInt("goroutines"),
		requests:        expvar.NewInt("requests"),
		errors:          expvar.NewInt("errors"),
		panics:          expvar.NewInt("panics"),
		conflicts:       expvar.NewInt("booking_conflicts"),
		denied:          expvar.NewInt("access_denied"),
		outboxDelivered: expvar.NewInt("outbox_delivered"),
		outboxRetried:   expvar.NewInt("outbox_retried"),
		outboxFailed:    expvar.NewInt("outbox_failed"),
		inboxDuplicates: expvar.NewInt("inbox_duplicates"),
	}
}

type ctxKeyMetric int

const key ctxKeyMetric = 1

// Set sets the metrics data into the context.
func Set(ctx context.Context) context.Context {
	return context.WithValue(ctx, key, &m)
}

// AddGoroutines refreshes the goroutine metric.
func AddGoroutines(ctx context.Context) int64 {
	if v, ok := ctx.Value(key).(*metrics); ok {
		g := int64(runtime.NumGoroutine())
		v.goroutines.Set(g)
		return g
	}

	return 0
}

// AddRequests increments the request metric by 1.
func AddRequests(ctx context.Context) int64 {
	v, ok := ctx.Value(key).(*metrics)
	if ok {
		v.requests.Add(1)
		return v.requests.Value()
	}

	return 0
}

// AddErrors increments the errors metric by 1.
func AddErrors(ctx context.Context) int64 {
	if v, ok := ctx.Value(key).(*metrics); ok {
		v.errors.Add(1)
		return v.errors.Value()
	}

	return 0
}

// AddPanics increments the panics metric by 1.
func AddPanics(ctx context.Context) int64 {
	if v, ok := ctx.Value(key).(*metrics); ok {
		v.panics.Add(1)
		return v.panics.Value()
	}

	return 0
}

// AddConflicts increments the rejected booking metric by 1.
func AddConflicts(ctx context.Context) int64 {
	if v, ok := ctx.Value(key).(*metrics); ok {
		v.conflicts.Add(1)
		return v.conflicts.Value()
	}

	return 0
}

// AddDenied increments the access denied metric by 1.
func AddDenied(ctx context.Context) int64 {
	if v, ok := ctx.Value(key).(*metrics); ok {
		v.denied.Add(1)
		return v.denied.Value()
	}

	return 0
}

// AddInboxDuplicates increments the replayed webhook metric by 1.
func AddInboxDuplicates(ctx context.Context) int64 {
	if v, ok := ctx.Value(key).(*metrics); ok {
		v.inboxDuplicates.Add(1)
		return v.inboxDuplicates.Value()
	}

	return 0
}

// =============================================================================

// AddOutbox adds the outcome of one dispatcher round. The dispatcher does not
// run inside a request so it writes the counters directly.
func AddOutbox(delivered int, retried int, failed int) {
	m.outboxDelivered.Add(int64(delivered))
	m.outboxRetried.Add(int64(retried))
	m.outboxFailed.Add(int64(failed))
}
