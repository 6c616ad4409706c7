// Package mux provides support to bind domain level routes
// to the application mux.
package mux

import (
	"net/http"

	"github.com/jcpaschoal/spi-agenda/app/sdk/auth"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/business/domain/aclbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/inboxbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/trace"
)

// Options represent optional parameters.
type Options struct {
	corsOrigin []string
}

// WithCORS provides configuration options for CORS.
func WithCORS(origins []string) func(opts *Options) {
	return func(opts *Options) {
		opts.corsOrigin = origins
	}
}

// AuthConfig contains auth service specific config.
type AuthConfig struct {
	Auth      *auth.Auth
	ActiveKID string
}

// WebhookConfig holds the shared secret of every provider allowed to call
// the webhook endpoint.
type WebhookConfig struct {
	Secrets map[string]string
}

// BusConfig holds the business cores the handlers call into.
type BusConfig struct {
	ACLBus      *aclbus.Core
	AuditBus    *auditbus.Core
	OutboxBus   *outboxbus.Core
	InboxBus    *inboxbus.Core
	TenantBus   *tenantbus.Core
	UserBus     *userbus.Core
	ResourceBus *resourcebus.Core
	BookingBus  *bookingbus.Core
}

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Build         string
	Log           *logger.Logger
	DB            *sqlx.DB
	Tracer        trace.Tracer
	TxRetries     int
	BusConfig     BusConfig
	AuthConfig    AuthConfig
	WebhookConfig WebhookConfig
}

// RouteAdder defines behavior that sets the routes to bind for an instance
// of the service.
type RouteAdder interface {
	Add(app *web.App, cfg Config)
}

// WebAPI constructs a http.Handler with all application routes bound.
func WebAPI(cfg Config, routeAdder RouteAdder, options ...func(opts *Options)) http.Handler {
	app := web.NewApp(
		cfg.Log.Info,
		cfg.Tracer,
		mid.Otel(cfg.Tracer),
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Panics(),
	)

	var opts Options
	for _, option := range options {
		option(&opts)
	}

	if len(opts.corsOrigin) > 0 {
		app.EnableCORS(opts.corsOrigin)
	}

	routeAdder.Add(app, cfg)

	return app
}
