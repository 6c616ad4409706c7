// Package all binds all the routes into the specified app.
package all

import (
	"github.com/jcpaschoal/spi-agenda/app/domain/auditapp"
	"github.com/jcpaschoal/spi-agenda/app/domain/authapp"
	"github.com/jcpaschoal/spi-agenda/app/domain/bookingapp"
	"github.com/jcpaschoal/spi-agenda/app/domain/checkapp"
	"github.com/jcpaschoal/spi-agenda/app/domain/resourceapp"
	"github.com/jcpaschoal/spi-agenda/app/domain/tenantapp"
	"github.com/jcpaschoal/spi-agenda/app/domain/userapp"
	"github.com/jcpaschoal/spi-agenda/app/domain/webhookapp"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mux"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
)

// Routes constructs the add value which provides the implementation of
// of RouteAdder for specifying what routes to bind to this instance.
func Routes() add {
	return add{}
}

type add struct{}

// Add implements the RouterAdder interface.
func (add) Add(app *web.App, cfg mux.Config) {
	bus := cfg.BusConfig
	beginner := sqldb.NewBeginner(cfg.DB)

	checkapp.Routes(app, checkapp.Config{
		Build: cfg.Build,
		Log:   cfg.Log,
		DB:    cfg.DB,
	})

	authapp.Routes(app, authapp.Config{
		Log:       cfg.Log,
		Auth:      cfg.AuthConfig.Auth,
		ActiveKID: cfg.AuthConfig.ActiveKID,
		UserBus:   bus.UserBus,
		TenantBus: bus.TenantBus,
	})

	tenantapp.Routes(app, tenantapp.Config{
		Log:       cfg.Log,
		Auth:      cfg.AuthConfig.Auth,
		ACLBus:    bus.ACLBus,
		TenantBus: bus.TenantBus,
		Beginner:  beginner,
		TxRetries: cfg.TxRetries,
	})

	userapp.Routes(app, userapp.Config{
		Log:       cfg.Log,
		Auth:      cfg.AuthConfig.Auth,
		ACLBus:    bus.ACLBus,
		UserBus:   bus.UserBus,
		TenantBus: bus.TenantBus,
		Beginner:  beginner,
		TxRetries: cfg.TxRetries,
	})

	resourceapp.Routes(app, resourceapp.Config{
		Log:         cfg.Log,
		Auth:        cfg.AuthConfig.Auth,
		ACLBus:      bus.ACLBus,
		ResourceBus: bus.ResourceBus,
		Beginner:    beginner,
		TxRetries:   cfg.TxRetries,
	})

	bookingapp.Routes(app, bookingapp.Config{
		Log:        cfg.Log,
		Auth:       cfg.AuthConfig.Auth,
		ACLBus:     bus.ACLBus,
		BookingBus: bus.BookingBus,
		Beginner:   beginner,
		TxRetries:  cfg.TxRetries,
	})

	auditapp.Routes(app, auditapp.Config{
		Log:      cfg.Log,
		Auth:     cfg.AuthConfig.Auth,
		ACLBus:   bus.ACLBus,
		AuditBus: bus.AuditBus,
	})

	webhookapp.Routes(app, webhookapp.Config{
		Log:        cfg.Log,
		Secrets:    cfg.WebhookConfig.Secrets,
		InboxBus:   bus.InboxBus,
		BookingBus: bus.BookingBus,
		Beginner:   beginner,
		TxRetries:  cfg.TxRetries,
	})
}
