package bookingapp

import (
	"net/http"

	"github.com/jcpaschoal/spi-agenda/app/sdk/auth"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/business/domain/aclbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/business/types/actions"
	"github.com/jcpaschoal/spi-agenda/business/types/resource"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log        *logger.Logger
	Auth       *auth.Auth
	ACLBus     *aclbus.Core
	BookingBus *bookingbus.Core
	Beginner   sqldb.Beginner
	TxRetries  int
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	authen := mid.Authenticate(cfg.Log, cfg.Auth)
	authorize := mid.Authorize(cfg.Log, cfg.ACLBus, resource.Booking)
	update := mid.AuthorizeAction(cfg.Log, cfg.ACLBus, resource.Booking, actions.Update)
	erase := mid.AuthorizeAction(cfg.Log, cfg.ACLBus, resource.Customer, actions.Delete)
	transaction := mid.BeginCommitRollback(cfg.Log, cfg.Beginner, cfg.TxRetries)

	api := newApp(cfg.BookingBus)

	app.HandlerFunc(http.MethodGet, version, "/bookings", api.query, authen, authorize)
	app.HandlerFunc(http.MethodGet, version, "/bookings/{booking_id}", api.queryByID, authen, authorize)
	app.HandlerFunc(http.MethodPost, version, "/bookings", api.propose, authen, authorize, transaction)
	app.HandlerFunc(http.MethodPut, version, "/bookings/{booking_id}/status", api.changeStatus, authen, authorize, transaction)
	app.HandlerFunc(http.MethodPost, version, "/bookings/{booking_id}/reopen", api.reopen, authen, update, transaction)
	app.HandlerFunc(http.MethodPost, version, "/bookings/{booking_id}/notes", api.appendNote, authen, update, transaction)
	app.HandlerFunc(http.MethodPost, version, "/customers/anonymize", api.anonymize, authen, erase, transaction)
}
