package webhookapp

import (
	"net/http"

	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/inboxbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log        *logger.Logger
	Secrets    map[string]string
	InboxBus   *inboxbus.Core
	BookingBus *bookingbus.Core
	Beginner   sqldb.Beginner
	TxRetries  int
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	transaction := mid.BeginCommitRollback(cfg.Log, cfg.Beginner, cfg.TxRetries)

	api := newApp(cfg.Log, cfg.Secrets, cfg.InboxBus, cfg.BookingBus)

	app.HandlerFunc(http.MethodPost, version, "/webhooks/{provider}", api.receive, transaction)
}
