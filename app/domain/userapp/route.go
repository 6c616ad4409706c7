package userapp

import (
	"net/http"

	"github.com/jcpaschoal/spi-agenda/app/sdk/auth"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/business/domain/aclbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/business/types/resource"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log       *logger.Logger
	Auth      *auth.Auth
	ACLBus    *aclbus.Core
	UserBus   *userbus.Core
	TenantBus *tenantbus.Core
	Beginner  sqldb.Beginner
	TxRetries int
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	authen := mid.Authenticate(cfg.Log, cfg.Auth)
	authorize := mid.Authorize(cfg.Log, cfg.ACLBus, resource.User)
	transaction := mid.BeginCommitRollback(cfg.Log, cfg.Beginner, cfg.TxRetries)

	api := newApp(cfg.UserBus, cfg.TenantBus)

	app.HandlerFunc(http.MethodGet, version, "/users", api.query, authen, authorize)
	app.HandlerFunc(http.MethodGet, version, "/users/{user_id}", api.queryByID, authen, authorize)
	app.HandlerFunc(http.MethodPost, version, "/users", api.create, authen, authorize, transaction)
	app.HandlerFunc(http.MethodPut, version, "/users/{user_id}", api.update, authen, authorize, transaction)
}
