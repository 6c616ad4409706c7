package tenantapp

import (
	"net/http"

	"github.com/jcpaschoal/spi-agenda/app/sdk/auth"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/business/domain/aclbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/business/types/actions"
	"github.com/jcpaschoal/spi-agenda/business/types/resource"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log       *logger.Logger
	Auth      *auth.Auth
	ACLBus    *aclbus.Core
	TenantBus *tenantbus.Core
	Beginner  sqldb.Beginner
	TxRetries int
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	authen := mid.Authenticate(cfg.Log, cfg.Auth)
	transaction := mid.BeginCommitRollback(cfg.Log, cfg.Beginner, cfg.TxRetries)
	members := mid.AuthorizeAction(cfg.Log, cfg.ACLBus, resource.Tenant, actions.Update)

	api := newApp(cfg.TenantBus)

	app.HandlerFunc(http.MethodGet, version, "/tenants", api.query, authen)
	app.HandlerFunc(http.MethodPost, version, "/tenants", api.create, authen, mid.Authorize(cfg.Log, cfg.ACLBus, resource.Tenant), transaction)
	app.HandlerFunc(http.MethodPost, version, "/tenants/{tenant_id}/members", api.addMember, authen, members, transaction)
	app.HandlerFunc(http.MethodDelete, version, "/tenants/{tenant_id}/members/{user_id}", api.removeMember, authen, members, transaction)
}
