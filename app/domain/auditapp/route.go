package auditapp

import (
	"net/http"

	"github.com/jcpaschoal/spi-agenda/app/sdk/auth"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/business/domain/aclbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/business/types/resource"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log      *logger.Logger
	Auth     *auth.Auth
	ACLBus   *aclbus.Core
	AuditBus *auditbus.Core
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	authen := mid.Authenticate(cfg.Log, cfg.Auth)
	authorize := mid.Authorize(cfg.Log, cfg.ACLBus, resource.Audit)

	api := newApp(cfg.AuditBus)

	app.HandlerFunc(http.MethodGet, version, "/audit", api.query, authen, authorize)
}
