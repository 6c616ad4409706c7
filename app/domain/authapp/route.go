package authapp

import (
	"net/http"

	"github.com/jcpaschoal/spi-agenda/app/sdk/auth"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log       *logger.Logger
	Auth      *auth.Auth
	ActiveKID string
	UserBus   *userbus.Core
	TenantBus *tenantbus.Core
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	api := newApp(cfg)

	app.HandlerFunc(http.MethodPost, version, "/auth/login", api.login)
	app.HandlerFunc(http.MethodGet, version, "/auth/session", api.tokenInfo)
}
