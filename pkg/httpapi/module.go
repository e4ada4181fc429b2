package httpapi

import (
	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/health"
	"loyaltyhub/pkg/metrics"
	"loyaltyhub/pkg/middleware"
	"loyaltyhub/services/customer"
	"loyaltyhub/services/loyalty"
	"loyaltyhub/services/user"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewRouter),
)

type RouterParams struct {
	fx.In

	Config    *config.Config
	Customers *customer.Service
	Loyalty   *loyalty.Service
	Users     *user.Service
	Enforcer  *casbin.Enforcer
	Health    health.HealthService
	Clock     loyalty.Clock `optional:"true"`
}

// NewRouter wires every route onto a gin engine. Responses are HTML or JSON
// depending on the Accept header.
func NewRouter(p RouterParams) (*gin.Engine, error) {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	h := newHandler(p)

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(
		metrics.Instrument(),
		middleware.RequestLogger(),
		middleware.Error(),
		middleware.Recovery(),
	)
	r.NoRoute(h.notFound)

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)
	r.GET("/metrics", metrics.Handler())

	r.GET("/login", h.loginPage)
	r.POST("/login", h.login)
	r.POST("/logout", h.logout)

	authed := r.Group("", middleware.Authenticate(p.Config.Session.Name, h.authenticate))
	authed.GET("/", h.home)

	can := func(obj, act string) gin.HandlerFunc {
		return middleware.Authorize(p.Enforcer, obj, act)
	}

	users := authed.Group("/users")
	users.GET("", can(user.ResourceUsers, user.ActionRead), h.listUsers)
	users.POST("", can(user.ResourceUsers, user.ActionWrite), h.createUser)
	users.GET("/:id", can(user.ResourceUsers, user.ActionRead), h.getUser)

	customers := authed.Group("/customers")
	customers.GET("", can(user.ResourceCustomers, user.ActionRead), h.listCustomers)
	customers.POST("", can(user.ResourceCustomers, user.ActionWrite), h.createCustomer)
	customers.GET("/:id", can(user.ResourceCustomers, user.ActionRead), h.getCustomer)
	customers.PUT("/:id", can(user.ResourceCustomers, user.ActionWrite), h.updateCustomer)
	// html forms cannot send PUT
	customers.POST("/:id", can(user.ResourceCustomers, user.ActionWrite), h.updateCustomer)
	customers.GET("/:id/purchases", can(user.ResourcePurchases, user.ActionRead), h.customerPurchases)
	customers.GET("/:id/vouchers", can(user.ResourceVouchers, user.ActionRead), h.customerVouchers)
	customers.GET("/:id/balance", can(user.ResourceCustomers, user.ActionRead), h.customerBalance)

	purchases := authed.Group("/purchases")
	purchases.GET("", can(user.ResourcePurchases, user.ActionRead), h.listPurchases)
	purchases.POST("", can(user.ResourcePurchases, user.ActionWrite), h.createPurchase)
	purchases.GET("/:id", can(user.ResourcePurchases, user.ActionRead), h.getPurchase)
	purchases.PUT("/:id", h.immutablePurchase)
	purchases.DELETE("/:id", h.immutablePurchase)

	vouchers := authed.Group("/vouchers")
	vouchers.GET("", can(user.ResourceVouchers, user.ActionRead), h.listVouchers)
	vouchers.GET("/config", can(user.ResourceConfig, user.ActionRead), h.getConfig)
	vouchers.POST("/config", can(user.ResourceConfig, user.ActionWrite), h.setConfig)
	vouchers.GET("/:id", can(user.ResourceVouchers, user.ActionRead), h.getVoucher)

	return r, nil
}
