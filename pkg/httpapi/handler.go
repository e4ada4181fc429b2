package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/db/pagination"
	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/middleware"
	"loyaltyhub/services/customer"
	"loyaltyhub/services/loyalty"
	"loyaltyhub/services/user"

	"github.com/gin-gonic/gin"
)

type handler struct {
	cfg       *config.Config
	customers *customer.Service
	loyalty   *loyalty.Service
	users     *user.Service
	now       loyalty.Clock
}

func newHandler(p RouterParams) *handler {
	h := &handler{
		cfg:       p.Config,
		customers: p.Customers,
		loyalty:   p.Loyalty,
		users:     p.Users,
		now:       p.Clock,
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

type listResponse[T any] struct {
	Data     []T                  `json:"data"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

// render writes an HTML page for browsers and the JSON payload for everyone
// else. data is extended with the current principal for the page header.
func render(c *gin.Context, status int, page string, data gin.H, payload any) {
	if middleware.PrefersHTML(c) {
		if data == nil {
			data = gin.H{}
		}
		data["Principal"] = middleware.CurrentPrincipal(c)
		c.HTML(status, page, data)
		return
	}
	c.JSON(status, payload)
}

// redirectOr sends browsers to location after a form post and answers API
// clients with the payload.
func redirectOr(c *gin.Context, location string, status int, payload any) {
	if middleware.PrefersHTML(c) {
		c.Redirect(http.StatusSeeOther, location)
		return
	}
	c.JSON(status, payload)
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func paramID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errutil.NotFound("invalid "+name, err)
	}
	return id, nil
}

func bindError(err error) error {
	return errutil.BadRequest("malformed request", err, errutil.WithDetails(errutil.Detail{
		Field:   "body",
		Message: err.Error(),
	}))
}

func (h *handler) authenticate(token string) (*middleware.Principal, error) {
	claims, err := h.users.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return &middleware.Principal{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     string(claims.Role),
	}, nil
}

func (h *handler) notFound(c *gin.Context) {
	fail(c, errutil.NotFound("page not found", nil))
}

func (h *handler) home(c *gin.Context) {
	ctx := c.Request.Context()

	cfg, err := h.loyalty.GetConfig(ctx)
	if err != nil {
		fail(c, err)
		return
	}

	p := middleware.CurrentPrincipal(c)
	payload := gin.H{
		"user": gin.H{
			"id":       strconv.FormatInt(p.UserID, 10),
			"username": p.Username,
			"role":     p.Role,
		},
		"config": cfg.ToJSON(),
	}

	if !middleware.PrefersHTML(c) {
		c.JSON(http.StatusOK, payload)
		return
	}

	purchases, _, err := h.loyalty.ListPurchases(ctx, loyalty.ListFilter{
		Pagination: pagination.Pagination{Limit: 10},
	})
	if err != nil {
		fail(c, err)
		return
	}

	render(c, http.StatusOK, "home.html", gin.H{
		"Title":     "Home",
		"Config":    cfg.ToJSON(),
		"Purchases": purchaseViews(purchases),
	}, payload)
}
