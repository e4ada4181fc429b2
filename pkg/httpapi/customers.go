package httpapi

import (
	"net/http"

	"loyaltyhub/pkg/db/pagination"
	"loyaltyhub/pkg/middleware"
	"loyaltyhub/services/customer"
	"loyaltyhub/services/loyalty"

	"github.com/gin-gonic/gin"
)

const customerPageSize = 10

func customerViews(customers []*customer.Customer) []customer.CustomerJSON {
	out := make([]customer.CustomerJSON, 0, len(customers))
	for _, cu := range customers {
		out = append(out, cu.ToJSON())
	}
	return out
}

func (h *handler) listCustomers(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		fail(c, bindError(err))
		return
	}

	customers, info, err := h.customers.List(c.Request.Context(), page)
	if err != nil {
		fail(c, err)
		return
	}

	views := customerViews(customers)
	render(c, http.StatusOK, "customers.html", gin.H{
		"Title":     "Customers",
		"Customers": views,
		"PageInfo":  info,
	}, listResponse[customer.CustomerJSON]{Data: views, PageInfo: info})
}

func (h *handler) createCustomer(c *gin.Context) {
	var req customer.CreateParams
	if err := c.ShouldBind(&req); err != nil {
		fail(c, bindError(err))
		return
	}

	cu, err := h.customers.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	view := cu.ToJSON()
	redirectOr(c, "/customers/"+view.ID, http.StatusCreated, view)
}

func (h *handler) getCustomer(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := paramID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}

	cu, err := h.customers.Get(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}

	view := cu.ToJSON()
	if !middleware.PrefersHTML(c) {
		c.JSON(http.StatusOK, view)
		return
	}

	balance, err := h.loyalty.GetBalance(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}

	filter := loyalty.ListFilter{
		CustomerID: id,
		Pagination: pagination.Pagination{Limit: customerPageSize},
	}

	purchases, _, err := h.loyalty.ListPurchases(ctx, filter)
	if err != nil {
		fail(c, err)
		return
	}

	vouchers, _, err := h.loyalty.ListVouchers(ctx, filter)
	if err != nil {
		fail(c, err)
		return
	}

	render(c, http.StatusOK, "customer.html", gin.H{
		"Title":     cu.FullName(),
		"Customer":  view,
		"Balance":   balance.ToJSON(),
		"Purchases": purchaseViews(purchases),
		"Vouchers":  voucherViews(vouchers, h.now()),
	}, view)
}

func (h *handler) updateCustomer(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}

	var req customer.UpdateParams
	if err := c.ShouldBind(&req); err != nil {
		fail(c, bindError(err))
		return
	}

	cu, err := h.customers.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}

	view := cu.ToJSON()
	redirectOr(c, "/customers/"+view.ID, http.StatusOK, view)
}

// customerFilter resolves the :id customer and the page query. A missing
// customer is reported as not found rather than as an empty list.
func (h *handler) customerFilter(c *gin.Context) (loyalty.ListFilter, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return loyalty.ListFilter{}, err
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		return loyalty.ListFilter{}, bindError(err)
	}

	if _, err := h.customers.Get(c.Request.Context(), id); err != nil {
		return loyalty.ListFilter{}, err
	}

	return loyalty.ListFilter{CustomerID: id, Pagination: page}, nil
}

func (h *handler) customerPurchases(c *gin.Context) {
	filter, err := h.customerFilter(c)
	if err != nil {
		fail(c, err)
		return
	}
	h.renderPurchases(c, filter)
}

func (h *handler) customerVouchers(c *gin.Context) {
	filter, err := h.customerFilter(c)
	if err != nil {
		fail(c, err)
		return
	}
	h.renderVouchers(c, filter)
}

func (h *handler) customerBalance(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}

	balance, err := h.loyalty.GetBalance(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	if middleware.PrefersHTML(c) {
		c.Redirect(http.StatusSeeOther, "/customers/"+c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, balance.ToJSON())
}
