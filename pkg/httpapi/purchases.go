package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"loyaltyhub/pkg/errutil"
	"loyaltyhub/services/loyalty"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// flexID accepts an identifier sent either as a JSON number or a string.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = flexID(n.String())
	return nil
}

type purchaseRequest struct {
	CustomerID flexID          `json:"customer_id" form:"customer_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" form:"amount"`
	VoucherIDs []flexID        `json:"voucher_ids" form:"voucher_ids"`
}

func (r purchaseRequest) customerID() (int64, error) {
	id, err := strconv.ParseInt(string(r.CustomerID), 10, 64)
	if err != nil {
		return 0, errutil.BadRequest("malformed request", err,
			errutil.WithDetails(errutil.Detail{Field: "customer_id", Message: "must be an integer id"}))
	}
	return id, nil
}

func (r purchaseRequest) voucherIDs() []string {
	out := make([]string, 0, len(r.VoucherIDs))
	for _, id := range r.VoucherIDs {
		out = append(out, string(id))
	}
	return out
}

func purchaseViews(purchases []*loyalty.Purchase) []loyalty.PurchaseJSON {
	out := make([]loyalty.PurchaseJSON, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, p.ToJSON())
	}
	return out
}

func (h *handler) listPurchases(c *gin.Context) {
	var filter loyalty.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		fail(c, bindError(err))
		return
	}
	h.renderPurchases(c, filter)
}

func (h *handler) renderPurchases(c *gin.Context, filter loyalty.ListFilter) {
	purchases, info, err := h.loyalty.ListPurchases(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}

	views := purchaseViews(purchases)
	render(c, http.StatusOK, "purchases.html", gin.H{
		"Title":     "Purchases",
		"Purchases": views,
		"PageInfo":  info,
	}, listResponse[loyalty.PurchaseJSON]{Data: views, PageInfo: info})
}

func (h *handler) createPurchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, bindError(err))
		return
	}

	customerID, err := req.customerID()
	if err != nil {
		fail(c, err)
		return
	}

	voucherIDs, err := loyalty.ParseVoucherIDs(req.voucherIDs())
	if err != nil {
		fail(c, err)
		return
	}

	p, err := h.loyalty.MakePurchase(c.Request.Context(), customerID, req.Amount, voucherIDs)
	if err != nil {
		fail(c, err)
		return
	}

	redirectOr(c, "/customers/"+strconv.FormatInt(p.CustomerID, 10), http.StatusCreated, p.ToJSON())
}

func (h *handler) getPurchase(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}

	p, err := h.loyalty.GetPurchase(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	view := p.ToJSON()
	render(c, http.StatusOK, "purchase.html", gin.H{
		"Title":    "Purchase " + view.ID,
		"Purchase": view,
	}, view)
}

func (h *handler) immutablePurchase(c *gin.Context) {
	fail(c, errutil.BadRequest("purchases cannot be modified or deleted", nil))
}
