package httpapi

import (
	"net/http"
	"time"

	"loyaltyhub/services/loyalty"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type configRequest struct {
	PurchaseAmount  decimal.Decimal `json:"purchase_amount" form:"purchase_amount"`
	VoucherValue    decimal.Decimal `json:"voucher_value" form:"voucher_value"`
	VoucherDuration float64         `json:"voucher_duration" form:"voucher_duration"`
}

func voucherViews(vouchers []*loyalty.Voucher, now time.Time) []loyalty.VoucherJSON {
	out := make([]loyalty.VoucherJSON, 0, len(vouchers))
	for _, v := range vouchers {
		out = append(out, v.ToJSON(now))
	}
	return out
}

func (h *handler) listVouchers(c *gin.Context) {
	var filter loyalty.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		fail(c, bindError(err))
		return
	}
	h.renderVouchers(c, filter)
}

func (h *handler) renderVouchers(c *gin.Context, filter loyalty.ListFilter) {
	vouchers, info, err := h.loyalty.ListVouchers(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}

	views := voucherViews(vouchers, h.now())
	render(c, http.StatusOK, "vouchers.html", gin.H{
		"Title":    "Vouchers",
		"Vouchers": views,
		"PageInfo": info,
	}, listResponse[loyalty.VoucherJSON]{Data: views, PageInfo: info})
}

func (h *handler) getVoucher(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}

	v, err := h.loyalty.GetVoucher(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	view := v.ToJSON(h.now())
	render(c, http.StatusOK, "voucher.html", gin.H{
		"Title":   "Voucher " + view.Code,
		"Voucher": view,
	}, view)
}

func (h *handler) getConfig(c *gin.Context) {
	cfg, err := h.loyalty.GetConfig(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	view := cfg.ToJSON()
	render(c, http.StatusOK, "config.html", gin.H{
		"Title":  "Voucher configuration",
		"Config": view,
	}, view)
}

func (h *handler) setConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, bindError(err))
		return
	}

	cfg, err := h.loyalty.SetConfig(c.Request.Context(), req.PurchaseAmount, req.VoucherValue, req.VoucherDuration)
	if err != nil {
		fail(c, err)
		return
	}

	redirectOr(c, "/vouchers/config", http.StatusOK, cfg.ToJSON())
}
