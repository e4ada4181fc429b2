package loyalty

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Purchase struct {
	ID                 int64                      `gorm:"column:id;primaryKey;autoIncrement:false"`
	CustomerID         int64                      `gorm:"column:customer_id;index;not null"`
	Amount             decimal.Decimal            `gorm:"column:amount;type:numeric(20,2);not null"`
	RedeemedVoucherIDs datatypes.JSONSlice[int64] `gorm:"column:redeemed_voucher_ids"`
	CreatedAt          time.Time                  `gorm:"column:created_at;index"`

	// IssuedVoucher is set by MakePurchase when the purchase crossed the threshold.
	IssuedVoucher *Voucher `gorm:"-"`
}

func (Purchase) TableName() string {
	return "purchases"
}

type VoucherStatus string

const (
	VoucherActive   VoucherStatus = "active"
	VoucherRedeemed VoucherStatus = "redeemed"
	VoucherExpired  VoucherStatus = "expired"
)

type Voucher struct {
	ID                 int64           `gorm:"column:id;primaryKey;autoIncrement:false"`
	Code               string          `gorm:"column:code;type:varchar(32);uniqueIndex;not null"`
	CustomerID         int64           `gorm:"column:customer_id;index;not null"`
	PurchaseID         int64           `gorm:"column:purchase_id;index;not null"`
	Value              decimal.Decimal `gorm:"column:value;type:numeric(20,2);not null"`
	ThresholdAmount    decimal.Decimal `gorm:"column:threshold_amount;type:numeric(20,2);not null"`
	IssuedAt           time.Time       `gorm:"column:issued_at;not null"`
	ExpiresAt          time.Time       `gorm:"column:expires_at;index;not null"`
	RedeemedAt         *time.Time      `gorm:"column:redeemed_at"`
	RedeemedPurchaseID *int64          `gorm:"column:redeemed_purchase_id"`
	NotifiedAt         *time.Time      `gorm:"column:notified_at"`
}

func (Voucher) TableName() string {
	return "vouchers"
}

// Status is evaluated lazily against now; nothing flips a stored flag on expiry.
func (v *Voucher) Status(now time.Time) VoucherStatus {
	switch {
	case v.RedeemedAt != nil:
		return VoucherRedeemed
	case !now.Before(v.ExpiresAt):
		return VoucherExpired
	default:
		return VoucherActive
	}
}

const configSingletonID = 1

type VoucherConfig struct {
	ID              int64           `gorm:"column:id;primaryKey;autoIncrement:false"`
	PurchaseAmount  decimal.Decimal `gorm:"column:purchase_amount;type:numeric(20,2);not null"`
	VoucherValue    decimal.Decimal `gorm:"column:voucher_value;type:numeric(20,2);not null"`
	VoucherDuration float64         `gorm:"column:voucher_duration;not null"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (VoucherConfig) TableName() string {
	return "voucher_configs"
}

// isCents reports whether d fits the two decimal places amounts are stored with.
func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func (c *VoucherConfig) Duration() time.Duration {
	return time.Duration(c.VoucherDuration * float64(time.Second))
}

// Models lists every table owned by this package, in migration order.
func Models() []any {
	return []any{&VoucherConfig{}, &Purchase{}, &Voucher{}}
}

type PurchaseJSON struct {
	ID                 string       `json:"id"`
	CustomerID         string       `json:"customer_id"`
	Amount             string       `json:"amount"`
	RedeemedVoucherIDs []string     `json:"redeemed_voucher_ids"`
	CreatedAt          time.Time    `json:"created_at"`
	IssuedVoucher      *VoucherJSON `json:"issued_voucher,omitempty"`
}

func (p *Purchase) ToJSON() PurchaseJSON {
	out := PurchaseJSON{
		ID:                 formatID(p.ID),
		CustomerID:         formatID(p.CustomerID),
		Amount:             p.Amount.StringFixed(2),
		RedeemedVoucherIDs: make([]string, 0, len(p.RedeemedVoucherIDs)),
		CreatedAt:          p.CreatedAt,
	}
	for _, id := range p.RedeemedVoucherIDs {
		out.RedeemedVoucherIDs = append(out.RedeemedVoucherIDs, formatID(id))
	}
	if p.IssuedVoucher != nil {
		v := p.IssuedVoucher.ToJSON(p.CreatedAt)
		out.IssuedVoucher = &v
	}
	return out
}

type VoucherJSON struct {
	ID                 string        `json:"id"`
	Code               string        `json:"code"`
	CustomerID         string        `json:"customer_id"`
	PurchaseID         string        `json:"purchase_id"`
	Value              string        `json:"value"`
	Status             VoucherStatus `json:"status"`
	IssuedAt           time.Time     `json:"issued_at"`
	ExpiresAt          time.Time     `json:"expires_at"`
	RedeemedAt         *time.Time    `json:"redeemed_at,omitempty"`
	RedeemedPurchaseID string        `json:"redeemed_purchase_id,omitempty"`
}

func (v *Voucher) ToJSON(now time.Time) VoucherJSON {
	out := VoucherJSON{
		ID:         formatID(v.ID),
		Code:       v.Code,
		CustomerID: formatID(v.CustomerID),
		PurchaseID: formatID(v.PurchaseID),
		Value:      v.Value.StringFixed(2),
		Status:     v.Status(now),
		IssuedAt:   v.IssuedAt,
		ExpiresAt:  v.ExpiresAt,
		RedeemedAt: v.RedeemedAt,
	}
	if v.RedeemedPurchaseID != nil {
		out.RedeemedPurchaseID = formatID(*v.RedeemedPurchaseID)
	}
	return out
}

type VoucherConfigJSON struct {
	PurchaseAmount  string     `json:"purchase_amount"`
	VoucherValue    string     `json:"voucher_value"`
	VoucherDuration float64    `json:"voucher_duration"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

func (c *VoucherConfig) ToJSON() VoucherConfigJSON {
	out := VoucherConfigJSON{
		PurchaseAmount:  c.PurchaseAmount.StringFixed(2),
		VoucherValue:    c.VoucherValue.StringFixed(2),
		VoucherDuration: c.VoucherDuration,
	}
	if !c.UpdatedAt.IsZero() {
		out.UpdatedAt = &c.UpdatedAt
	}
	return out
}

type Balance struct {
	CustomerID     int64
	Accumulated    decimal.Decimal
	Threshold      decimal.Decimal
	ActiveVouchers int64
}

type BalanceJSON struct {
	CustomerID     string `json:"customer_id"`
	Accumulated    string `json:"accumulated"`
	Threshold      string `json:"threshold"`
	Remaining      string `json:"remaining"`
	ActiveVouchers int64  `json:"active_vouchers"`
}

func (b *Balance) ToJSON() BalanceJSON {
	remaining := decimal.Zero
	if b.Threshold.IsPositive() {
		remaining = b.Threshold.Sub(b.Accumulated)
	}
	return BalanceJSON{
		CustomerID:     formatID(b.CustomerID),
		Accumulated:    b.Accumulated.StringFixed(2),
		Threshold:      b.Threshold.StringFixed(2),
		Remaining:      remaining.StringFixed(2),
		ActiveVouchers: b.ActiveVouchers,
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
