package loyalty

import (
	"context"
	"errors"
	"time"

	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/db/option"
	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/logger"
	"loyaltyhub/pkg/metrics"
	"loyaltyhub/pkg/repository"
	"loyaltyhub/pkg/sequence"
	"loyaltyhub/pkg/task"
	"loyaltyhub/services/customer"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("loyaltyhub/services/loyalty")

type Clock func() time.Time

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	codes    sequence.Generator
	enqueuer task.Enqueuer
	now      Clock
	defaults Defaults
	queue    string

	configGroup singleflight.Group

	customer repository.Repository[customer.Customer]
	purchase repository.Repository[Purchase]
	voucher  repository.Repository[Voucher]
	config   repository.Repository[VoucherConfig]
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Codes    sequence.Generator
	Defaults Defaults
	Config   *config.Config `optional:"true"`
	Enqueuer task.Enqueuer  `optional:"true"`
	Clock    Clock          `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:       p.DB,
		node:     p.Node,
		codes:    p.Codes,
		enqueuer: p.Enqueuer,
		now:      p.Clock,
		defaults: p.Defaults,
		queue:    "loyalty",

		customer: repository.ProvideStore[customer.Customer](p.DB),
		purchase: repository.ProvideStore[Purchase](p.DB),
		voucher:  repository.ProvideStore[Voucher](p.DB),
		config:   repository.ProvideStore[VoucherConfig](p.DB),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if p.Config != nil && p.Config.Loyalty.NotifyQueue != "" {
		s.queue = p.Config.Loyalty.NotifyQueue
	}
	return s
}

// MakePurchase records a purchase for customerID, redeeming voucherIDs, and
// issues a voucher when the customer's accumulated spend reaches the
// configured threshold. Everything happens in one transaction with the
// customer row locked, so concurrent purchases of one customer serialize.
func (s *Service) MakePurchase(ctx context.Context, customerID int64, amount decimal.Decimal, voucherIDs []int64) (*Purchase, error) {
	ctx, span := tracer.Start(ctx, "loyalty.MakePurchase")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("customer.id", customerID),
		attribute.String("purchase.amount", amount.String()),
		attribute.Int("purchase.voucher_count", len(voucherIDs)),
	)

	zapLog := logger.FromContext(ctx).With(zap.Int64("customer_id", customerID))

	purchase, err := s.makePurchase(ctx, customerID, amount, voucherIDs)
	if err != nil {
		be := errutil.From(err)
		metrics.PurchaseFailures.WithLabelValues(string(be.Code)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, be.Message)
		if be.Code == errutil.StatusInternal {
			zapLog.Error("failed to make purchase", zap.Error(err))
		} else {
			zapLog.Info("purchase rejected", zap.Error(err))
		}
		return nil, be
	}

	metrics.PurchasesTotal.Inc()
	metrics.PurchaseAmountTotal.Add(purchase.Amount.InexactFloat64())
	metrics.VouchersRedeemed.Add(float64(len(purchase.RedeemedVoucherIDs)))

	fields := []zap.Field{
		zap.Int64("purchase_id", purchase.ID),
		zap.String("amount", purchase.Amount.String()),
		zap.Int("redeemed", len(purchase.RedeemedVoucherIDs)),
	}
	if v := purchase.IssuedVoucher; v != nil {
		metrics.VouchersIssued.Inc()
		fields = append(fields, zap.Int64("voucher_id", v.ID), zap.String("voucher_code", v.Code))
		s.enqueueVoucherIssued(ctx, v)
	}
	zapLog.Info("purchase recorded", fields...)

	return purchase, nil
}

func (s *Service) makePurchase(ctx context.Context, customerID int64, amount decimal.Decimal, voucherIDs []int64) (*Purchase, error) {
	if customerID <= 0 {
		return nil, errutil.NotFound("customer not found", nil)
	}

	if !amount.IsPositive() {
		return nil, errutil.BadRequest("invalid purchase amount", nil,
			errutil.WithDetails(errutil.Detail{Field: "amount", Message: "must be greater than zero"}))
	}
	if !isCents(amount) {
		return nil, errutil.BadRequest("invalid purchase amount", nil,
			errutil.WithDetails(errutil.Detail{Field: "amount", Message: "must have at most two decimal places"}))
	}

	seen := make(map[int64]struct{}, len(voucherIDs))
	for _, id := range voucherIDs {
		if _, ok := seen[id]; ok {
			return nil, invalidVoucher(id, reasonDuplicate)
		}
		seen[id] = struct{}{}
	}

	var purchase *Purchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := s.lockCustomer(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if owner == nil {
			return errutil.NotFound("customer not found", nil)
		}

		cfg, err := s.loadConfig(ctx, tx)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		purchase = &Purchase{
			ID:                 s.node.Generate().Int64(),
			CustomerID:         customerID,
			Amount:             amount,
			RedeemedVoucherIDs: append([]int64{}, voucherIDs...),
			CreatedAt:          now,
		}

		for _, id := range voucherIDs {
			if err := s.redeem(ctx, tx, customerID, id, purchase.ID, now); err != nil {
				return err
			}
		}

		// accumulated spend before this purchase
		acc, err := s.accumulated(ctx, tx, customerID)
		if err != nil {
			return err
		}

		if err := s.purchase.WithTrx(tx).Create(ctx, purchase); err != nil {
			return err
		}

		acc = acc.Add(amount)
		threshold := cfg.PurchaseAmount
		if !threshold.IsPositive() || acc.LessThan(threshold) {
			return nil
		}

		code, err := s.codes.NextVoucherCode(ctx)
		if err != nil {
			return err
		}

		voucher := &Voucher{
			ID:              s.node.Generate().Int64(),
			Code:            code,
			CustomerID:      customerID,
			PurchaseID:      purchase.ID,
			Value:           cfg.VoucherValue,
			ThresholdAmount: acc.Div(threshold).Floor().Mul(threshold),
			IssuedAt:        now,
			ExpiresAt:       now.Add(cfg.Duration()),
		}
		if err := s.voucher.WithTrx(tx).Create(ctx, voucher); err != nil {
			return err
		}

		purchase.IssuedVoucher = voucher
		return nil
	})
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) {
			return nil, be
		}
		if transient(err) {
			return nil, errutil.Conflict("purchase conflicted with a concurrent update, retry", err)
		}
		return nil, errutil.Internal("failed to make purchase", err)
	}

	return purchase, nil
}

// lockCustomer loads the customer row with SELECT ... FOR UPDATE so purchases
// for one customer run one at a time.
func (s *Service) lockCustomer(ctx context.Context, tx *gorm.DB, customerID int64) (*customer.Customer, error) {
	return s.customer.WithTrx(tx).FindOne(ctx, &customer.Customer{ID: customerID}, option.WithLockingUpdate())
}

// redeem marks one voucher redeemed by purchaseID. The guarded update keeps a
// voucher from being redeemed twice even without the customer lock.
func (s *Service) redeem(ctx context.Context, tx *gorm.DB, customerID, voucherID, purchaseID int64, now time.Time) error {
	if voucherID <= 0 {
		return invalidVoucher(voucherID, reasonUnknown)
	}

	v, err := s.voucher.WithTrx(tx).FindOne(ctx, &Voucher{ID: voucherID})
	if err != nil {
		return err
	}

	switch {
	case v == nil || v.CustomerID != customerID:
		return invalidVoucher(voucherID, reasonUnknown)
	case v.Status(now) == VoucherRedeemed:
		return invalidVoucher(voucherID, reasonRedeemed)
	case v.Status(now) == VoucherExpired:
		return invalidVoucher(voucherID, reasonExpired)
	}

	res := tx.WithContext(ctx).
		Model(&Voucher{}).
		Where("id = ? AND redeemed_at IS NULL", voucherID).
		Updates(map[string]any{
			"redeemed_at":          now,
			"redeemed_purchase_id": purchaseID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return invalidVoucher(voucherID, reasonRedeemed)
	}
	return nil
}

// accumulated is the customer's spend not yet consumed by an issued voucher.
func (s *Service) accumulated(ctx context.Context, tx *gorm.DB, customerID int64) (decimal.Decimal, error) {
	var spent, consumed decimal.Decimal

	if err := tx.WithContext(ctx).
		Model(&Purchase{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("customer_id = ?", customerID).
		Row().Scan(&spent); err != nil {
		return decimal.Zero, err
	}

	if err := tx.WithContext(ctx).
		Model(&Voucher{}).
		Select("COALESCE(SUM(threshold_amount), 0)").
		Where("customer_id = ?", customerID).
		Row().Scan(&consumed); err != nil {
		return decimal.Zero, err
	}

	return spent.Sub(consumed).Round(2), nil
}
