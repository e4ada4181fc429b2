package loyalty

import (
	"context"

	"loyaltyhub/pkg/db/option"
	"loyaltyhub/pkg/db/pagination"
	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/logger"
	"loyaltyhub/services/customer"

	"go.uber.org/zap"
)

type ListFilter struct {
	CustomerID int64 `form:"customer_id"`
	pagination.Pagination
}

func (s *Service) GetPurchase(ctx context.Context, id int64) (*Purchase, error) {
	ctx, span := tracer.Start(ctx, "loyalty.GetPurchase")
	defer span.End()

	if id <= 0 {
		return nil, errutil.NotFound("purchase not found", nil)
	}

	p, err := s.purchase.FindOne(ctx, &Purchase{ID: id})
	if err != nil {
		logger.FromContext(ctx).Error("failed to query purchase", zap.Int64("purchase_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to get purchase", err)
	}
	if p == nil {
		return nil, errutil.NotFound("purchase not found", nil)
	}

	// the voucher this purchase issued, if any
	v, err := s.voucher.FindOne(ctx, &Voucher{PurchaseID: p.ID})
	if err != nil {
		return nil, errutil.Internal("failed to get purchase", err)
	}
	p.IssuedVoucher = v

	return p, nil
}

func (s *Service) ListPurchases(ctx context.Context, filter ListFilter) ([]*Purchase, *pagination.PageInfo, error) {
	ctx, span := tracer.Start(ctx, "loyalty.ListPurchases")
	defer span.End()

	page := filter.Normalize()
	opts, err := page.Options()
	if err != nil {
		return nil, nil, errutil.BadRequest("invalid cursor", err)
	}

	purchases, err := s.purchase.Find(ctx, &Purchase{CustomerID: filter.CustomerID}, opts...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list purchases", zap.Error(err))
		return nil, nil, errutil.Internal("failed to list purchases", err)
	}

	purchases, info := pagination.Paginate(purchases, page.Limit, func(p *Purchase) int64 { return p.ID })
	return purchases, info, nil
}

func (s *Service) GetVoucher(ctx context.Context, id int64) (*Voucher, error) {
	ctx, span := tracer.Start(ctx, "loyalty.GetVoucher")
	defer span.End()

	if id <= 0 {
		return nil, errutil.NotFound("voucher not found", nil)
	}

	v, err := s.voucher.FindOne(ctx, &Voucher{ID: id})
	if err != nil {
		logger.FromContext(ctx).Error("failed to query voucher", zap.Int64("voucher_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to get voucher", err)
	}
	if v == nil {
		return nil, errutil.NotFound("voucher not found", nil)
	}
	return v, nil
}

func (s *Service) ListVouchers(ctx context.Context, filter ListFilter) ([]*Voucher, *pagination.PageInfo, error) {
	ctx, span := tracer.Start(ctx, "loyalty.ListVouchers")
	defer span.End()

	page := filter.Normalize()
	opts, err := page.Options()
	if err != nil {
		return nil, nil, errutil.BadRequest("invalid cursor", err)
	}

	vouchers, err := s.voucher.Find(ctx, &Voucher{CustomerID: filter.CustomerID}, opts...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list vouchers", zap.Error(err))
		return nil, nil, errutil.Internal("failed to list vouchers", err)
	}

	vouchers, info := pagination.Paginate(vouchers, page.Limit, func(v *Voucher) int64 { return v.ID })
	return vouchers, info, nil
}

// GetBalance reports the customer's unrewarded spend and how many vouchers
// are still redeemable.
func (s *Service) GetBalance(ctx context.Context, customerID int64) (*Balance, error) {
	ctx, span := tracer.Start(ctx, "loyalty.GetBalance")
	defer span.End()

	if customerID <= 0 {
		return nil, errutil.NotFound("customer not found", nil)
	}

	owner, err := s.customer.FindOne(ctx, &customer.Customer{ID: customerID})
	if err != nil {
		return nil, errutil.Internal("failed to get balance", err)
	}
	if owner == nil {
		return nil, errutil.NotFound("customer not found", nil)
	}

	acc, err := s.accumulated(ctx, s.db, customerID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to compute accumulated spend", zap.Int64("customer_id", customerID), zap.Error(err))
		return nil, errutil.Internal("failed to get balance", err)
	}

	active, err := s.voucher.Count(ctx, &Voucher{CustomerID: customerID},
		option.ApplyOperator(
			option.Condition{Field: "redeemed_at", Operator: option.IsNull},
			option.Condition{Field: "expires_at", Operator: option.GT, Value: s.now().UTC()},
		),
	)
	if err != nil {
		return nil, errutil.Internal("failed to get balance", err)
	}

	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &Balance{
		CustomerID:     customerID,
		Accumulated:    acc,
		Threshold:      cfg.PurchaseAmount,
		ActiveVouchers: active,
	}, nil
}

// MarkNotified records that the customer was told about voucherID. It reports
// false when the voucher had already been marked.
func (s *Service) MarkNotified(ctx context.Context, voucherID int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "loyalty.MarkNotified")
	defer span.End()

	res := s.db.WithContext(ctx).
		Model(&Voucher{}).
		Where("id = ? AND notified_at IS NULL", voucherID).
		Update("notified_at", s.now().UTC())
	if res.Error != nil {
		return false, errutil.Internal("failed to mark voucher notified", res.Error)
	}
	return res.RowsAffected == 1, nil
}
