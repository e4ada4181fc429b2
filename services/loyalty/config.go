package loyalty

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Defaults is the voucher configuration used until one is persisted.
type Defaults struct {
	PurchaseAmount  decimal.Decimal
	VoucherValue    decimal.Decimal
	VoucherDuration float64
}

func ProvideDefaults(cfg *config.Config) (Defaults, error) {
	d := Defaults{
		PurchaseAmount:  decimal.NewFromFloat(cfg.Loyalty.PurchaseAmount),
		VoucherValue:    decimal.NewFromFloat(cfg.Loyalty.VoucherValue),
		VoucherDuration: cfg.Loyalty.VoucherDuration,
	}
	if err := validateConfig(d.PurchaseAmount, d.VoucherValue, d.VoucherDuration); err != nil {
		return Defaults{}, fmt.Errorf("loyalty defaults: %w", err)
	}
	return d, nil
}

func (d Defaults) config() *VoucherConfig {
	return &VoucherConfig{
		ID:              configSingletonID,
		PurchaseAmount:  d.PurchaseAmount,
		VoucherValue:    d.VoucherValue,
		VoucherDuration: d.VoucherDuration,
	}
}

// maxVoucherDuration is the longest duration, in seconds, a time.Duration holds.
const maxVoucherDuration = float64(math.MaxInt64 / int64(time.Second))

func validateConfig(purchaseAmount, voucherValue decimal.Decimal, voucherDuration float64) error {
	var details []errutil.Detail
	switch {
	case purchaseAmount.IsNegative():
		details = append(details, errutil.Detail{Field: "purchase_amount", Message: "must be non-negative"})
	case !isCents(purchaseAmount):
		details = append(details, errutil.Detail{Field: "purchase_amount", Message: "must have at most two decimal places"})
	}
	switch {
	case voucherValue.IsNegative():
		details = append(details, errutil.Detail{Field: "voucher_value", Message: "must be non-negative"})
	case !isCents(voucherValue):
		details = append(details, errutil.Detail{Field: "voucher_value", Message: "must have at most two decimal places"})
	}
	switch {
	case !(voucherDuration >= 0):
		details = append(details, errutil.Detail{Field: "voucher_duration", Message: "must be non-negative"})
	case voucherDuration > maxVoucherDuration:
		details = append(details, errutil.Detail{
			Field:   "voucher_duration",
			Message: fmt.Sprintf("must not exceed %.0f seconds", maxVoucherDuration),
		})
	}
	if len(details) > 0 {
		return errutil.BadRequest("invalid voucher config", nil, errutil.WithDetails(details...))
	}
	return nil
}

// GetConfig returns the persisted voucher configuration, or the defaults when
// none has been stored yet.
func (s *Service) GetConfig(ctx context.Context) (*VoucherConfig, error) {
	ctx, span := tracer.Start(ctx, "loyalty.GetConfig")
	defer span.End()

	v, err, _ := s.configGroup.Do("config", func() (any, error) {
		return s.loadConfig(ctx, s.db)
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to load voucher config", zap.Error(err))
		return nil, errutil.Internal("failed to load voucher config", err)
	}

	cfg := *v.(*VoucherConfig)
	return &cfg, nil
}

func (s *Service) loadConfig(ctx context.Context, tx *gorm.DB) (*VoucherConfig, error) {
	cfg, err := s.config.WithTrx(tx).FindOne(ctx, &VoucherConfig{ID: configSingletonID})
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return s.defaults.config(), nil
	}
	return cfg, nil
}

// SetConfig replaces the voucher configuration. Already issued vouchers keep
// their value and expiry.
func (s *Service) SetConfig(ctx context.Context, purchaseAmount, voucherValue decimal.Decimal, voucherDuration float64) (*VoucherConfig, error) {
	ctx, span := tracer.Start(ctx, "loyalty.SetConfig")
	defer span.End()

	if err := validateConfig(purchaseAmount, voucherValue, voucherDuration); err != nil {
		return nil, err
	}

	cfg := &VoucherConfig{
		ID:              configSingletonID,
		PurchaseAmount:  purchaseAmount,
		VoucherValue:    voucherValue,
		VoucherDuration: voucherDuration,
		UpdatedAt:       s.now().UTC(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"purchase_amount", "voucher_value", "voucher_duration", "updated_at"}),
	}).Create(cfg).Error
	if err != nil {
		logger.FromContext(ctx).Error("failed to store voucher config", zap.Error(err))
		return nil, errutil.Internal("failed to store voucher config", err)
	}

	logger.FromContext(ctx).Info("voucher config updated",
		zap.String("purchase_amount", cfg.PurchaseAmount.String()),
		zap.String("voucher_value", cfg.VoucherValue.String()),
		zap.Float64("voucher_duration", cfg.VoucherDuration),
	)

	return cfg, nil
}

// EnsureConfig persists the defaults when no configuration row exists, so the
// unset state is resolved once at startup.
func (s *Service) EnsureConfig(ctx context.Context) error {
	cfg := s.defaults.config()
	cfg.UpdatedAt = s.now().UTC()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(cfg).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("ensure voucher config: %w", err)
	}
	return nil
}
