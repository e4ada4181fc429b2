package bootstrap

import (
	"context"
	"fmt"

	"loyaltyhub/pkg/config"
	"loyaltyhub/services/customer"
	"loyaltyhub/services/loyalty"
	"loyaltyhub/services/user"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	config  *config.Config
	loyalty *loyalty.Service
	user    *user.Service
}

type ServiceParams struct {
	fx.In

	DB      *gorm.DB
	Config  *config.Config
	Loyalty *loyalty.Service
	User    *user.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		config:  p.Config,
		loyalty: p.Loyalty,
		user:    p.User,
	}
}

// Models lists every table, in migration order.
func Models() []any {
	models := []any{&user.User{}, &customer.Customer{}}
	return append(models, loyalty.Models()...)
}

func (s *Service) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	zap.L().Info("[bootstrap] Schema migrated", zap.Int("tables", len(Models())))
	return nil
}

// Run migrates the schema when enabled and seeds the defaults.
func (s *Service) Run(ctx context.Context) error {
	if s.config.Database.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			return err
		}
	}
	return s.Seed(ctx)
}

// Seed persists the default voucher config and creates the first admin user.
// A missing admin password only logs a warning.
func (s *Service) Seed(ctx context.Context) error {
	if err := s.loyalty.EnsureConfig(ctx); err != nil {
		return err
	}

	admin := s.config.Admin
	created, err := s.user.Bootstrap(ctx, admin.Username, admin.Password, admin.Email)
	if err != nil {
		zap.L().Warn("[bootstrap] Admin user not created", zap.Error(err))
		return nil
	}
	if created {
		zap.L().Info("[bootstrap] Admin user created", zap.String("username", admin.Username))
	}
	return nil
}
