package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/db"
	"loyaltyhub/pkg/gen"
	"loyaltyhub/pkg/logger"
	"loyaltyhub/pkg/redis"
	"loyaltyhub/pkg/sequence"
	"loyaltyhub/services/bootstrap"
	"loyaltyhub/services/loyalty"
	"loyaltyhub/services/user"
)

const timeout = 2 * time.Minute

// migrate creates or updates the schema, then seeds the default voucher
// config and the admin user, and exits.
func main() {
	var b *bootstrap.Service

	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		gen.Module,
		user.Module,
		loyalty.Module,
		fx.Provide(bootstrap.NewService),
		fx.Populate(&b),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		log.Fatalf("fx: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		log.Fatalf("start: %v", err)
	}
	defer func() {
		if err := app.Stop(context.Background()); err != nil {
			zap.L().Warn("[migrate] stop failed", zap.Error(err))
		}
	}()

	if err := b.Migrate(ctx); err != nil {
		zap.L().Fatal("[migrate] migration failed", zap.Error(err))
	}
	if err := b.Seed(ctx); err != nil {
		zap.L().Fatal("[migrate] seeding failed", zap.Error(err))
	}

	zap.L().Info("[migrate] done")
}
