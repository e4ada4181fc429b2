package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/db"
	"loyaltyhub/pkg/gen"
	"loyaltyhub/pkg/logger"
	"loyaltyhub/pkg/otelcol"
	"loyaltyhub/pkg/profiling"
	"loyaltyhub/pkg/redis"
	"loyaltyhub/pkg/sequence"
	"loyaltyhub/pkg/task"
	"loyaltyhub/services/loyalty"
)

// The worker delivers voucher-issued notifications queued by the API.
func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		gen.Module,
		loyalty.Module,
		loyalty.TaskModule,
		task.Server,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.IsProduction() {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
})
