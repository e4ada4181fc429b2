package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/db"
	"loyaltyhub/pkg/gen"
	"loyaltyhub/pkg/health"
	"loyaltyhub/pkg/httpapi"
	"loyaltyhub/pkg/logger"
	"loyaltyhub/pkg/otelcol"
	"loyaltyhub/pkg/profiling"
	"loyaltyhub/pkg/redis"
	"loyaltyhub/pkg/sequence"
	"loyaltyhub/pkg/server"
	"loyaltyhub/pkg/task"
	"loyaltyhub/services/bootstrap"
	"loyaltyhub/services/customer"
	"loyaltyhub/services/loyalty"
	"loyaltyhub/services/user"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		task.Client,
		health.Module,
		gen.Module,
		customer.Module,
		user.Module,
		loyalty.Module,
		// schema and seed data must exist before the servers accept traffic
		bootstrap.Module,
		httpapi.Module,
		server.ProvideGRPCServer,
		server.ProvideHTTPServer,
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
