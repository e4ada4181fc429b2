package bootstrap

import (
	"context"
	"testing"

	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/sequence"
	"loyaltyhub/services/loyalty"
	"loyaltyhub/services/testutil"
	"loyaltyhub/services/user"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRunMigratesAndSeeds(t *testing.T) {
	db := testutil.NewTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Database.AutoMigrate = true
	cfg.Session.Secret = "secret"
	cfg.Admin.Username = "admin"
	cfg.Admin.Password = "change-me-now"
	cfg.Loyalty.PurchaseAmount = 100
	cfg.Loyalty.VoucherValue = 10
	cfg.Loyalty.VoucherDuration = 600

	defaults, err := loyalty.ProvideDefaults(cfg)
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })

	loyaltySvc := loyalty.NewService(loyalty.ServiceParams{
		DB:       db,
		Node:     node,
		Codes:    sequence.NewRedisGenerator(sequence.Params{Redis: rdb}),
		Defaults: defaults,
	})
	userSvc, err := user.NewService(user.ServiceParams{DB: db, Node: node, Config: cfg})
	require.NoError(t, err)

	svc := NewService(ServiceParams{DB: db, Config: cfg, Loyalty: loyaltySvc, User: userSvc})
	ctx := context.Background()

	require.NoError(t, svc.Run(ctx))
	require.NoError(t, svc.Run(ctx))

	for _, table := range []string{"users", "customers", "purchases", "vouchers", "voucher_configs"} {
		require.True(t, db.Migrator().HasTable(table), table)
	}

	var configs, users int64
	require.NoError(t, db.Model(&loyalty.VoucherConfig{}).Count(&configs).Error)
	require.NoError(t, db.Model(&user.User{}).Count(&users).Error)
	require.EqualValues(t, 1, configs)
	require.EqualValues(t, 1, users)

	sess, err := userSvc.Authenticate(ctx, "admin", "change-me-now")
	require.NoError(t, err)
	require.Equal(t, user.RoleAdmin, sess.User.Role)
}
