package sequence

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"loyaltyhub/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

const voucherPrefix = "VCH"

// Generator produces human readable codes. Codes are unique per day through
// the counter, the random suffix only makes them harder to guess.
type Generator interface {
	NextVoucherCode(ctx context.Context) (string, error)
}

type RedisGenerator struct {
	rdb   *redis.Client
	now   func() time.Time
	local atomic.Int64
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
		now: time.Now,
	}
}

func (g *RedisGenerator) NextVoucherCode(ctx context.Context) (string, error) {
	return g.nextDailyCode(ctx, voucherPrefix)
}

func (g *RedisGenerator) nextDailyCode(ctx context.Context, prefix string) (string, error) {
	now := g.now().UTC()
	today := now.Format("060102")
	key := rediskey.BuildSequenceKey(prefix, today)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		// a unix-nanos based counter keeps codes unique within this process
		zap.L().Warn("[Sequence] redis unavailable, using local sequence", zap.String("key", key), zap.Error(err))
		seq = now.UnixNano()/int64(time.Millisecond) + g.local.Add(1)
	}

	if seq == 1 {
		expire := time.Until(now.Truncate(24 * time.Hour).Add(48 * time.Hour))
		_ = g.rdb.Expire(ctx, key, expire).Err()
	}

	suffix, err := randomAlphaNumeric(2)
	if err != nil {
		return "", err
	}

	return formatCode(prefix, today, seq, suffix), nil
}

// formatCode renders PREFIX-yymmdd-SEQSUFFIX with the sequence in base36,
// left padded to three characters.
func formatCode(prefix, day string, seq int64, suffix string) string {
	encoded := strings.ToUpper(strconv.FormatInt(seq, 36))
	if len(encoded) < 3 {
		encoded = strings.Repeat("0", 3-len(encoded)) + encoded
	}
	return fmt.Sprintf("%s-%s-%s%s", prefix, day, encoded, suffix)
}

func randomAlphaNumeric(n int) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		b[i] = chars[num.Int64()]
	}
	return string(b), nil
}
