package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/types"
	"github.com/harvesttable/growth-backend/internal/utils"
)

// ConfigBus pushes promoted configuration and cached summaries to redis so
// product surfaces can read the live arm without touching postgres.
type ConfigBus interface {
	PublishLiveConfig(ctx context.Context, cfg *types.LiveConfig) error
	CacheSummary(ctx context.Context, summary *types.ResultsSummary) error
	Close() error
}

type configBus struct {
	log        *logger.Logger
	rdb        *goredis.Client
	channel    string
	summaryTTL time.Duration
}

func NewConfigBus(log *logger.Logger) (ConfigBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CONFIG_CHANNEL"))
	if ch == "" {
		ch = "live_config"
	}
	ttlHours := utils.GetEnvAsInt("SUMMARY_TTL_HOURS", 48, log)
	if ttlHours <= 0 {
		ttlHours = 48
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &configBus{
		log:        log.With("service", "RedisConfigBus"),
		rdb:        rdb,
		channel:    ch,
		summaryTTL: time.Duration(ttlHours) * time.Hour,
	}, nil
}

// PublishLiveConfig writes the surface's snapshot key and notifies
// subscribers on the channel.
func (b *configBus) PublishLiveConfig(ctx context.Context, cfg *types.LiveConfig) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis config bus not initialized")
	}
	if cfg == nil {
		return nil
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal live config: %w", err)
	}
	key := "live_config:" + cfg.Surface
	if err := b.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", b.channel, err)
	}
	b.log.Info("Live config published", "surface", cfg.Surface, "variant", cfg.Variant)
	return nil
}

// CacheSummary stores the last scheduled aggregation pass so operator reads
// between passes are cheap.
func (b *configBus) CacheSummary(ctx context.Context, summary *types.ResultsSummary) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis config bus not initialized")
	}
	if summary == nil {
		return nil
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	key := "experiment_results:" + summary.ExperimentID.String()
	if err := b.rdb.Set(ctx, key, raw, b.summaryTTL).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (b *configBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
