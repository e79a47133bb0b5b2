package redis

import (
	"context"
	"fmt"
	"time"

	"dexindexer/internal/config"
	"dexindexer/internal/dedupe"
	rdb "dexindexer/internal/stores/redis"

	"gitlab.com/nevasik7/alerting/logger"
)

var _ dedupe.Deduper = (*RedisDedupe)(nil)

// RedisDedupe drops redeliveries of events that are already stored. The marks are written by
// the redis Store in its Persist transaction (see Store.WithSeenMarks), never on arrival, so
// an event lost with an unflushed batch is processed again when it is replayed.
// Ids that arrived but are not flushed yet are caught by the in-process window
type RedisDedupe struct {
	log      logger.Logger
	rdb      *rdb.Client
	ttl      time.Duration
	prefix   string
	inflight *dedupe.MemoryDedupe
}

func NewRedisDeduper(log logger.Logger, cfg *config.DedupeConfig, rdb *rdb.Client) (*RedisDedupe, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required to the redis deduper")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required to the redis deduper")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = config.DefaultSeenPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = config.DefaultSeenTTL
	}

	return &RedisDedupe{
		log:      log,
		rdb:      rdb,
		ttl:      ttl,
		prefix:   prefix,
		inflight: dedupe.NewInMemoryDedupe(log, cfg.Capacity),
	}, nil
}

// Prefix and TTL are what the Store must mark with
func (d *RedisDedupe) Prefix() string { return d.prefix }
func (d *RedisDedupe) TTL() time.Duration { return d.ttl }

func (d *RedisDedupe) Seen(ctx context.Context, id string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.prefix+id).Result()
	if err != nil {
		d.log.Errorf("Redis Exists error=%v", err)
		return false, fmt.Errorf("redis Exists: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	return d.inflight.Seen(ctx, id)
}
