package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"dexindexer/internal/chain"
	"dexindexer/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

var _ chain.StateReader = (*ChainState)(nil)

// ChainState serves chain storage snapshots written by the block source.
// Every storage item is a sorted set scored by block height; members are
// "<zero padded height>|<json>" so one height holds exactly one snapshot
type ChainState struct {
	rdb    *Client
	prefix string
}

func NewChainState(rdb *Client, prefix string) *ChainState {
	return &ChainState{rdb: rdb, prefix: prefix}
}

func (c *ChainState) stablePoolKey(poolID uint32) string {
	return c.prefix + "stable_pool:" + strconv.FormatUint(uint64(poolID), 10)
}

func (c *ChainState) pairKey(lo, hi domain.Asset) (string, error) {
	l, err := lo.Key()
	if err != nil {
		return "", err
	}
	h, err := hi.Key()
	if err != nil {
		return "", err
	}
	return c.prefix + "pair:" + l + "|" + h, nil
}

func (c *ChainState) StablePool(ctx context.Context, block domain.Block, poolID uint32) (*chain.StablePool, error) {
	var pool chain.StablePool
	found, err := c.at(ctx, c.stablePoolKey(poolID), block.Height, &pool)
	if err != nil || !found {
		return nil, err
	}
	return &pool, nil
}

func (c *ChainState) TradingPair(ctx context.Context, block domain.Block, lo, hi domain.Asset) (*chain.TradingPair, error) {
	key, err := c.pairKey(lo, hi)
	if err != nil {
		return nil, err
	}

	var pair chain.TradingPair
	found, err := c.at(ctx, key, block.Height, &pair)
	if err != nil || !found {
		return nil, err
	}
	return &pair, nil
}

func (c *ChainState) PutStablePool(ctx context.Context, height uint64, poolID uint32, pool *chain.StablePool) error {
	return c.put(ctx, c.stablePoolKey(poolID), height, pool)
}

func (c *ChainState) PutTradingPair(ctx context.Context, height uint64, lo, hi domain.Asset, pair *chain.TradingPair) error {
	key, err := c.pairKey(lo, hi)
	if err != nil {
		return err
	}
	return c.put(ctx, key, height, pair)
}

// at loads the newest snapshot written at or below height
func (c *ChainState) at(ctx context.Context, key string, height uint64, dst any) (bool, error) {
	members, err := c.rdb.ZRevRangeByScore(ctx, key, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatUint(height, 10),
		Count: 1,
	}).Result()
	if err != nil {
		return false, fmt.Errorf("read %s at %d: %w", key, height, err)
	}
	if len(members) == 0 {
		return false, nil
	}

	_, payload, ok := strings.Cut(members[0], "|")
	if !ok {
		return false, fmt.Errorf("malformed snapshot in %s", key)
	}
	if err = json.Unmarshal([]byte(payload), dst); err != nil {
		return false, fmt.Errorf("decode %s at %d: %w", key, height, err)
	}
	return true, nil
}

func (c *ChainState) put(ctx context.Context, key string, height uint64, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	score := float64(height)
	heightArg := strconv.FormatUint(height, 10)

	// replace any earlier snapshot at the same height
	_, err = c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, heightArg, heightArg)
		pipe.ZAdd(ctx, key, goredis.Z{Score: score, Member: fmt.Sprintf("%020d|%s", height, b)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s at %d: %w", key, height, err)
	}
	return nil
}
