package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dexindexer/internal/chain"
	"dexindexer/internal/decode"
	"dexindexer/internal/domain"
)

var (
	ErrPoolNotFound         = errors.New("stable pool not found")
	ErrPoolTypeUnsupported  = errors.New("stable pool type unsupported")
	ErrAssetIndexOutOfRange = errors.New("asset index out of range")
)

// PoolMember is one currency of a stable pool, with its storage-encoded id
type PoolMember struct {
	Asset domain.Asset
	Raw   json.RawMessage
}

type cachedPool struct {
	members []PoolMember
	height  uint64 // block the members were read at
}

// PoolCache memoizes stable pool membership for the run. Not safe for concurrent use
type PoolCache struct {
	reader  chain.StateReader
	pools   map[uint32]cachedPool
	fetches int
}

func NewPoolCache(reader chain.StateReader) *PoolCache {
	return &PoolCache{
		reader: reader,
		pools:  make(map[uint32]cachedPool),
	}
}

// Members returns the ordered pool currencies, fetching the pool on a miss
func (c *PoolCache) Members(ctx context.Context, block domain.Block, poolID uint32) ([]PoolMember, error) {
	if p, ok := c.pools[poolID]; ok {
		return p.members, nil
	}
	return c.fetch(ctx, block, poolID)
}

// Member resolves the currency at index. Membership can grow between blocks, so an
// out-of-range index re-reads the pool once when the cached members are from an earlier
// block. A read at the current block is final
func (c *PoolCache) Member(ctx context.Context, block domain.Block, poolID, index uint32) (PoolMember, error) {
	members, err := c.Members(ctx, block, poolID)
	if err != nil {
		return PoolMember{}, err
	}
	if int(index) < len(members) {
		return members[index], nil
	}

	if c.pools[poolID].height < block.Height {
		if members, err = c.fetch(ctx, block, poolID); err != nil {
			return PoolMember{}, err
		}
		if int(index) < len(members) {
			return members[index], nil
		}
	}
	return PoolMember{}, fmt.Errorf("%w: pool %d has %d currencies, index %d", ErrAssetIndexOutOfRange, poolID, len(members), index)
}

// Fetches counts authoritative reads
func (c *PoolCache) Fetches() int { return c.fetches }

func (c *PoolCache) Reset() {
	c.pools = make(map[uint32]cachedPool)
	c.fetches = 0
}

func (c *PoolCache) fetch(ctx context.Context, block domain.Block, poolID uint32) ([]PoolMember, error) {
	c.fetches++

	pool, err := c.reader.StablePool(ctx, block, poolID)
	if err != nil {
		return nil, fmt.Errorf("read stable pool %d: %w", poolID, err)
	}
	if pool == nil {
		return nil, fmt.Errorf("%w: pool %d at block %d", ErrPoolNotFound, poolID, block.Height)
	}

	members, err := PoolMembers(pool)
	if err != nil {
		return nil, fmt.Errorf("pool %d: %w", poolID, err)
	}

	c.pools[poolID] = cachedPool{members: members, height: block.Height}
	return members, nil
}

// PoolMembers decodes the currencies of a Base or Meta pool snapshot
func PoolMembers(pool *chain.StablePool) ([]PoolMember, error) {
	switch pool.Kind {
	case chain.StablePoolBase, chain.StablePoolMeta:
	default:
		return nil, fmt.Errorf("%w: %q", ErrPoolTypeUnsupported, pool.Kind)
	}

	members := make([]PoolMember, 0, len(pool.CurrencyIDs))
	for i, raw := range pool.CurrencyIDs {
		asset, err := decode.CurrencyID(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: currency %d: %v", ErrPoolTypeUnsupported, i, err)
		}
		members = append(members, PoolMember{Asset: asset, Raw: raw})
	}
	return members, nil
}
