package service

import (
	"context"
	"fmt"

	"dexindexer/internal/aggregate"
	"dexindexer/internal/cache"
	"dexindexer/internal/chain"
	"dexindexer/internal/decode"
	"dexindexer/internal/domain"

	"golang.org/x/sync/errgroup"
)

type hop struct {
	lo, hi domain.Asset
	key    string
}

// standardSwap splits a multi-hop path into (from, to) swaps. Pair statuses are read
// concurrently, results are joined back in path order before any total is touched
func (s *IndexerService) standardSwap(ctx context.Context, m eventMeta, e decode.AssetSwap) error {
	hops := make([]hop, len(e.Path)-1)
	for i := range hops {
		lo, hi, err := domain.OrderPair(e.Path[i], e.Path[i+1])
		if err != nil {
			return err
		}
		key, err := domain.PairKey(lo, hi)
		if err != nil {
			return err
		}
		hops[i] = hop{lo: lo, hi: hi, key: key}
	}

	pairs := make([]*chain.TradingPair, len(hops))
	g, gctx := errgroup.WithContext(ctx)
	for i := range hops {
		g.Go(func() error {
			p, err := s.state.TradingPair(gctx, m.block, hops[i].lo, hops[i].hi)
			if err != nil {
				return fmt.Errorf("read pair %s: %w", hops[i].key, err)
			}
			pairs[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	swaps := make([]*domain.Swap, len(hops))
	for i, h := range hops {
		if pairs[i] == nil {
			s.log.Debugf("Pair %s undefined at %d, fee is zero", h.key, m.block.Height)
		}
		rate := pairs[i].EffectiveFeeRate()

		to := domain.SwapLeg{Asset: e.Path[i+1], Amount: e.Balances[i+1], Account: e.Owner}
		if i == len(hops)-1 {
			to.Account = e.Recipient
		}
		from := domain.SwapLeg{Asset: e.Path[i], Amount: e.Balances[i], Account: e.Owner}

		swaps[i] = &domain.Swap{
			ID:        fmt.Sprintf("%s-%d", m.id, i),
			Height:    m.height,
			Timestamp: m.block.Timestamp,
			PoolType:  domain.PoolStandard,
			PoolKey:   h.key,
			From:      from,
			To:        to,
			FeeRate:   rate,
			Fee:       aggregate.Fee(rate, from.Amount),
		}
	}

	for _, sw := range swaps {
		if err := s.engine.ApplySwap(ctx, sw); err != nil {
			return err
		}
		s.buf.Push(domain.KindSwap, sw)
	}
	return nil
}

// stableExchange resolves member indexes through the pool cache and snapshots pool balances
func (s *IndexerService) stableExchange(ctx context.Context, m eventMeta, e decode.StableExchange) error {
	in, err := s.caches.Pools.Member(ctx, m.block, e.PoolID, e.InIndex)
	if err != nil {
		return err
	}
	out, err := s.caches.Pools.Member(ctx, m.block, e.PoolID, e.OutIndex)
	if err != nil {
		return err
	}

	pool, err := s.state.StablePool(ctx, m.block, e.PoolID)
	if err != nil {
		return fmt.Errorf("read stable pool %d: %w", e.PoolID, err)
	}
	if pool == nil {
		return fmt.Errorf("%w: pool %d at %d", ErrPoolStateMissing, e.PoolID, m.block.Height)
	}
	liquidity, err := poolLiquidity(m, e.PoolID, pool)
	if err != nil {
		return err
	}

	sw := &domain.Swap{
		ID:        m.id,
		Height:    m.height,
		Timestamp: m.block.Timestamp,
		PoolType:  domain.PoolStable,
		PoolKey:   domain.StableLp(e.PoolID).String(),
		From:      domain.SwapLeg{Asset: in.Asset, Amount: e.InAmount, Account: e.Who},
		To:        domain.SwapLeg{Asset: out.Asset, Amount: e.OutAmount, Account: e.To},
		FeeRate:   e.FeeRate,
		Fee:       aggregate.Fee(e.FeeRate, e.InAmount),
	}
	if err = s.engine.ApplySwap(ctx, sw); err != nil {
		return err
	}

	s.buf.Push(domain.KindSwap, sw)
	s.buf.Push(domain.KindPoolLiquidity, liquidity)
	return nil
}

func poolLiquidity(m eventMeta, poolID uint32, pool *chain.StablePool) (*domain.PoolLiquidity, error) {
	members, err := cache.PoolMembers(pool)
	if err != nil {
		return nil, err
	}
	if len(members) != len(pool.Balances) {
		return nil, fmt.Errorf("%w: pool %d has %d currencies and %d balances",
			decode.ErrLengthMismatch, poolID, len(members), len(pool.Balances))
	}

	balances := make([]domain.AssetAmount, len(members))
	for i := range members {
		balances[i] = domain.AssetAmount{Asset: members[i].Asset, Amount: pool.Balances[i]}
	}

	return &domain.PoolLiquidity{
		ID:        fmt.Sprintf("%d-%s", poolID, m.id),
		PoolID:    poolID,
		Height:    m.height,
		Timestamp: m.block.Timestamp,
		Balances:  balances,
	}, nil
}
