package cache

import (
	"dexindexer/internal/chain"
	"dexindexer/internal/domain"
)

// LendTokenIndex maps lend token ids to their market's underlying asset
type LendTokenIndex struct {
	underlying map[uint32]domain.Asset
}

func NewLendTokenIndex() *LendTokenIndex {
	return &LendTokenIndex{underlying: make(map[uint32]domain.Asset)}
}

func (i *LendTokenIndex) Put(lendTokenID uint32, underlying domain.Asset) {
	i.underlying[lendTokenID] = underlying
}

func (i *LendTokenIndex) Underlying(lendTokenID uint32) (domain.Asset, bool) {
	a, ok := i.underlying[lendTokenID]
	return a, ok
}

func (i *LendTokenIndex) Reset() {
	i.underlying = make(map[uint32]domain.Asset)
}

// Caches is the per-session lookup state handed to every producer
type Caches struct {
	Pools      *PoolCache
	Rates      *RateCache
	LendTokens *LendTokenIndex
}

func New(reader chain.StateReader) *Caches {
	return &Caches{
		Pools:      NewPoolCache(reader),
		Rates:      NewRateCache(),
		LendTokens: NewLendTokenIndex(),
	}
}

// Reset clears every cache, separating independent processing runs
func (c *Caches) Reset() {
	c.Pools.Reset()
	c.Rates.Reset()
	c.LendTokens.Reset()
}
