package chain

import (
	"context"
	"encoding/json"

	"dexindexer/internal/domain"

	"github.com/shopspring/decimal"
)

// Stable pool storage variants
const (
	StablePoolBase = "Base"
	StablePoolMeta = "Meta"
)

// StablePool is the dexStable.Pools snapshot at a block. CurrencyIDs keep the storage encoding
type StablePool struct {
	Kind        string            `json:"kind"`
	CurrencyIDs []json.RawMessage `json:"currency_ids"`
	Balances    []decimal.Decimal `json:"balances"`
	BasePoolID  *uint32           `json:"base_pool_id,omitempty"` // Meta only
}

// Trading pair statuses of dexGeneral.PairStatuses
const (
	PairTrading    = "Trading"
	PairBootstrap  = "Bootstrap"
	PairDisabled   = "Disabled"
	PairNotEnabled = "NotEnabled"
)

// TradingPair is the dexGeneral.PairStatuses snapshot of an ordered pair; FeeRate is a fraction
type TradingPair struct {
	Status  string          `json:"status"`
	FeeRate decimal.Decimal `json:"fee_rate"`
}

// EffectiveFeeRate is the swap fee for this pair: zero unless the pair is trading
func (p *TradingPair) EffectiveFeeRate() decimal.Decimal {
	if p == nil || p.Status != PairTrading {
		return decimal.Zero
	}
	return p.FeeRate
}

// StateReader reads authoritative chain state as of a block. A nil snapshot with nil error means absent
type StateReader interface {
	StablePool(ctx context.Context, block domain.Block, poolID uint32) (*StablePool, error)
	TradingPair(ctx context.Context, block domain.Block, lo, hi domain.Asset) (*TradingPair, error)
}
