package decode

import (
	"dexindexer/internal/domain"

	"github.com/shopspring/decimal"
)

// Event is the version-independent record every rule produces. The set is closed
type Event interface {
	isEvent()
}

// MarketParams is the market configuration carried by create/update events
type MarketParams struct {
	LendToken            domain.Asset
	CollateralFactor     decimal.Decimal
	LiquidationThreshold decimal.Decimal
	ReserveFactor        decimal.Decimal
	CloseFactor          decimal.Decimal
	LiquidateIncentive   decimal.Decimal
	BorrowCap            decimal.Decimal
	SupplyCap            decimal.Decimal // zero before v2
	State                domain.MarketState
}

type MarketCreated struct {
	Asset  domain.Asset
	Params MarketParams
}

type MarketUpdated struct {
	Asset  domain.Asset
	Params MarketParams
}

type MarketActivated struct {
	Asset domain.Asset
}

// AccountAmount is the shared shape of account-scoped loan events
type AccountAmount struct {
	Account string
	Asset   domain.Asset
	Amount  decimal.Decimal
}

type (
	Borrowed            AccountAmount
	RepaidBorrow        AccountAmount
	CollateralDeposited AccountAmount
	CollateralWithdrawn AccountAmount
	Deposited           AccountAmount
	Redeemed            AccountAmount
)

type InterestAccrued struct {
	Asset            domain.Asset
	TotalBorrows     decimal.Decimal
	TotalReserves    decimal.Decimal
	BorrowIndex      decimal.Decimal
	UtilizationRatio decimal.Decimal
	BorrowRate       decimal.Decimal
	SupplyRate       decimal.Decimal
	ExchangeRate     decimal.Decimal
}

// AssetSwap is a standard-pool multi-hop swap; Path[i] moved Balances[i]
type AssetSwap struct {
	Owner     string
	Recipient string
	Path      []domain.Asset
	Balances  []decimal.Decimal
}

// StableExchange is a stable-pool swap by member index
type StableExchange struct {
	PoolID    uint32
	Who       string
	To        string
	InIndex   uint32
	OutIndex  uint32
	InAmount  decimal.Decimal
	OutAmount decimal.Decimal
	FeeRate   decimal.Decimal // zero before runtime 1025000
}

func (MarketCreated) isEvent()       {}
func (MarketUpdated) isEvent()       {}
func (MarketActivated) isEvent()     {}
func (Borrowed) isEvent()            {}
func (RepaidBorrow) isEvent()        {}
func (CollateralDeposited) isEvent() {}
func (CollateralWithdrawn) isEvent() {}
func (Deposited) isEvent()           {}
func (Redeemed) isEvent()            {}
func (InterestAccrued) isEvent()     {}
func (AssetSwap) isEvent()           {}
func (StableExchange) isEvent()      {}
