package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind groups emitted records per persisted entity
type RecordKind string

const (
	KindSwap            RecordKind = "swap"
	KindLoan            RecordKind = "loan"
	KindDeposit         RecordKind = "deposit"
	KindMarket          RecordKind = "market"
	KindInterestAccrual RecordKind = "interest_accrual"
	KindPoolLiquidity   RecordKind = "pool_liquidity"
	KindAggregate       RecordKind = "aggregate"
)

// Record is any entity produced by the core; RecordID is unique per kind
type Record interface {
	RecordID() string
}

type PoolType string

const (
	PoolStandard PoolType = "standard"
	PoolStable   PoolType = "stable"
)

// One side of a swap; Amount is an atomic (integer) amount
type SwapLeg struct {
	Asset   Asset           `json:"asset"`
	Amount  decimal.Decimal `json:"amount"`
	Account string          `json:"account"`
}

// Swap is one (from, to) hop of a swap event
type Swap struct {
	ID        string          `json:"id"`
	Height    Height          `json:"height"`
	Timestamp time.Time       `json:"timestamp"`
	PoolType  PoolType        `json:"pool_type"`
	PoolKey   string          `json:"pool_key"`
	From      SwapLeg         `json:"from"`
	To        SwapLeg         `json:"to"`
	FeeRate   decimal.Decimal `json:"fee_rate"`
	Fee       decimal.Decimal `json:"fee"` // atomic, in From.Asset
}

func (s *Swap) RecordID() string { return s.ID }

type LoanKind string

const (
	LoanBorrow LoanKind = "borrow"
	LoanRepay  LoanKind = "repay"
)

type Loan struct {
	ID        string          `json:"id"`
	Height    Height          `json:"height"`
	Timestamp time.Time       `json:"timestamp"`
	Account   string          `json:"account"`
	Asset     Asset           `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      LoanKind        `json:"kind"`
}

func (l *Loan) RecordID() string { return l.ID }

type DepositKind string

const (
	DepositLend               DepositKind = "lend"
	DepositRedeem             DepositKind = "redeem"
	DepositCollateral         DepositKind = "collateral_deposit"
	DepositCollateralWithdraw DepositKind = "collateral_withdraw"
)

// Deposit records lending-side movements. Lend-token amounts are valued in the underlying asset
type Deposit struct {
	ID               string          `json:"id"`
	Height           Height          `json:"height"`
	Timestamp        time.Time       `json:"timestamp"`
	Account          string          `json:"account"`
	Asset            Asset           `json:"asset"`
	Amount           decimal.Decimal `json:"amount"`
	Kind             DepositKind     `json:"kind"`
	Underlying       Asset           `json:"underlying"`
	UnderlyingAmount decimal.Decimal `json:"underlying_amount"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
}

func (d *Deposit) RecordID() string { return d.ID }

type MarketState string

const (
	MarketPending     MarketState = "Pending"
	MarketActive      MarketState = "Active"
	MarketSupervision MarketState = "Supervision"
)

// Market is mutated in place; its identity is the asset key
type Market struct {
	ID                   string          `json:"id"`
	Asset                Asset           `json:"asset"`
	LendTokenID          uint32          `json:"lend_token_id"`
	CollateralFactor     decimal.Decimal `json:"collateral_factor"`
	LiquidationThreshold decimal.Decimal `json:"liquidation_threshold"`
	ReserveFactor        decimal.Decimal `json:"reserve_factor"`
	CloseFactor          decimal.Decimal `json:"close_factor"`
	LiquidateIncentive   decimal.Decimal `json:"liquidate_incentive"`
	BorrowCap            decimal.Decimal `json:"borrow_cap"`
	SupplyCap            decimal.Decimal `json:"supply_cap"`
	State                MarketState     `json:"state"`
	CreatedAt            Height          `json:"created_at"`
	CreatedTimestamp     time.Time       `json:"created_timestamp"`
	ActivatedAt          *Height         `json:"activated_at,omitempty"`
	ActivatedTimestamp   *time.Time      `json:"activated_timestamp,omitempty"`
	UpdatedAt            Height          `json:"updated_at"`
	UpdatedTimestamp     time.Time       `json:"updated_timestamp"`
}

func (m *Market) RecordID() string { return m.ID }

// Point-in-time interest state of one market
type InterestAccrual struct {
	ID               string          `json:"id"`
	Height           Height          `json:"height"`
	Timestamp        time.Time       `json:"timestamp"`
	Asset            Asset           `json:"asset"`
	TotalBorrows     decimal.Decimal `json:"total_borrows"`
	TotalReserves    decimal.Decimal `json:"total_reserves"`
	BorrowIndex      decimal.Decimal `json:"borrow_index"`
	UtilizationRatio decimal.Decimal `json:"utilization_ratio"`
	BorrowRate       decimal.Decimal `json:"borrow_rate"`
	SupplyRate       decimal.Decimal `json:"supply_rate"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
}

func (i *InterestAccrual) RecordID() string { return i.ID }

type AssetAmount struct {
	Asset  Asset           `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

// Stable pool balances observed after an exchange
type PoolLiquidity struct {
	ID        string        `json:"id"`
	PoolID    uint32        `json:"pool_id"`
	Height    Height        `json:"height"`
	Timestamp time.Time     `json:"timestamp"`
	Balances  []AssetAmount `json:"balances"`
}

func (p *PoolLiquidity) RecordID() string { return p.ID }

type Metric string

const (
	MetricVolume Metric = "volume"
	MetricFee    Metric = "fee"
	MetricTrades Metric = "trades"

	MetricBorrowed Metric = "borrowed"
	MetricRepaid   Metric = "repaid"
)

// Global subject for lending totals; swap totals use the pool type
const SubjectLoans = "loans"

type Scope string

const (
	ScopePool    Scope = "pool"
	ScopeAccount Scope = "account"
	ScopeGlobal  Scope = "global"
)

// AggregateKey identifies one running total; Asset is empty for trade counts
type AggregateKey struct {
	Metric  Metric `json:"metric"`
	Scope   Scope  `json:"scope"`
	Subject string `json:"subject"`
	Asset   string `json:"asset,omitempty"`
}

func (k AggregateKey) String() string {
	s := string(k.Metric) + ":" + string(k.Scope) + ":" + k.Subject
	if k.Asset != "" {
		s += ":" + k.Asset
	}
	return s
}

// Aggregate is a versioned snapshot of a running total as of TillTimestamp
type Aggregate struct {
	Key           AggregateKey    `json:"key"`
	Total         decimal.Decimal `json:"total"`
	Height        Height          `json:"height"`
	TillTimestamp time.Time       `json:"till_timestamp"`
}

func (a *Aggregate) RecordID() string {
	return a.Key.String() + "@" + strconv.FormatInt(a.TillTimestamp.UnixMilli(), 10)
}
