package service

import (
	"context"
	"fmt"

	"dexindexer/internal/decode"
	"dexindexer/internal/domain"

	"github.com/shopspring/decimal"
)

// market looks up a market by asset key, in-batch state first
func (s *IndexerService) market(ctx context.Context, id string) (*domain.Market, error) {
	if m, ok := s.buf.Market(id); ok {
		return m, nil
	}
	if s.markets == nil {
		return nil, nil
	}
	m, err := s.markets.Market(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read market %s: %w", id, err)
	}
	if m == nil {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *IndexerService) upsertMarket(ctx context.Context, m eventMeta, asset domain.Asset, p decode.MarketParams, created bool) error {
	id, err := asset.Key()
	if err != nil {
		return err
	}

	market, err := s.market(ctx, id)
	if err != nil {
		return err
	}
	if market == nil {
		if !created {
			s.log.Warnf("Market %s updated before it was created, creating it at %d", id, m.height.Absolute)
		}
		market = &domain.Market{
			ID:               id,
			Asset:            asset,
			CreatedAt:        m.height,
			CreatedTimestamp: m.block.Timestamp,
		}
	}

	market.LendTokenID = p.LendToken.ID()
	market.CollateralFactor = p.CollateralFactor
	market.LiquidationThreshold = p.LiquidationThreshold
	market.ReserveFactor = p.ReserveFactor
	market.CloseFactor = p.CloseFactor
	market.LiquidateIncentive = p.LiquidateIncentive
	market.BorrowCap = p.BorrowCap
	market.SupplyCap = p.SupplyCap
	market.State = p.State
	market.UpdatedAt = m.height
	market.UpdatedTimestamp = m.block.Timestamp
	if p.State == domain.MarketActive && market.ActivatedAt == nil {
		markActivated(market, m)
	}

	s.caches.LendTokens.Put(market.LendTokenID, asset)
	s.buf.Push(domain.KindMarket, market)
	return nil
}

func (s *IndexerService) activateMarket(ctx context.Context, m eventMeta, asset domain.Asset) error {
	id, err := asset.Key()
	if err != nil {
		return err
	}

	market, err := s.market(ctx, id)
	if err != nil {
		return err
	}
	if market == nil {
		return fmt.Errorf("%w: activation of %s", ErrMarketNotFound, id)
	}

	market.State = domain.MarketActive
	market.UpdatedAt = m.height
	market.UpdatedTimestamp = m.block.Timestamp
	markActivated(market, m)

	s.buf.Push(domain.KindMarket, market)
	return nil
}

func markActivated(market *domain.Market, m eventMeta) {
	h, ts := m.height, m.block.Timestamp
	market.ActivatedAt = &h
	market.ActivatedTimestamp = &ts
}

func (s *IndexerService) loan(ctx context.Context, m eventMeta, a decode.AccountAmount, kind domain.LoanKind) error {
	l := &domain.Loan{
		ID:        m.id,
		Height:    m.height,
		Timestamp: m.block.Timestamp,
		Account:   a.Account,
		Asset:     a.Asset,
		Amount:    a.Amount,
		Kind:      kind,
	}
	if err := s.engine.ApplyLoan(ctx, l); err != nil {
		return err
	}
	s.buf.Push(domain.KindLoan, l)
	return nil
}

// deposit values lend token amounts in the underlying asset at the rate as of the event's block
func (s *IndexerService) deposit(m eventMeta, a decode.AccountAmount, kind domain.DepositKind) error {
	// amounts already in the underlying need no conversion and carry no rate
	underlying, underlyingAmount := a.Asset, a.Amount
	var rate decimal.Decimal

	if a.Asset.Kind() == domain.KindLendToken {
		u, ok := s.caches.LendTokens.Underlying(a.Asset.ID())
		if !ok {
			return fmt.Errorf("%w: %s", ErrLendTokenUnknown, a.Asset)
		}
		underlying = u

		symbol, err := underlying.Key()
		if err != nil {
			return err
		}
		var found bool
		if rate, found = s.caches.Rates.RateAt(m.height.Absolute, symbol); !found {
			s.log.Debugf("No exchange rate for %s at %d, using default %s", symbol, m.height.Absolute, rate)
		}
		underlyingAmount = a.Amount.Mul(rate).Floor()
	}

	s.buf.Push(domain.KindDeposit, &domain.Deposit{
		ID:               m.id,
		Height:           m.height,
		Timestamp:        m.block.Timestamp,
		Account:          a.Account,
		Asset:            a.Asset,
		Amount:           a.Amount,
		Kind:             kind,
		Underlying:       underlying,
		UnderlyingAmount: underlyingAmount,
		ExchangeRate:     rate,
	})
	return nil
}

func (s *IndexerService) interestAccrued(m eventMeta, e decode.InterestAccrued) error {
	symbol, err := e.Asset.Key()
	if err != nil {
		return err
	}

	s.caches.Rates.Append(m.height.Absolute, symbol, e.ExchangeRate)
	s.buf.Push(domain.KindInterestAccrual, &domain.InterestAccrual{
		ID:               m.id,
		Height:           m.height,
		Timestamp:        m.block.Timestamp,
		Asset:            e.Asset,
		TotalBorrows:     e.TotalBorrows,
		TotalReserves:    e.TotalReserves,
		BorrowIndex:      e.BorrowIndex,
		UtilizationRatio: e.UtilizationRatio,
		BorrowRate:       e.BorrowRate,
		SupplyRate:       e.SupplyRate,
		ExchangeRate:     e.ExchangeRate,
	})
	return nil
}
