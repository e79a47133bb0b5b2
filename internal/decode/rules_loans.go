package decode

import (
	"encoding/json"
	"fmt"

	"dexindexer/internal/domain"

	"github.com/shopspring/decimal"
)

// Loans pallet encodings. v1 emits positional tuples with legacy currency ids,
// v2 emits named fields with tagged currency ids and adds Market.supplyCap
const (
	loansV1 = 1020000
	loansV2 = 1023000

	interestAccruedV1 = 1021000
)

type assetDecoder func(json.RawMessage) (domain.Asset, error)

type rawMarket struct {
	CollateralFactor     json.RawMessage `json:"collateralFactor"`
	LiquidationThreshold json.RawMessage `json:"liquidationThreshold"`
	ReserveFactor        json.RawMessage `json:"reserveFactor"`
	CloseFactor          json.RawMessage `json:"closeFactor"`
	LiquidateIncentive   json.RawMessage `json:"liquidateIncentive"`
	BorrowCap            json.RawMessage `json:"borrowCap"`
	SupplyCap            json.RawMessage `json:"supplyCap"`
	State                json.RawMessage `json:"state"`
	LendTokenID          json.RawMessage `json:"lendTokenId"`
}

func registerLoans(r *Registry) {
	r.mustRegister(domain.EventNewMarket,
		Rule{MinVersion: loansV1, MaxVersion: loansV2 - 1, Decode: marketV1(func(a domain.Asset, p MarketParams) Event { return MarketCreated{Asset: a, Params: p} })},
		Rule{MinVersion: loansV2, Decode: marketV2(func(a domain.Asset, p MarketParams) Event { return MarketCreated{Asset: a, Params: p} })},
	)
	r.mustRegister(domain.EventUpdatedMarket,
		Rule{MinVersion: loansV1, MaxVersion: loansV2 - 1, Decode: marketV1(func(a domain.Asset, p MarketParams) Event { return MarketUpdated{Asset: a, Params: p} })},
		Rule{MinVersion: loansV2, Decode: marketV2(func(a domain.Asset, p MarketParams) Event { return MarketUpdated{Asset: a, Params: p} })},
	)
	r.mustRegister(domain.EventActivatedMarket,
		Rule{MinVersion: loansV1, MaxVersion: loansV2 - 1, Decode: activatedV1},
		Rule{MinVersion: loansV2, Decode: activatedV2},
	)

	accountEvents := map[string]func(AccountAmount) Event{
		domain.EventBorrowed:           func(a AccountAmount) Event { return Borrowed(a) },
		domain.EventRepaidBorrow:       func(a AccountAmount) Event { return RepaidBorrow(a) },
		domain.EventDepositCollateral:  func(a AccountAmount) Event { return CollateralDeposited(a) },
		domain.EventWithdrawCollateral: func(a AccountAmount) Event { return CollateralWithdrawn(a) },
		domain.EventDeposited:          func(a AccountAmount) Event { return Deposited(a) },
		domain.EventRedeemed:           func(a AccountAmount) Event { return Redeemed(a) },
	}
	for name, wrap := range accountEvents {
		r.mustRegister(name,
			Rule{MinVersion: loansV1, MaxVersion: loansV2 - 1, Decode: accountAmountV1(wrap)},
			Rule{MinVersion: loansV2, Decode: accountAmountV2(wrap)},
		)
	}

	r.mustRegister(domain.EventInterestAccrued,
		Rule{MinVersion: interestAccruedV1, MaxVersion: loansV2 - 1, Decode: interestAccrued(legacyAsset)},
		Rule{MinVersion: loansV2, Decode: interestAccrued(taggedAsset)},
	)
}

// [currencyId, market]
func marketV1(wrap func(domain.Asset, MarketParams) Event) DecodeFunc {
	return func(args json.RawMessage) (Event, error) {
		parts, err := tuple(args, 2)
		if err != nil {
			return nil, err
		}
		asset, err := legacyAsset(parts[0])
		if err != nil {
			return nil, err
		}
		var m rawMarket
		if err = object(parts[1], &m); err != nil {
			return nil, err
		}
		params, err := marketParams(&m, legacyAsset, false)
		if err != nil {
			return nil, err
		}
		return wrap(asset, params), nil
	}
}

// {underlyingCurrencyId, market}
func marketV2(wrap func(domain.Asset, MarketParams) Event) DecodeFunc {
	return func(args json.RawMessage) (Event, error) {
		var v struct {
			Currency json.RawMessage `json:"underlyingCurrencyId"`
			Market   rawMarket       `json:"market"`
		}
		if err := object(args, &v); err != nil {
			return nil, err
		}
		asset, err := taggedAsset(v.Currency)
		if err != nil {
			return nil, err
		}
		params, err := marketParams(&v.Market, taggedAsset, true)
		if err != nil {
			return nil, err
		}
		return wrap(asset, params), nil
	}
}

func marketParams(m *rawMarket, asset assetDecoder, withSupplyCap bool) (MarketParams, error) {
	var (
		p   MarketParams
		err error
	)

	ratios := []struct {
		raw json.RawMessage
		dst *decimal.Decimal
		dec int32
	}{
		{m.CollateralFactor, &p.CollateralFactor, permillDecimals},
		{m.LiquidationThreshold, &p.LiquidationThreshold, permillDecimals},
		{m.ReserveFactor, &p.ReserveFactor, permillDecimals},
		{m.CloseFactor, &p.CloseFactor, permillDecimals},
		{m.LiquidateIncentive, &p.LiquidateIncentive, fixedU128Decimals},
		{m.BorrowCap, &p.BorrowCap, 0},
	}
	for _, r := range ratios {
		if *r.dst, err = fixed(r.raw, r.dec); err != nil {
			return p, err
		}
	}

	p.SupplyCap = decimal.Zero
	if withSupplyCap {
		if p.SupplyCap, err = amount(m.SupplyCap); err != nil {
			return p, err
		}
	}

	if p.State, err = marketState(m.State); err != nil {
		return p, err
	}

	if p.LendToken, err = asset(m.LendTokenID); err != nil {
		return p, err
	}
	if p.LendToken.Kind() != domain.KindLendToken {
		return p, fmt.Errorf("%w: lendTokenId is %s", ErrMalformedEvent, p.LendToken.Kind())
	}

	return p, nil
}

func activatedV1(args json.RawMessage) (Event, error) {
	parts, err := tuple(args, 1)
	if err != nil {
		return nil, err
	}
	asset, err := legacyAsset(parts[0])
	if err != nil {
		return nil, err
	}
	return MarketActivated{Asset: asset}, nil
}

func activatedV2(args json.RawMessage) (Event, error) {
	var v struct {
		Currency json.RawMessage `json:"underlyingCurrencyId"`
	}
	if err := object(args, &v); err != nil {
		return nil, err
	}
	asset, err := taggedAsset(v.Currency)
	if err != nil {
		return nil, err
	}
	return MarketActivated{Asset: asset}, nil
}

// [accountId, currencyId, amount]
func accountAmountV1(wrap func(AccountAmount) Event) DecodeFunc {
	return func(args json.RawMessage) (Event, error) {
		parts, err := tuple(args, 3)
		if err != nil {
			return nil, err
		}
		return accountAmount(parts[0], parts[1], parts[2], legacyAsset, wrap)
	}
}

// {accountId, currencyId, amount}
func accountAmountV2(wrap func(AccountAmount) Event) DecodeFunc {
	return func(args json.RawMessage) (Event, error) {
		var v struct {
			Account  json.RawMessage `json:"accountId"`
			Currency json.RawMessage `json:"currencyId"`
			Amount   json.RawMessage `json:"amount"`
		}
		if err := object(args, &v); err != nil {
			return nil, err
		}
		return accountAmount(v.Account, v.Currency, v.Amount, taggedAsset, wrap)
	}
}

func accountAmount(rawAccount, rawCurrency, rawAmount json.RawMessage, asset assetDecoder, wrap func(AccountAmount) Event) (Event, error) {
	who, err := account(rawAccount)
	if err != nil {
		return nil, err
	}
	a, err := asset(rawCurrency)
	if err != nil {
		return nil, err
	}
	amt, err := amount(rawAmount)
	if err != nil {
		return nil, err
	}
	return wrap(AccountAmount{Account: who, Asset: a, Amount: amt}), nil
}

func interestAccrued(asset assetDecoder) DecodeFunc {
	return func(args json.RawMessage) (Event, error) {
		var v struct {
			Currency         json.RawMessage `json:"underlyingCurrencyId"`
			TotalBorrows     json.RawMessage `json:"totalBorrows"`
			TotalReserves    json.RawMessage `json:"totalReserves"`
			BorrowIndex      json.RawMessage `json:"borrowIndex"`
			UtilizationRatio json.RawMessage `json:"utilizationRatio"`
			BorrowRate       json.RawMessage `json:"borrowRate"`
			SupplyRate       json.RawMessage `json:"supplyRate"`
			ExchangeRate     json.RawMessage `json:"exchangeRate"`
		}
		if err := object(args, &v); err != nil {
			return nil, err
		}

		var (
			out InterestAccrued
			err error
		)
		if out.Asset, err = asset(v.Currency); err != nil {
			return nil, err
		}

		fields := []struct {
			raw json.RawMessage
			dst *decimal.Decimal
			dec int32
		}{
			{v.TotalBorrows, &out.TotalBorrows, 0},
			{v.TotalReserves, &out.TotalReserves, 0},
			{v.BorrowIndex, &out.BorrowIndex, fixedU128Decimals},
			{v.UtilizationRatio, &out.UtilizationRatio, permillDecimals},
			{v.BorrowRate, &out.BorrowRate, fixedU128Decimals},
			{v.SupplyRate, &out.SupplyRate, fixedU128Decimals},
			{v.ExchangeRate, &out.ExchangeRate, fixedU128Decimals},
		}
		for _, f := range fields {
			if *f.dst, err = fixed(f.raw, f.dec); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}
