package decode

import (
	"encoding/json"
	"fmt"

	"dexindexer/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	dexV1 = 1020000
	dexV2 = 1023000 // tagged currency ids
	dexV3 = 1025000 // AssetSwap gains recipient, CurrencyExchange gains swap fee
)

func registerDex(r *Registry) {
	r.mustRegister(domain.EventAssetSwap,
		Rule{MinVersion: dexV1, MaxVersion: dexV2 - 1, Decode: assetSwapTuple(legacyAsset)},
		Rule{MinVersion: dexV2, MaxVersion: dexV3 - 1, Decode: assetSwapTuple(taggedAsset)},
		Rule{MinVersion: dexV3, Decode: assetSwapV3},
	)
	r.mustRegister(domain.EventCurrencyExchange,
		Rule{MinVersion: dexV1, MaxVersion: dexV3 - 1, Decode: currencyExchange(false)},
		Rule{MinVersion: dexV3, Decode: currencyExchange(true)},
	)
}

// [owner, swapPath, balances]; recipient did not exist yet and is the owner
func assetSwapTuple(asset assetDecoder) DecodeFunc {
	return func(args json.RawMessage) (Event, error) {
		parts, err := tuple(args, 3)
		if err != nil {
			return nil, err
		}
		owner, err := account(parts[0])
		if err != nil {
			return nil, err
		}
		return assetSwap(owner, owner, parts[1], parts[2], asset)
	}
}

func assetSwapV3(args json.RawMessage) (Event, error) {
	var v struct {
		Owner     json.RawMessage `json:"owner"`
		Recipient json.RawMessage `json:"recipient"`
		Path      json.RawMessage `json:"swapPath"`
		Balances  json.RawMessage `json:"balances"`
	}
	if err := object(args, &v); err != nil {
		return nil, err
	}
	owner, err := account(v.Owner)
	if err != nil {
		return nil, err
	}
	recipient, err := account(v.Recipient)
	if err != nil {
		return nil, err
	}
	return assetSwap(owner, recipient, v.Path, v.Balances, taggedAsset)
}

func assetSwap(owner, recipient string, rawPath, rawBalances json.RawMessage, asset assetDecoder) (Event, error) {
	var path, balances []json.RawMessage
	if err := object(rawPath, &path); err != nil {
		return nil, err
	}
	if err := object(rawBalances, &balances); err != nil {
		return nil, err
	}
	if len(path) != len(balances) {
		return nil, fmt.Errorf("%w: swap path has %d currencies, balances has %d", ErrLengthMismatch, len(path), len(balances))
	}
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: swap path needs at least 2 currencies, got %d", ErrMalformedEvent, len(path))
	}

	out := AssetSwap{
		Owner:     owner,
		Recipient: recipient,
		Path:      make([]domain.Asset, len(path)),
		Balances:  make([]decimal.Decimal, len(balances)),
	}
	for i := range path {
		a, err := asset(path[i])
		if err != nil {
			return nil, err
		}
		amt, err := amount(balances[i])
		if err != nil {
			return nil, err
		}
		out.Path[i] = a
		out.Balances[i] = amt
	}
	return out, nil
}

func currencyExchange(withFee bool) DecodeFunc {
	return func(args json.RawMessage) (Event, error) {
		var v struct {
			PoolID    *uint32         `json:"poolId"`
			Who       json.RawMessage `json:"who"`
			To        json.RawMessage `json:"to"`
			InIndex   *uint32         `json:"inIndex"`
			InAmount  json.RawMessage `json:"inAmount"`
			OutIndex  *uint32         `json:"outIndex"`
			OutAmount json.RawMessage `json:"outAmount"`
			Fee       json.RawMessage `json:"fee"`
		}
		if err := object(args, &v); err != nil {
			return nil, err
		}
		if v.PoolID == nil || v.InIndex == nil || v.OutIndex == nil {
			return nil, fmt.Errorf("%w: poolId, inIndex and outIndex are required", ErrMalformedEvent)
		}

		var (
			out = StableExchange{
				PoolID:   *v.PoolID,
				InIndex:  *v.InIndex,
				OutIndex: *v.OutIndex,
				FeeRate:  decimal.Zero,
			}
			err error
		)
		if out.Who, err = account(v.Who); err != nil {
			return nil, err
		}
		if out.To, err = account(v.To); err != nil {
			return nil, err
		}
		if out.InAmount, err = amount(v.InAmount); err != nil {
			return nil, err
		}
		if out.OutAmount, err = amount(v.OutAmount); err != nil {
			return nil, err
		}
		if withFee {
			if out.FeeRate, err = fixed(v.Fee, stableFeeDecimals); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}
