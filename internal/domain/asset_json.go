package domain

import (
	"encoding/json"
	"fmt"
)

type assetJSON struct {
	Kind   AssetKind   `json:"kind"`
	Symbol string      `json:"symbol,omitempty"`
	ID     uint32      `json:"id,omitempty"`
	Pair   []assetJSON `json:"pair,omitempty"`
}

func toAssetJSON(a Asset) assetJSON {
	out := assetJSON{Kind: a.kind, Symbol: a.symbol, ID: a.id}
	if first, second, ok := a.Pair(); ok {
		out.Pair = []assetJSON{toAssetJSON(first), toAssetJSON(second)}
	}
	return out
}

func fromAssetJSON(v assetJSON) (Asset, error) {
	switch v.Kind {
	case KindToken:
		return Token(v.Symbol), nil
	case KindForeignAsset, KindLendToken, KindStableLp:
		return Raw(v.Kind, v.ID), nil
	case KindLpPair:
		if len(v.Pair) != 2 {
			return Asset{}, fmt.Errorf("%w: lp pair with %d members", ErrUnknownAssetVariant, len(v.Pair))
		}
		first, err := fromAssetJSON(v.Pair[0])
		if err != nil {
			return Asset{}, err
		}
		second, err := fromAssetJSON(v.Pair[1])
		if err != nil {
			return Asset{}, err
		}
		return LpPair(first, second), nil
	default:
		return Asset{}, fmt.Errorf("%w: %s", ErrUnknownAssetVariant, v.Kind)
	}
}

func (a Asset) MarshalJSON() ([]byte, error) {
	return json.Marshal(toAssetJSON(a))
}

func (a *Asset) UnmarshalJSON(b []byte) error {
	var v assetJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	out, err := fromAssetJSON(v)
	if err != nil {
		return err
	}
	*a = out
	return nil
}
