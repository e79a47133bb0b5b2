package decode

import (
	"encoding/json"
	"fmt"

	"dexindexer/internal/domain"

	"github.com/shopspring/decimal"
)

// Fixed-point denominations used by the chain
const (
	fixedU128Decimals = 18 // FixedU128 rates
	permillDecimals   = 6  // Permill ratios
	stableFeeDecimals = 10 // dexStable fee, FEE_DENOMINATOR = 1e10
)

// kindTag is the {"__kind": ..., "value": ...} enum envelope
type kindTag struct {
	Kind  string          `json:"__kind"`
	Value json.RawMessage `json:"value"`
}

// Legacy encoding (runtime < 1023000): Token value is a bare symbol string
func legacyAsset(raw json.RawMessage) (domain.Asset, error) {
	var tag kindTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return domain.Asset{}, fmt.Errorf("%w: currency: %v", ErrMalformedEvent, err)
	}

	switch tag.Kind {
	case "Token":
		var symbol string
		if err := json.Unmarshal(tag.Value, &symbol); err != nil {
			return domain.Asset{}, fmt.Errorf("%w: token symbol: %v", ErrMalformedEvent, err)
		}
		return nativeToken(symbol)
	case "LpToken":
		return lpPair(tag.Value, legacyAsset)
	default:
		return numericAsset(tag)
	}
}

// Tagged encoding (runtime >= 1023000): Token value is itself an enum {"__kind": "KSM"}
func taggedAsset(raw json.RawMessage) (domain.Asset, error) {
	var tag kindTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return domain.Asset{}, fmt.Errorf("%w: currency: %v", ErrMalformedEvent, err)
	}

	switch tag.Kind {
	case "Token":
		var symbol kindTag
		if err := json.Unmarshal(tag.Value, &symbol); err != nil {
			return domain.Asset{}, fmt.Errorf("%w: token symbol: %v", ErrMalformedEvent, err)
		}
		return nativeToken(symbol.Kind)
	case "LpToken":
		return lpPair(tag.Value, taggedAsset)
	default:
		return numericAsset(tag)
	}
}

func nativeToken(symbol string) (domain.Asset, error) {
	if !domain.IsNativeToken(symbol) {
		return domain.Asset{}, fmt.Errorf("%w: %q", domain.ErrUnknownToken, symbol)
	}
	return domain.Token(symbol), nil
}

func numericAsset(tag kindTag) (domain.Asset, error) {
	var kind domain.AssetKind
	switch tag.Kind {
	case "ForeignAsset":
		kind = domain.KindForeignAsset
	case "LendToken":
		kind = domain.KindLendToken
	case "StableLpToken":
		kind = domain.KindStableLp
	default:
		return domain.Asset{}, fmt.Errorf("%w: %q", domain.ErrUnknownAssetVariant, tag.Kind)
	}

	var id uint32
	if err := json.Unmarshal(tag.Value, &id); err != nil {
		return domain.Asset{}, fmt.Errorf("%w: %s id: %v", ErrMalformedEvent, tag.Kind, err)
	}
	return domain.Raw(kind, id), nil
}

func lpPair(raw json.RawMessage, member func(json.RawMessage) (domain.Asset, error)) (domain.Asset, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return domain.Asset{}, fmt.Errorf("%w: lp token: %v", ErrMalformedEvent, err)
	}
	if len(parts) != 2 {
		return domain.Asset{}, fmt.Errorf("%w: lp token with %d members", ErrMalformedEvent, len(parts))
	}

	first, err := member(parts[0])
	if err != nil {
		return domain.Asset{}, err
	}
	second, err := member(parts[1])
	if err != nil {
		return domain.Asset{}, err
	}
	// LP pair members may only be Token, ForeignAsset or StableLpToken
	for _, m := range []domain.Asset{first, second} {
		if k := m.Kind(); k == domain.KindLendToken || k == domain.KindLpPair {
			return domain.Asset{}, fmt.Errorf("%w: %s inside lp token", domain.ErrUnknownAssetVariant, k)
		}
	}
	return domain.LpPair(first, second), nil
}

// amount parses an atomic balance: integer, non-negative, string or number
func amount(raw json.RawMessage) (decimal.Decimal, error) {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount: %v", ErrMalformedEvent, err)
	}
	if !d.IsInteger() || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: amount %s is not an unsigned integer", ErrMalformedEvent, d)
	}
	return d, nil
}

// fixed scales an on-chain fixed-point integer down by 10^decimals
func fixed(raw json.RawMessage, decimals int32) (decimal.Decimal, error) {
	d, err := amount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-decimals), nil
}

func tuple(args json.RawMessage, n int) ([]json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(args, &parts); err != nil {
		return nil, fmt.Errorf("%w: expected tuple: %v", ErrMalformedEvent, err)
	}
	if len(parts) != n {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedEvent, n, len(parts))
	}
	return parts, nil
}

func object(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

func account(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: account: %v", ErrMalformedEvent, err)
	}
	if s == "" {
		return "", fmt.Errorf("%w: empty account", ErrMalformedEvent)
	}
	return s, nil
}

func marketState(raw json.RawMessage) (domain.MarketState, error) {
	var tag kindTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return "", fmt.Errorf("%w: market state: %v", ErrMalformedEvent, err)
	}
	switch s := domain.MarketState(tag.Kind); s {
	case domain.MarketPending, domain.MarketActive, domain.MarketSupervision:
		return s, nil
	default:
		return "", fmt.Errorf("%w: market state %q", ErrMalformedEvent, tag.Kind)
	}
}

// CurrencyID decodes a currency id read from chain storage, which always uses the tagged encoding
func CurrencyID(raw json.RawMessage) (domain.Asset, error) {
	return taggedAsset(raw)
}
