package domain

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrUnknownAssetVariant = errors.New("unknown asset variant")
	ErrUnknownToken        = errors.New("unknown native token")
)

// AssetKind mirrors the chain's CurrencyId discriminant; the numeric value is the ordering rank
type AssetKind uint8

const (
	KindToken        AssetKind = 0
	KindForeignAsset AssetKind = 1
	KindLendToken    AssetKind = 2
	KindLpPair       AssetKind = 3
	KindStableLp     AssetKind = 4
)

func (k AssetKind) String() string {
	switch k {
	case KindToken:
		return "Token"
	case KindForeignAsset:
		return "ForeignAsset"
	case KindLendToken:
		return "LendToken"
	case KindLpPair:
		return "LpToken"
	case KindStableLp:
		return "StableLpToken"
	default:
		return "Unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Native token symbols with their TokenSymbol discriminant on chain
var tokenIndex = map[string]uint32{
	"DOT":  0,
	"IBTC": 1,
	"INTR": 2,
	"KSM":  10,
	"KBTC": 11,
	"KINT": 12,
}

// IsNativeToken reports whether symbol is part of the native token table
func IsNativeToken(symbol string) bool {
	_, ok := tokenIndex[symbol]
	return ok
}

// Asset is an immutable tagged variant; compare with Equal, never with ==
type Asset struct {
	kind   AssetKind
	symbol string // KindToken
	id     uint32 // KindForeignAsset, KindLendToken, KindStableLp
	pair   *[2]Asset
}

func Token(symbol string) Asset      { return Asset{kind: KindToken, symbol: symbol} }
func ForeignAsset(id uint32) Asset   { return Asset{kind: KindForeignAsset, id: id} }
func LendToken(id uint32) Asset      { return Asset{kind: KindLendToken, id: id} }
func StableLp(poolID uint32) Asset   { return Asset{kind: KindStableLp, id: poolID} }
func LpPair(first, second Asset) Asset {
	return Asset{kind: KindLpPair, pair: &[2]Asset{first, second}}
}

// Raw constructs an asset of an arbitrary kind; used by decoders for forward-compatible variants
func Raw(kind AssetKind, id uint32) Asset { return Asset{kind: kind, id: id} }

func (a Asset) Kind() AssetKind { return a.kind }
func (a Asset) Symbol() string  { return a.symbol }
func (a Asset) ID() uint32      { return a.id }

// Pair returns the LP pair members in stored order
func (a Asset) Pair() (Asset, Asset, bool) {
	if a.kind != KindLpPair || a.pair == nil {
		return Asset{}, Asset{}, false
	}
	return a.pair[0], a.pair[1], true
}

func (a Asset) Equal(b Asset) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindToken:
		return a.symbol == b.symbol
	case KindLpPair:
		if a.pair == nil || b.pair == nil {
			return a.pair == b.pair
		}
		return a.pair[0].Equal(b.pair[0]) && a.pair[1].Equal(b.pair[1])
	default:
		return a.id == b.id
	}
}

// index is the variant-specific ordering position inside one rank
func (a Asset) index() (uint32, error) {
	switch a.kind {
	case KindToken:
		idx, ok := tokenIndex[a.symbol]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownToken, a.symbol)
		}
		return idx, nil
	case KindForeignAsset, KindLendToken, KindStableLp:
		return a.id, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownAssetVariant, a.kind)
	}
}

// Compare orders assets by variant rank, then by variant index. LP pairs compare element-wise
func Compare(a, b Asset) (int, error) {
	if a.kind > KindStableLp {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAssetVariant, a.kind)
	}
	if b.kind > KindStableLp {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAssetVariant, b.kind)
	}

	if a.kind != b.kind {
		return cmpUint(uint32(a.kind), uint32(b.kind)), nil
	}

	if a.kind == KindLpPair {
		a0, a1, okA := a.Pair()
		b0, b1, okB := b.Pair()
		if !okA || !okB {
			return 0, fmt.Errorf("%w: empty lp pair", ErrUnknownAssetVariant)
		}
		c, err := Compare(a0, b0)
		if err != nil || c != 0 {
			return c, err
		}
		return Compare(a1, b1)
	}

	ia, err := a.index()
	if err != nil {
		return 0, err
	}
	ib, err := b.index()
	if err != nil {
		return 0, err
	}
	return cmpUint(ia, ib), nil
}

// OrderPair returns the two assets sorted ascending by Compare
func OrderPair(a, b Asset) (Asset, Asset, error) {
	c, err := Compare(a, b)
	if err != nil {
		return Asset{}, Asset{}, err
	}
	if c > 0 {
		return b, a, nil
	}
	return a, b, nil
}

// PairKey is the canonical, order-independent key of a standard pool: "(lo,hi)"
func PairKey(a, b Asset) (string, error) {
	lo, hi, err := OrderPair(a, b)
	if err != nil {
		return "", err
	}
	loKey, err := lo.Key()
	if err != nil {
		return "", err
	}
	hiKey, err := hi.Key()
	if err != nil {
		return "", err
	}
	return "(" + loKey + "," + hiKey + ")", nil
}

// Key is the canonical string of the asset; fails on variants outside the known set
func (a Asset) Key() (string, error) {
	switch a.kind {
	case KindToken, KindForeignAsset, KindLendToken, KindStableLp:
		return a.String(), nil
	case KindLpPair:
		first, second, ok := a.Pair()
		if !ok {
			return "", fmt.Errorf("%w: empty lp pair", ErrUnknownAssetVariant)
		}
		k0, err := first.Key()
		if err != nil {
			return "", err
		}
		k1, err := second.Key()
		if err != nil {
			return "", err
		}
		return "(" + k0 + "," + k1 + ")", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownAssetVariant, a.kind)
	}
}

func (a Asset) String() string {
	switch a.kind {
	case KindToken:
		return a.symbol
	case KindForeignAsset:
		return "foreign:" + strconv.FormatUint(uint64(a.id), 10)
	case KindLendToken:
		return "lend:" + strconv.FormatUint(uint64(a.id), 10)
	case KindStableLp:
		return "stable-lp:" + strconv.FormatUint(uint64(a.id), 10)
	case KindLpPair:
		if a.pair == nil {
			return "()"
		}
		return "(" + a.pair[0].String() + "," + a.pair[1].String() + ")"
	default:
		return a.kind.String()
	}
}

func cmpUint(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
