package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAssets() []Asset {
	return []Asset{
		Token("DOT"),
		Token("IBTC"),
		Token("INTR"),
		Token("KSM"),
		Token("KBTC"),
		Token("KINT"),
		ForeignAsset(1),
		ForeignAsset(3),
		LendToken(1),
		LendToken(2),
		LpPair(Token("KSM"), Token("KBTC")),
		LpPair(Token("KSM"), ForeignAsset(1)),
		LpPair(ForeignAsset(1), StableLp(0)),
		StableLp(0),
		StableLp(5),
	}
}

// ========== Ordering Tests ==========

func TestCompare_RankOrder(t *testing.T) {
	testCases := []struct {
		name string
		a, b Asset
		want int
	}{
		{name: "token_before_foreign", a: Token("KINT"), b: ForeignAsset(0), want: -1},
		{name: "foreign_before_lend", a: ForeignAsset(99), b: LendToken(0), want: -1},
		{name: "lend_before_lp_pair", a: LendToken(99), b: LpPair(Token("DOT"), Token("KSM")), want: -1},
		{name: "lp_pair_before_stable_lp", a: LpPair(Token("DOT"), Token("KSM")), b: StableLp(0), want: -1},
		{name: "native_table_dot_before_ksm", a: Token("DOT"), b: Token("KSM"), want: -1},
		{name: "native_table_kint_after_kbtc", a: Token("KINT"), b: Token("KBTC"), want: 1},
		{name: "foreign_by_id", a: ForeignAsset(3), b: ForeignAsset(1), want: 1},
		{name: "same_asset", a: StableLp(5), b: StableLp(5), want: 0},
		{name: "lp_pair_second_member", a: LpPair(Token("KSM"), Token("KBTC")), b: LpPair(Token("KSM"), ForeignAsset(1)), want: -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compare(tc.a, tc.b)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompare_Antisymmetric(t *testing.T) {
	assets := sampleAssets()
	for _, a := range assets {
		for _, b := range assets {
			ab, err := Compare(a, b)
			require.NoError(t, err)
			ba, err := Compare(b, a)
			require.NoError(t, err)

			assert.Equal(t, ab, -ba, "compare(%s,%s)", a, b)
			if !a.Equal(b) {
				assert.NotZero(t, ab, "distinct assets %s and %s must not compare equal", a, b)
			}
		}
	}
}

func TestCompare_Transitive(t *testing.T) {
	assets := sampleAssets()
	for _, a := range assets {
		for _, b := range assets {
			for _, c := range assets {
				ab, _ := Compare(a, b)
				bc, _ := Compare(b, c)
				if ab < 0 && bc < 0 {
					ac, err := Compare(a, c)
					require.NoError(t, err)
					assert.Equal(t, -1, ac, "%s < %s < %s", a, b, c)
				}
			}
		}
	}
}

func TestCompare_UnknownVariant(t *testing.T) {
	_, err := Compare(Raw(AssetKind(9), 1), Token("DOT"))
	assert.ErrorIs(t, err, ErrUnknownAssetVariant)

	_, err = Compare(Token("DOT"), Raw(AssetKind(7), 1))
	assert.ErrorIs(t, err, ErrUnknownAssetVariant)
}

func TestCompare_UnknownToken(t *testing.T) {
	_, err := Compare(Token("BTC"), Token("DOT"))
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestOrderPair_OrderIndependent(t *testing.T) {
	assets := sampleAssets()
	for _, a := range assets {
		for _, b := range assets {
			lo1, hi1, err := OrderPair(a, b)
			require.NoError(t, err)
			lo2, hi2, err := OrderPair(b, a)
			require.NoError(t, err)

			assert.True(t, lo1.Equal(lo2))
			assert.True(t, hi1.Equal(hi2))

			c, _ := Compare(lo1, hi1)
			assert.LessOrEqual(t, c, 0)
		}
	}
}

// ========== Key Tests ==========

func TestPairKey_Symmetric(t *testing.T) {
	k1, err := PairKey(Token("KSM"), ForeignAsset(2))
	require.NoError(t, err)
	k2, err := PairKey(ForeignAsset(2), Token("KSM"))
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Equal(t, "(KSM,foreign:2)", k1)
}

func TestAssetKey(t *testing.T) {
	testCases := []struct {
		name  string
		asset Asset
		want  string
	}{
		{name: "token", asset: Token("KINT"), want: "KINT"},
		{name: "foreign", asset: ForeignAsset(3), want: "foreign:3"},
		{name: "lend", asset: LendToken(2), want: "lend:2"},
		{name: "stable_lp", asset: StableLp(5), want: "stable-lp:5"},
		{name: "lp_pair_recurses", asset: LpPair(Token("KSM"), StableLp(1)), want: "(KSM,stable-lp:1)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.asset.Key()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := Raw(AssetKind(8), 0).Key()
	assert.ErrorIs(t, err, ErrUnknownAssetVariant)
}

func TestAsset_EqualIsStructural(t *testing.T) {
	assert.True(t, LpPair(Token("KSM"), Token("KINT")).Equal(LpPair(Token("KSM"), Token("KINT"))))
	assert.False(t, LpPair(Token("KSM"), Token("KINT")).Equal(LpPair(Token("KINT"), Token("KSM"))))
	assert.False(t, LendToken(1).Equal(ForeignAsset(1)))
}

func TestAsset_JSON(t *testing.T) {
	in := LpPair(Token("KSM"), StableLp(4))

	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Asset
	require.NoError(t, json.Unmarshal(b, &out))
	assert.True(t, in.Equal(out))

	err = json.Unmarshal([]byte(`{"kind":9}`), &out)
	assert.ErrorIs(t, err, ErrUnknownAssetVariant)
}

// ========== EventID Tests ==========

func TestMakeEventID(t *testing.T) {
	testCases := []struct {
		name   string
		height uint64
		hash   string
		index  uint32
		want   string
	}{
		{name: "prefixed_upper_hash", height: 1234, hash: "0xABCDEF0123", index: 7, want: "0000001234-abcde-000007"},
		{name: "short_hash", height: 1, hash: "ab", index: 0, want: "0000000001-ab-000000"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MakeEventID(tc.height, tc.hash, tc.index))
		})
	}
}
