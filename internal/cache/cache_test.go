package cache

import (
	"context"
	"encoding/json"
	"testing"

	"dexindexer/internal/chain"
	"dexindexer/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStateReader implements chain.StateReader for tests
type MockStateReader struct {
	mock.Mock
}

func (m *MockStateReader) StablePool(ctx context.Context, block domain.Block, poolID uint32) (*chain.StablePool, error) {
	args := m.Called(ctx, block, poolID)
	pool, _ := args.Get(0).(*chain.StablePool)
	return pool, args.Error(1)
}

func (m *MockStateReader) TradingPair(ctx context.Context, block domain.Block, lo, hi domain.Asset) (*chain.TradingPair, error) {
	args := m.Called(ctx, block, lo, hi)
	pair, _ := args.Get(0).(*chain.TradingPair)
	return pair, args.Error(1)
}

func stablePool(kind string, currencies ...string) *chain.StablePool {
	p := &chain.StablePool{Kind: kind}
	for _, c := range currencies {
		p.CurrencyIDs = append(p.CurrencyIDs, json.RawMessage(c))
		p.Balances = append(p.Balances, decimal.Zero)
	}
	return p
}

const (
	currencyKSM     = `{"__kind":"Token","value":{"__kind":"KSM"}}`
	currencyForeign = `{"__kind":"ForeignAsset","value":1}`
	currencyKBTC    = `{"__kind":"Token","value":{"__kind":"KBTC"}}`
)

// ========== Pool Cache Tests ==========

func TestPoolCache_ResolvesMembersByIndex(t *testing.T) {
	reader := new(MockStateReader)
	block := domain.Block{Height: 100}
	reader.On("StablePool", mock.Anything, block, uint32(5)).
		Return(stablePool(chain.StablePoolBase, currencyKSM, currencyForeign), nil).Once()

	c := NewPoolCache(reader)

	in, err := c.Member(context.Background(), block, 5, 0)
	require.NoError(t, err)
	out, err := c.Member(context.Background(), block, 5, 1)
	require.NoError(t, err)

	assert.True(t, in.Asset.Equal(domain.Token("KSM")))
	assert.True(t, out.Asset.Equal(domain.ForeignAsset(1)))
	assert.JSONEq(t, currencyForeign, string(out.Raw))
	assert.Equal(t, 1, c.Fetches(), "second lookup must be served from cache")
	reader.AssertExpectations(t)
}

func TestPoolCache_OutOfRangeRefetchesOnce(t *testing.T) {
	reader := new(MockStateReader)
	reader.On("StablePool", mock.Anything, mock.Anything, uint32(5)).
		Return(stablePool(chain.StablePoolBase, currencyKSM, currencyForeign), nil).Twice()

	c := NewPoolCache(reader)
	_, err := c.Members(context.Background(), domain.Block{Height: 100}, 5)
	require.NoError(t, err)

	_, err = c.Member(context.Background(), domain.Block{Height: 101}, 5, 2)

	assert.ErrorIs(t, err, ErrAssetIndexOutOfRange)
	assert.Equal(t, 2, c.Fetches())
	reader.AssertNumberOfCalls(t, "StablePool", 2)
}

func TestPoolCache_SameBlockOutOfRangeIsFinal(t *testing.T) {
	reader := new(MockStateReader)
	block := domain.Block{Height: 100}
	reader.On("StablePool", mock.Anything, block, uint32(5)).
		Return(stablePool(chain.StablePoolBase, currencyKSM, currencyForeign), nil).Once()

	c := NewPoolCache(reader)
	_, err := c.Member(context.Background(), block, 5, 0)
	require.NoError(t, err)

	_, err = c.Member(context.Background(), block, 5, 2)

	assert.ErrorIs(t, err, ErrAssetIndexOutOfRange)
	assert.Equal(t, 1, c.Fetches())
}

func TestPoolCache_ColdOutOfRangeReadsOnce(t *testing.T) {
	reader := new(MockStateReader)
	block := domain.Block{Height: 100}
	reader.On("StablePool", mock.Anything, block, uint32(5)).
		Return(stablePool(chain.StablePoolBase, currencyKSM, currencyForeign), nil).Once()

	c := NewPoolCache(reader)
	_, err := c.Member(context.Background(), block, 5, 2)

	assert.ErrorIs(t, err, ErrAssetIndexOutOfRange)
	assert.Equal(t, 1, c.Fetches())
	reader.AssertNumberOfCalls(t, "StablePool", 1)
}

func TestPoolCache_RefetchSeesGrownPool(t *testing.T) {
	reader := new(MockStateReader)
	reader.On("StablePool", mock.Anything, domain.Block{Height: 200}, uint32(7)).
		Return(stablePool(chain.StablePoolMeta, currencyKSM, currencyForeign), nil).Once()
	reader.On("StablePool", mock.Anything, domain.Block{Height: 210}, uint32(7)).
		Return(stablePool(chain.StablePoolMeta, currencyKSM, currencyForeign, currencyKBTC), nil).Once()

	c := NewPoolCache(reader)
	_, err := c.Members(context.Background(), domain.Block{Height: 200}, 7)
	require.NoError(t, err)

	m, err := c.Member(context.Background(), domain.Block{Height: 210}, 7, 2)

	require.NoError(t, err)
	assert.True(t, m.Asset.Equal(domain.Token("KBTC")))
	reader.AssertExpectations(t)
}

func TestPoolCache_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		pool    *chain.StablePool
		wantErr error
	}{
		{name: "absent", pool: nil, wantErr: ErrPoolNotFound},
		{name: "unknown_shape", pool: stablePool("Curve2", currencyKSM), wantErr: ErrPoolTypeUnsupported},
		{name: "undecodable_currency", pool: stablePool(chain.StablePoolBase, `{"__kind":"Erc20","value":"0x1"}`), wantErr: ErrPoolTypeUnsupported},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reader := new(MockStateReader)
			reader.On("StablePool", mock.Anything, mock.Anything, uint32(1)).Return(tc.pool, nil)

			c := NewPoolCache(reader)
			_, err := c.Member(context.Background(), domain.Block{Height: 1}, 1, 0)

			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestPoolCache_Reset(t *testing.T) {
	reader := new(MockStateReader)
	reader.On("StablePool", mock.Anything, mock.Anything, uint32(5)).
		Return(stablePool(chain.StablePoolBase, currencyKSM, currencyForeign), nil)

	c := NewPoolCache(reader)
	_, err := c.Members(context.Background(), domain.Block{}, 5)
	require.NoError(t, err)

	c.Reset()
	_, err = c.Members(context.Background(), domain.Block{}, 5)
	require.NoError(t, err)

	reader.AssertNumberOfCalls(t, "StablePool", 2)
}

// ========== Rate Cache Tests ==========

func TestRateCache_Lookback(t *testing.T) {
	c := NewRateCache()
	c.Append(100, "DOT", decimal.RequireFromString("0.05"))
	c.Append(200, "DOT", decimal.RequireFromString("0.07"))

	testCases := []struct {
		name      string
		height    uint64
		want      string
		wantFound bool
	}{
		{name: "between_samples", height: 150, want: "0.05", wantFound: true},
		{name: "exact_sample", height: 200, want: "0.07", wantFound: true},
		{name: "after_last", height: 250, want: "0.07", wantFound: true},
		{name: "before_first", height: 50, want: "0.02", wantFound: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rate, found := c.RateAt(tc.height, "DOT")
			assert.Equal(t, tc.wantFound, found)
			assert.True(t, rate.Equal(decimal.RequireFromString(tc.want)), "got %s", rate)
		})
	}
}

func TestRateCache_SymbolsAreIndependent(t *testing.T) {
	c := NewRateCache()
	c.Append(100, "DOT", decimal.RequireFromString("0.05"))

	rate, found := c.RateAt(500, "KSM")

	assert.False(t, found)
	assert.True(t, rate.Equal(DefaultExchangeRate))
}

func TestRateCache_SameHeightReplaces(t *testing.T) {
	c := NewRateCache()
	c.Append(100, "DOT", decimal.RequireFromString("0.05"))
	c.Append(100, "DOT", decimal.RequireFromString("0.06"))

	rate, _ := c.RateAt(100, "DOT")

	assert.Equal(t, "0.06", rate.String())
	assert.Len(t, c.samples["DOT"], 1)
}

func TestRateCache_OutOfOrderKeepsLogSorted(t *testing.T) {
	c := NewRateCache()
	c.Append(100, "DOT", decimal.RequireFromString("0.05"))
	c.Append(300, "DOT", decimal.RequireFromString("0.09"))
	c.Append(200, "DOT", decimal.RequireFromString("0.07"))

	rate, _ := c.RateAt(250, "DOT")

	assert.Equal(t, "0.07", rate.String())
	heights := make([]uint64, 0, 3)
	for _, s := range c.samples["DOT"] {
		heights = append(heights, s.Height)
	}
	assert.Equal(t, []uint64{100, 200, 300}, heights)
}

// ========== Session Tests ==========

func TestCaches_Reset(t *testing.T) {
	c := New(new(MockStateReader))
	c.Rates.Append(1, "DOT", decimal.NewFromInt(1))
	c.LendTokens.Put(3, domain.Token("DOT"))

	c.Reset()

	_, found := c.Rates.RateAt(1, "DOT")
	assert.False(t, found)
	_, ok := c.LendTokens.Underlying(3)
	assert.False(t, ok)
}
