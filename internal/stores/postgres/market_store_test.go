package postgres

import (
	"context"
	"testing"
	"time"

	"dexindexer/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMarket(id string, asset domain.Asset, lendToken uint32) *domain.Market {
	ts := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Market{
		ID:                   id,
		Asset:                asset,
		LendTokenID:          lendToken,
		CollateralFactor:     decimal.RequireFromString("0.5"),
		LiquidationThreshold: decimal.RequireFromString("0.55"),
		ReserveFactor:        decimal.RequireFromString("0.2"),
		CloseFactor:          decimal.RequireFromString("0.5"),
		LiquidateIncentive:   decimal.RequireFromString("1.1"),
		BorrowCap:            decimal.RequireFromString("1000000000000000000000"),
		SupplyCap:            decimal.RequireFromString("2000000000000000000000"),
		State:                domain.MarketPending,
		CreatedAt:            domain.Height{Absolute: 1500, Parachain: 500},
		CreatedTimestamp:     ts,
		UpdatedAt:            domain.Height{Absolute: 1500, Parachain: 500},
		UpdatedTimestamp:     ts,
	}
}

func marketBatch(ms ...*domain.Market) *domain.Batch {
	recs := make([]domain.Record, len(ms))
	for i, m := range ms {
		recs[i] = m
	}
	return &domain.Batch{
		Kinds:   []domain.RecordKind{domain.KindMarket},
		Records: map[domain.RecordKind][]domain.Record{domain.KindMarket: recs},
	}
}

func TestMarketStore_PersistAndGet(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewMarketStore(pool)

	ksm := newMarket("KSM", domain.Token("KSM"), 1)
	require.NoError(t, store.Persist(ctx, marketBatch(ksm)))

	got, err := store.Market(ctx, "KSM")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.True(t, got.Asset.Equal(domain.Token("KSM")))
	assert.Equal(t, uint32(1), got.LendTokenID)
	assert.True(t, got.LiquidateIncentive.Equal(decimal.RequireFromString("1.1")))
	assert.True(t, got.SupplyCap.Equal(ksm.SupplyCap))
	assert.Equal(t, domain.MarketPending, got.State)
	assert.Equal(t, ksm.CreatedAt, got.CreatedAt)
	assert.True(t, got.CreatedTimestamp.Equal(ksm.CreatedTimestamp))
	assert.Nil(t, got.ActivatedAt)
	assert.Nil(t, got.ActivatedTimestamp)
}

func TestMarketStore_UpsertInPlace(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewMarketStore(pool)

	m := newMarket("foreign:1", domain.ForeignAsset(1), 3)
	require.NoError(t, store.Persist(ctx, marketBatch(m)))

	activated := domain.Height{Absolute: 1600, Parachain: 600}
	ts := m.CreatedTimestamp.Add(time.Hour)
	m.State = domain.MarketActive
	m.ActivatedAt = &activated
	m.ActivatedTimestamp = &ts
	m.UpdatedAt = activated
	m.UpdatedTimestamp = ts
	require.NoError(t, store.Persist(ctx, marketBatch(m)))

	all, err := store.Markets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	got := all[0]
	assert.Equal(t, domain.MarketActive, got.State)
	require.NotNil(t, got.ActivatedAt)
	assert.Equal(t, activated, *got.ActivatedAt)
	require.NotNil(t, got.ActivatedTimestamp)
	assert.True(t, got.ActivatedTimestamp.Equal(ts))
	assert.Equal(t, m.CreatedAt, got.CreatedAt)
	assert.True(t, got.Asset.Equal(domain.ForeignAsset(1)))
}

func TestMarketStore_MissingAndEmpty(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewMarketStore(pool)

	got, err := store.Market(ctx, "KSM")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Persist(ctx, &domain.Batch{}))

	all, err := store.Markets(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMarketStore_Ordering(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewMarketStore(pool)

	require.NoError(t, store.Persist(ctx, marketBatch(
		newMarket("KSM", domain.Token("KSM"), 1),
		newMarket("KBTC", domain.Token("KBTC"), 2),
		newMarket("foreign:1", domain.ForeignAsset(1), 3),
	)))

	all, err := store.Markets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"KBTC", "KSM", "foreign:1"}, []string{all[0].ID, all[1].ID, all[2].ID})
}
