package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dexindexer/internal/domain"
	"dexindexer/internal/stores"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// MarketStore keeps lending markets in the relational store, one row per market updated in place
type MarketStore struct {
	pool *Pool
}

func NewMarketStore(pool *Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Compile-time interface check.
var (
	_ stores.MarketReader = (*MarketStore)(nil)
	_ stores.Sink         = (*MarketStore)(nil)
)

const upsertMarket = `
	INSERT INTO markets (
		id, asset, lend_token_id,
		collateral_factor, liquidation_threshold, reserve_factor, close_factor, liquidate_incentive,
		borrow_cap, supply_cap, state,
		created_at, created_at_parachain, created_timestamp,
		activated_at, activated_at_parachain, activated_timestamp,
		updated_at, updated_at_parachain, updated_timestamp
	) VALUES (
		$1, $2, $3,
		$4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric,
		$9::numeric, $10::numeric, $11,
		$12, $13, $14,
		$15, $16, $17,
		$18, $19, $20
	)
	ON CONFLICT (id) DO UPDATE SET
		asset = EXCLUDED.asset,
		lend_token_id = EXCLUDED.lend_token_id,
		collateral_factor = EXCLUDED.collateral_factor,
		liquidation_threshold = EXCLUDED.liquidation_threshold,
		reserve_factor = EXCLUDED.reserve_factor,
		close_factor = EXCLUDED.close_factor,
		liquidate_incentive = EXCLUDED.liquidate_incentive,
		borrow_cap = EXCLUDED.borrow_cap,
		supply_cap = EXCLUDED.supply_cap,
		state = EXCLUDED.state,
		activated_at = EXCLUDED.activated_at,
		activated_at_parachain = EXCLUDED.activated_at_parachain,
		activated_timestamp = EXCLUDED.activated_timestamp,
		updated_at = EXCLUDED.updated_at,
		updated_at_parachain = EXCLUDED.updated_at_parachain,
		updated_timestamp = EXCLUDED.updated_timestamp
`

const selectMarkets = `
	SELECT
		id, asset::text, lend_token_id,
		collateral_factor::text, liquidation_threshold::text, reserve_factor::text, close_factor::text, liquidate_incentive::text,
		borrow_cap::text, supply_cap::text, state,
		created_at, created_at_parachain, created_timestamp,
		activated_at, activated_at_parachain, activated_timestamp,
		updated_at, updated_at_parachain, updated_timestamp
	FROM markets
`

// Persist upserts every market of the batch in one round trip
func (s *MarketStore) Persist(ctx context.Context, batch *domain.Batch) error {
	recs := batch.Of(domain.KindMarket)
	if len(recs) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, r := range recs {
		m, ok := r.(*domain.Market)
		if !ok {
			return fmt.Errorf("unexpected market record %T", r)
		}
		args, err := marketArgs(m)
		if err != nil {
			return err
		}
		b.Queue(upsertMarket, args...)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin markets tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err = tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("upsert markets: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit markets: %w", err)
	}
	return nil
}

// Market returns nil when the market was never persisted
func (s *MarketStore) Market(ctx context.Context, id string) (*domain.Market, error) {
	row := s.pool.QueryRow(ctx, selectMarkets+" WHERE id = $1", id)
	m, err := scanMarket(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}
	return m, nil
}

func (s *MarketStore) Markets(ctx context.Context) ([]*domain.Market, error) {
	rows, err := s.pool.Query(ctx, selectMarkets+` ORDER BY id COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	var out []*domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func marketArgs(m *domain.Market) ([]any, error) {
	asset, err := json.Marshal(m.Asset)
	if err != nil {
		return nil, fmt.Errorf("encode market asset %s: %w", m.ID, err)
	}

	var (
		activatedAt, activatedAtPara *int64
		activatedTs                  *time.Time
	)
	if m.ActivatedAt != nil {
		a, p := int64(m.ActivatedAt.Absolute), int64(m.ActivatedAt.Parachain)
		activatedAt, activatedAtPara = &a, &p
	}
	if m.ActivatedTimestamp != nil {
		ts := m.ActivatedTimestamp.UTC()
		activatedTs = &ts
	}

	return []any{
		m.ID, string(asset), int64(m.LendTokenID),
		m.CollateralFactor.String(), m.LiquidationThreshold.String(), m.ReserveFactor.String(),
		m.CloseFactor.String(), m.LiquidateIncentive.String(),
		m.BorrowCap.String(), m.SupplyCap.String(), string(m.State),
		int64(m.CreatedAt.Absolute), int64(m.CreatedAt.Parachain), m.CreatedTimestamp.UTC(),
		activatedAt, activatedAtPara, activatedTs,
		int64(m.UpdatedAt.Absolute), int64(m.UpdatedAt.Parachain), m.UpdatedTimestamp.UTC(),
	}, nil
}

func scanMarket(row pgx.Row) (*domain.Market, error) {
	var (
		m                                            domain.Market
		asset, state                                 string
		lendToken                                    int64
		cf, lt, rf, clf, li, bc, sc                  string
		createdAt, createdAtPara, updatedAt, updPara int64
		activatedAt, activatedAtPara                 *int64
		createdTs, updatedTs                         time.Time
		activatedTs                                  *time.Time
	)

	if err := row.Scan(
		&m.ID, &asset, &lendToken,
		&cf, &lt, &rf, &clf, &li,
		&bc, &sc, &state,
		&createdAt, &createdAtPara, &createdTs,
		&activatedAt, &activatedAtPara, &activatedTs,
		&updatedAt, &updPara, &updatedTs,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(asset), &m.Asset); err != nil {
		return nil, fmt.Errorf("decode market asset %s: %w", m.ID, err)
	}

	decs := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&m.CollateralFactor, cf},
		{&m.LiquidationThreshold, lt},
		{&m.ReserveFactor, rf},
		{&m.CloseFactor, clf},
		{&m.LiquidateIncentive, li},
		{&m.BorrowCap, bc},
		{&m.SupplyCap, sc},
	}
	for _, d := range decs {
		v, err := decimal.NewFromString(d.src)
		if err != nil {
			return nil, fmt.Errorf("decode market %s numeric %q: %w", m.ID, d.src, err)
		}
		*d.dst = v
	}

	m.LendTokenID = uint32(lendToken)
	m.State = domain.MarketState(state)
	m.CreatedAt = domain.Height{Absolute: uint64(createdAt), Parachain: uint64(createdAtPara)}
	m.CreatedTimestamp = createdTs.UTC()
	m.UpdatedAt = domain.Height{Absolute: uint64(updatedAt), Parachain: uint64(updPara)}
	m.UpdatedTimestamp = updatedTs.UTC()
	if activatedAt != nil && activatedAtPara != nil {
		m.ActivatedAt = &domain.Height{Absolute: uint64(*activatedAt), Parachain: uint64(*activatedAtPara)}
	}
	if activatedTs != nil {
		ts := activatedTs.UTC()
		m.ActivatedTimestamp = &ts
	}

	return &m, nil
}
