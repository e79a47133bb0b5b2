package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dexindexer/internal/buffer"
	"dexindexer/internal/domain"
	"dexindexer/internal/stores"

	"github.com/shopspring/decimal"
	"gitlab.com/nevasik7/alerting/logger"
)

var ErrInvalidSwap = errors.New("invalid swap")

var one = decimal.NewFromInt(1)

// Engine folds swaps and loans into running totals. Every update reads the latest total
// (buffer first, then store) and writes total+delta, so callers must apply events one at a time
type Engine struct {
	log   logger.Logger
	buf   *buffer.Buffer
	store stores.AggregateReader
}

func NewEngine(log logger.Logger, buf *buffer.Buffer, store stores.AggregateReader) (*Engine, error) {
	if buf == nil {
		return nil, errors.New("buffer is required")
	}
	return &Engine{log: log, buf: buf, store: store}, nil
}

// Fee is floor(rate * amount); never rounds up
func Fee(rate, amount decimal.Decimal) decimal.Decimal {
	if rate.Sign() <= 0 || amount.Sign() <= 0 {
		return decimal.Zero
	}
	return rate.Mul(amount).Floor()
}

type update struct {
	key   domain.AggregateKey
	delta decimal.Decimal
}

// ApplySwap updates pool, then account, then global totals for one swap hop
func (e *Engine) ApplySwap(ctx context.Context, s *domain.Swap) error {
	if s == nil || s.PoolKey == "" || s.From.Account == "" {
		return fmt.Errorf("%w: pool key and account are required", ErrInvalidSwap)
	}
	from, err := s.From.Asset.Key()
	if err != nil {
		return err
	}
	to, err := s.To.Asset.Key()
	if err != nil {
		return err
	}

	account := s.From.Account
	global := string(s.PoolType)

	updates := []update{
		{key(domain.MetricVolume, domain.ScopePool, s.PoolKey, from), s.From.Amount},
		{key(domain.MetricVolume, domain.ScopePool, s.PoolKey, to), s.To.Amount},
		{key(domain.MetricFee, domain.ScopePool, s.PoolKey, from), s.Fee},

		{key(domain.MetricVolume, domain.ScopeAccount, account, from), s.From.Amount},
		{key(domain.MetricVolume, domain.ScopeAccount, account, to), s.To.Amount},
		{key(domain.MetricFee, domain.ScopeAccount, account, from), s.Fee},
		{key(domain.MetricTrades, domain.ScopeAccount, account, ""), one},

		{key(domain.MetricVolume, domain.ScopeGlobal, global, from), s.From.Amount},
		{key(domain.MetricVolume, domain.ScopeGlobal, global, to), s.To.Amount},
		{key(domain.MetricFee, domain.ScopeGlobal, global, from), s.Fee},
		{key(domain.MetricTrades, domain.ScopeGlobal, global, ""), one},
	}

	return e.apply(ctx, updates, s.Height, s.Timestamp)
}

// ApplyLoan updates account, then global borrowed or repaid totals
func (e *Engine) ApplyLoan(ctx context.Context, l *domain.Loan) error {
	asset, err := l.Asset.Key()
	if err != nil {
		return err
	}

	metric := domain.MetricBorrowed
	if l.Kind == domain.LoanRepay {
		metric = domain.MetricRepaid
	}

	updates := []update{
		{key(metric, domain.ScopeAccount, l.Account, asset), l.Amount},
		{key(metric, domain.ScopeGlobal, domain.SubjectLoans, asset), l.Amount},
	}
	return e.apply(ctx, updates, l.Height, l.Timestamp)
}

// Total is the current running total, zero if never written
func (e *Engine) Total(ctx context.Context, k domain.AggregateKey) (decimal.Decimal, error) {
	if agg, ok := e.buf.LatestAggregate(k); ok {
		return agg.Total, nil
	}
	if e.store == nil {
		return decimal.Zero, nil
	}

	agg, err := e.store.LatestAggregate(ctx, k)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read aggregate %s: %w", k, err)
	}
	if agg == nil {
		return decimal.Zero, nil
	}
	return agg.Total, nil
}

func (e *Engine) apply(ctx context.Context, updates []update, height domain.Height, ts time.Time) error {
	for _, u := range updates {
		if u.delta.IsZero() {
			continue
		}

		cur, err := e.Total(ctx, u.key)
		if err != nil {
			return err
		}

		e.buf.Push(domain.KindAggregate, &domain.Aggregate{
			Key:           u.key,
			Total:         cur.Add(u.delta),
			Height:        height,
			TillTimestamp: ts,
		})
	}
	return nil
}

func key(metric domain.Metric, scope domain.Scope, subject, asset string) domain.AggregateKey {
	return domain.AggregateKey{Metric: metric, Scope: scope, Subject: subject, Asset: asset}
}
