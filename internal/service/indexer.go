package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dexindexer/internal/aggregate"
	"dexindexer/internal/buffer"
	"dexindexer/internal/cache"
	"dexindexer/internal/chain"
	"dexindexer/internal/decode"
	"dexindexer/internal/domain"
	"dexindexer/internal/metrics"
	"dexindexer/internal/stores"

	"gitlab.com/nevasik7/alerting/logger"
)

// HealthChecker is a dependency probed by readiness
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Deps struct {
	Log      logger.Logger
	Registry *decode.Registry
	Heights  chain.HeightResolver
	State    chain.StateReader
	Caches   *cache.Caches
	Buffer   *buffer.Buffer
	Engine   *aggregate.Engine
	Markets  stores.MarketReader
	Sink     stores.Sink
	Metrics  *metrics.Indexer
	Health   map[string]HealthChecker
}

// IndexerService is the only orchestration point: decode -> produce -> aggregate -> buffer -> flush.
// It must be driven by a single goroutine, event order is significant
type IndexerService struct {
	log      logger.Logger
	registry *decode.Registry
	heights  chain.HeightResolver
	state    chain.StateReader
	caches   *cache.Caches
	buf      *buffer.Buffer
	engine   *aggregate.Engine
	markets  stores.MarketReader
	sink     stores.Sink
	metrics  *metrics.Indexer
	health   map[string]HealthChecker
}

func NewIndexerService(d Deps) (*IndexerService, error) {
	switch {
	case d.Log == nil:
		return nil, errors.New("logger is required")
	case d.Registry == nil:
		return nil, errors.New("decode registry is required")
	case d.State == nil:
		return nil, errors.New("chain state reader is required")
	case d.Buffer == nil || d.Engine == nil:
		return nil, errors.New("buffer and aggregation engine are required")
	case d.Sink == nil:
		return nil, errors.New("sink is required")
	}

	if d.Heights == nil {
		d.Heights = chain.NewOffsetResolver(0)
	}
	if d.Caches == nil {
		d.Caches = cache.New(d.State)
	}

	return &IndexerService{
		log:      d.Log,
		registry: d.Registry,
		heights:  d.Heights,
		state:    d.State,
		caches:   d.Caches,
		buf:      d.Buffer,
		engine:   d.Engine,
		markets:  d.Markets,
		sink:     d.Sink,
		metrics:  d.Metrics,
		health:   d.Health,
	}, nil
}

// eventMeta is what every produced record inherits from its raw event
type eventMeta struct {
	id     string
	block  domain.Block
	height domain.Height
}

// ProcessEvent handles one raw event. Skipped events (unknown version, missing upstream state)
// return nil; schema drift and invalid input return an error. Either way only this event is affected
func (s *IndexerService) ProcessEvent(ctx context.Context, raw *domain.RawEvent) error {
	err := s.process(ctx, raw)

	outcome := Classify(err)
	s.metrics.ObserveEvent(raw.Name, string(outcome), raw.Block.Height)

	switch outcome {
	case OutcomeSkipped:
		s.log.Warnf("Event %s (%s@%d) skipped: %v", raw.ID, raw.Name, raw.SpecVersion, err)
		return nil
	case OutcomeFailed:
		s.log.Errorf("Event %s (%s@%d) failed: %v", raw.ID, raw.Name, raw.SpecVersion, err)
		return fmt.Errorf("process event %s: %w", raw.ID, err)
	}
	s.buf.Track(raw.ID)
	return nil
}

func (s *IndexerService) process(ctx context.Context, raw *domain.RawEvent) error {
	ev, err := s.registry.Decode(raw)
	if err != nil {
		return err
	}

	height, err := s.heights.Resolve(ctx, raw.Block)
	if err != nil {
		return fmt.Errorf("resolve height %d: %w", raw.Block.Height, err)
	}
	m := eventMeta{id: raw.ID, block: raw.Block, height: height}

	switch e := ev.(type) {
	case decode.MarketCreated:
		return s.upsertMarket(ctx, m, e.Asset, e.Params, true)
	case decode.MarketUpdated:
		return s.upsertMarket(ctx, m, e.Asset, e.Params, false)
	case decode.MarketActivated:
		return s.activateMarket(ctx, m, e.Asset)
	case decode.Borrowed:
		return s.loan(ctx, m, decode.AccountAmount(e), domain.LoanBorrow)
	case decode.RepaidBorrow:
		return s.loan(ctx, m, decode.AccountAmount(e), domain.LoanRepay)
	case decode.Deposited:
		return s.deposit(m, decode.AccountAmount(e), domain.DepositLend)
	case decode.Redeemed:
		return s.deposit(m, decode.AccountAmount(e), domain.DepositRedeem)
	case decode.CollateralDeposited:
		return s.deposit(m, decode.AccountAmount(e), domain.DepositCollateral)
	case decode.CollateralWithdrawn:
		return s.deposit(m, decode.AccountAmount(e), domain.DepositCollateralWithdraw)
	case decode.InterestAccrued:
		return s.interestAccrued(m, e)
	case decode.AssetSwap:
		return s.standardSwap(ctx, m, e)
	case decode.StableExchange:
		return s.stableExchange(ctx, m, e)
	default:
		return fmt.Errorf("no producer for %T", ev)
	}
}

// Warm loads persisted markets so lend token amounts can be valued after a restart
func (s *IndexerService) Warm(ctx context.Context) error {
	if s.markets == nil {
		return nil
	}
	markets, err := s.markets.Markets(ctx)
	if err != nil {
		return fmt.Errorf("load markets: %w", err)
	}
	for _, m := range markets {
		s.caches.LendTokens.Put(m.LendTokenID, m.Asset)
	}
	s.log.Infof("Warmed lend token index with %d markets", len(markets))
	return nil
}

// Flush persists the buffered batch. The buffer is cleared only after the sink accepted it
func (s *IndexerService) Flush(ctx context.Context) (int, error) {
	if s.buf.Len() == 0 {
		return 0, nil
	}

	start := time.Now()
	batch := s.buf.Batch()
	err := s.sink.Persist(ctx, batch)

	perKind := make(map[string]int, len(batch.Kinds))
	for _, k := range batch.Kinds {
		perKind[string(k)] = len(batch.Of(k))
	}
	s.metrics.ObserveFlush(perKind, time.Since(start).Seconds(), err)

	if err != nil {
		return 0, fmt.Errorf("flush %d records: %w", batch.Len(), err)
	}

	s.buf.Reset()
	s.log.Debugf("Flushed %d records", batch.Len())
	return batch.Len(), nil
}

// Pending is the number of staged records
func (s *IndexerService) Pending() int { return s.buf.Len() }

// ResetSession clears caches and staged records between independent runs
func (s *IndexerService) ResetSession() {
	s.caches.Reset()
	s.buf.Reset()
}

func (s *IndexerService) CheckDependency(ctx context.Context) error {
	errDependency := make([]string, 0, len(s.health))

	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		h := s.health[name]
		if h == nil {
			continue
		}
		if err := h.Health(ctx); err != nil {
			errDependency = append(errDependency, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if len(errDependency) > 0 {
		return fmt.Errorf("dependency check failed: %v", strings.Join(errDependency, "; "))
	}

	s.log.Debugf("All dependency check passed")
	return nil
}
