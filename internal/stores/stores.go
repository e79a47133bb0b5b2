package stores

import (
	"context"
	"errors"
	"fmt"

	"dexindexer/internal/domain"
)

// AggregateReader returns the last persisted snapshot of a running total, nil if none
type AggregateReader interface {
	LatestAggregate(ctx context.Context, key domain.AggregateKey) (*domain.Aggregate, error)
}

// MarketReader returns a persisted market by asset key, nil if none.
// Markets lists every persisted market, used to warm lookups on start
type MarketReader interface {
	Market(ctx context.Context, id string) (*domain.Market, error)
	Markets(ctx context.Context) ([]*domain.Market, error)
}

type Reader interface {
	AggregateReader
	MarketReader
}

// Sink persists one flushed batch
type Sink interface {
	Persist(ctx context.Context, batch *domain.Batch) error
}

type namedSink struct {
	name string
	sink Sink
}

// Multi fans a batch out to every sink in registration order and stops at the first failure
type Multi struct {
	sinks []namedSink
}

func NewMulti() *Multi {
	return &Multi{}
}

func (m *Multi) Add(name string, sink Sink) *Multi {
	if sink != nil {
		m.sinks = append(m.sinks, namedSink{name: name, sink: sink})
	}
	return m
}

func (m *Multi) Persist(ctx context.Context, batch *domain.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	for _, s := range m.sinks {
		if err := s.sink.Persist(ctx, batch); err != nil {
			return fmt.Errorf("persist to %s: %w", s.name, err)
		}
	}
	return nil
}

var ErrNoSinks = errors.New("no sinks configured")

func (m *Multi) Validate() error {
	if len(m.sinks) == 0 {
		return ErrNoSinks
	}
	return nil
}
