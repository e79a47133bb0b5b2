package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"dexindexer/internal/domain"
	"dexindexer/internal/stores"

	goredis "github.com/redis/go-redis/v9"
)

var (
	_ stores.Reader = (*Store)(nil)
	_ stores.Sink   = (*Store)(nil)
)

// Store keeps the hot state the core reads back: the latest snapshot of every running
// total and every lending market. Both are JSON values under prefixed keys
type Store struct {
	rdb    *Client
	prefix string

	seenPrefix string
	seenTTL    time.Duration
}

func NewStore(rdb *Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

// WithSeenMarks makes Persist record the batch's event ids under seenPrefix, in the same
// transaction as the totals, so a redelivery guard only drops events that are stored
func (s *Store) WithSeenMarks(seenPrefix string, ttl time.Duration) *Store {
	s.seenPrefix = seenPrefix
	s.seenTTL = ttl
	return s
}

func (s *Store) aggregateKey(key domain.AggregateKey) string {
	return s.prefix + "agg:" + key.String()
}

func (s *Store) marketKey(id string) string {
	return s.prefix + "market:" + id
}

func (s *Store) marketsKey() string {
	return s.prefix + "markets"
}

func (s *Store) LatestAggregate(ctx context.Context, key domain.AggregateKey) (*domain.Aggregate, error) {
	b, err := s.rdb.Get(ctx, s.aggregateKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregate %s: %w", key, err)
	}

	var agg domain.Aggregate
	if err = json.Unmarshal(b, &agg); err != nil {
		return nil, fmt.Errorf("decode aggregate %s: %w", key, err)
	}
	return &agg, nil
}

func (s *Store) Market(ctx context.Context, id string) (*domain.Market, error) {
	b, err := s.rdb.Get(ctx, s.marketKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}

	var m domain.Market
	if err = json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode market %s: %w", id, err)
	}
	return &m, nil
}

func (s *Store) Markets(ctx context.Context) ([]*domain.Market, error) {
	ids, err := s.rdb.SMembers(ctx, s.marketsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.marketKey(id)
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}

	out := make([]*domain.Market, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// listed but value gone
			continue
		}
		var m domain.Market
		if err = json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("decode market %s: %w", ids[i], err)
		}
		out = append(out, &m)
	}
	return out, nil
}

// Persist writes the newest aggregate per key, every market and the seen marks of the batch
// in one transaction
func (s *Store) Persist(ctx context.Context, batch *domain.Batch) error {
	aggs := latestAggregates(batch.Of(domain.KindAggregate))
	markets := batch.Of(domain.KindMarket)
	var seen []string
	if s.seenPrefix != "" && batch != nil {
		seen = batch.EventIDs
	}
	if len(aggs) == 0 && len(markets) == 0 && len(seen) == 0 {
		return nil
	}

	type entry struct {
		key string
		val []byte
	}
	entries := make([]entry, 0, len(aggs)+len(markets))
	marketIDs := make([]any, 0, len(markets))

	for _, a := range aggs {
		b, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode aggregate %s: %w", a.Key, err)
		}
		entries = append(entries, entry{key: s.aggregateKey(a.Key), val: b})
	}
	for _, r := range markets {
		m, ok := r.(*domain.Market)
		if !ok {
			return fmt.Errorf("unexpected market record %T", r)
		}
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode market %s: %w", m.ID, err)
		}
		entries = append(entries, entry{key: s.marketKey(m.ID), val: b})
		marketIDs = append(marketIDs, m.ID)
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, e.key, e.val, 0)
		}
		if len(marketIDs) > 0 {
			pipe.SAdd(ctx, s.marketsKey(), marketIDs...)
		}
		for _, id := range seen {
			pipe.Set(ctx, s.seenPrefix+id, 1, s.seenTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write redis batch: %w", err)
	}
	return nil
}

// latestAggregates keeps the snapshot with the greatest TillTimestamp per key, later wins on ties
func latestAggregates(recs []domain.Record) []*domain.Aggregate {
	byKey := make(map[domain.AggregateKey]*domain.Aggregate, len(recs))
	order := make([]domain.AggregateKey, 0, len(recs))

	for _, r := range recs {
		a, ok := r.(*domain.Aggregate)
		if !ok {
			continue
		}
		cur, seen := byKey[a.Key]
		if !seen {
			order = append(order, a.Key)
		}
		if !seen || !a.TillTimestamp.Before(cur.TillTimestamp) {
			byKey[a.Key] = a
		}
	}

	out := make([]*domain.Aggregate, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out
}
