package buffer

import (
	"dexindexer/internal/domain"
)

type entryKey struct {
	kind domain.RecordKind
	id   string
}

// Buffer stages records for one batch. Pushing an existing (kind, id) replaces the
// pending value in place; first-push order is kept for flushing
type Buffer struct {
	order  []entryKey
	items  map[entryKey]domain.Record
	latest map[string]*domain.Aggregate // aggregate key -> most recent snapshot
	events []string
}

func New() *Buffer {
	return &Buffer{
		items:  make(map[entryKey]domain.Record),
		latest: make(map[string]*domain.Aggregate),
	}
}

func (b *Buffer) Push(kind domain.RecordKind, rec domain.Record) {
	k := entryKey{kind: kind, id: rec.RecordID()}
	if _, ok := b.items[k]; !ok {
		b.order = append(b.order, k)
	}
	b.items[k] = rec

	if agg, ok := rec.(*domain.Aggregate); ok {
		key := agg.Key.String()
		if cur, ok := b.latest[key]; !ok || !agg.TillTimestamp.Before(cur.TillTimestamp) {
			b.latest[key] = agg
		}
	}
}

func (b *Buffer) Get(kind domain.RecordKind, id string) (domain.Record, bool) {
	rec, ok := b.items[entryKey{kind: kind, id: id}]
	return rec, ok
}

// LatestAggregate returns the newest in-batch snapshot of a running total
func (b *Buffer) LatestAggregate(key domain.AggregateKey) (*domain.Aggregate, bool) {
	agg, ok := b.latest[key.String()]
	return agg, ok
}

func (b *Buffer) Market(id string) (*domain.Market, bool) {
	rec, ok := b.Get(domain.KindMarket, id)
	if !ok {
		return nil, false
	}
	m, ok := rec.(*domain.Market)
	return m, ok
}

func (b *Buffer) Len() int { return len(b.order) }

// Track notes a raw event whose records are fully staged
func (b *Buffer) Track(eventID string) {
	b.events = append(b.events, eventID)
}

// Batch groups the staged records per kind without clearing them
func (b *Buffer) Batch() *domain.Batch {
	batch := &domain.Batch{
		Records:  make(map[domain.RecordKind][]domain.Record),
		EventIDs: append([]string(nil), b.events...),
	}
	for _, k := range b.order {
		if _, seen := batch.Records[k.kind]; !seen {
			batch.Kinds = append(batch.Kinds, k.kind)
		}
		batch.Records[k.kind] = append(batch.Records[k.kind], b.items[k])
	}
	return batch
}

func (b *Buffer) Reset() {
	b.order = nil
	b.items = make(map[entryKey]domain.Record)
	b.latest = make(map[string]*domain.Aggregate)
	b.events = nil
}

// Drain hands over the staged records and starts an empty batch
func (b *Buffer) Drain() *domain.Batch {
	batch := b.Batch()
	b.Reset()
	return batch
}
