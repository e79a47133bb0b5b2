package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dexindexer/internal/domain"
	"dexindexer/internal/stores"
)

var _ stores.Sink = (*HistorySink)(nil)

type rowWriter interface {
	Write(ctx context.Context, rows []HistoryRow) error
}

// HistorySink appends every record of a batch to the history table, kinds in batch order
type HistorySink struct {
	w rowWriter
}

func NewHistorySink(w *Writer) *HistorySink {
	return &HistorySink{w: w}
}

func (s *HistorySink) Persist(ctx context.Context, batch *domain.Batch) error {
	rows, err := Rows(batch)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return s.w.Write(ctx, rows)
}

func Rows(batch *domain.Batch) ([]HistoryRow, error) {
	if batch == nil {
		return nil, nil
	}

	rows := make([]HistoryRow, 0, batch.Len())
	for _, kind := range batch.Kinds {
		for _, rec := range batch.Of(kind) {
			row, err := toRow(kind, rec)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func toRow(kind domain.RecordKind, rec domain.Record) (HistoryRow, error) {
	h, ts := position(rec)

	payload, err := json.Marshal(rec)
	if err != nil {
		return HistoryRow{}, fmt.Errorf("encode %s %s: %w", kind, rec.RecordID(), err)
	}

	return HistoryRow{
		Kind:            string(kind),
		RecordID:        rec.RecordID(),
		Height:          h.Absolute,
		ParachainHeight: h.Parachain,
		EventTime:       ts,
		Payload:         string(payload),
		SchemaVersion:   schemaVersion,
	}, nil
}

// position is the block a record was last touched at
func position(rec domain.Record) (domain.Height, time.Time) {
	switch r := rec.(type) {
	case *domain.Swap:
		return r.Height, r.Timestamp
	case *domain.Loan:
		return r.Height, r.Timestamp
	case *domain.Deposit:
		return r.Height, r.Timestamp
	case *domain.InterestAccrual:
		return r.Height, r.Timestamp
	case *domain.PoolLiquidity:
		return r.Height, r.Timestamp
	case *domain.Aggregate:
		return r.Height, r.TillTimestamp
	case *domain.Market:
		return r.UpdatedAt, r.UpdatedTimestamp
	default:
		return domain.Height{}, time.Time{}
	}
}
