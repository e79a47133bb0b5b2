package clickhouse

import (
	"context"
	"time"

	"dexindexer/internal/config"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"gitlab.com/nevasik7/alerting/logger"
)

const schemaVersion uint16 = 1

const insertQuery = `
	INSERT INTO indexer_records (
		kind,
		record_id,
		height,
		parachain_height,
		event_time,
		payload,
		schema_version
	)
`

// HistoryRow is one emitted record in the append-only history table
type HistoryRow struct {
	Kind            string
	RecordID        string
	Height          uint64
	ParachainHeight uint64
	EventTime       time.Time
	Payload         string // record JSON
	SchemaVersion   uint16
}

// Writer inserts rows in chunks of BatchMaxRows, retrying each chunk with exponential backoff
type Writer struct {
	log logger.Logger

	conn ch.Conn
	cfg  config.ClickHouseWriterConfig
}

func NewWriter(log logger.Logger, conn ch.Conn, cfg config.ClickHouseConfig) *Writer {
	// sane defaults
	if cfg.Writer.BatchMaxRows <= 0 {
		cfg.Writer.BatchMaxRows = 1000
	}
	if cfg.Writer.MaxRetries < 0 {
		cfg.Writer.MaxRetries = 0
	}
	if cfg.Writer.RetryBackoff <= 0 {
		cfg.Writer.RetryBackoff = 200 * time.Millisecond
	}

	return &Writer{
		log:  log,
		conn: conn,
		cfg:  cfg.Writer,
	}
}

func (w *Writer) Write(ctx context.Context, rows []HistoryRow) error {
	for start := 0; start < len(rows); start += w.cfg.BatchMaxRows {
		end := min(start+w.cfg.BatchMaxRows, len(rows))
		if err := w.insertBatch(ctx, rows[start:end]); err != nil {
			w.log.Errorf("Failed insert [%d] rows by batch to clickhouse, error=%v", end-start, err)
			return err
		}
	}
	return nil
}

func (w *Writer) insertBatch(ctx context.Context, rows []HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}

	// repeat with exponential delay
	backoff := w.cfg.RetryBackoff

	var lastErr error

	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		batch, err := w.conn.PrepareBatch(ctx, insertQuery)
		if err != nil {
			lastErr = err
			goto retry
		}

		for i := range rows {
			r := &rows[i]
			if err = batch.Append(
				r.Kind,
				r.RecordID,
				r.Height,
				r.ParachainHeight,
				r.EventTime,
				r.Payload,
				r.SchemaVersion,
			); err != nil {
				lastErr = err
				_ = batch.Abort()
				goto retry
			}
		}

		if err = batch.Send(); err != nil {
			lastErr = err
			goto retry
		}
		// success
		return nil

	retry:
		if attempt == w.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return lastErr
}
