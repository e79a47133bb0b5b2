package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dexindexer/internal/config"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

const (
	clientName    = "dex-indexer"
	clientVersion = "0.1.0"
	pingTimeout   = 10 * time.Second
)

// Conn is the history store connection; the processor writes from one goroutine, so the pool stays small
type Conn struct {
	Native ch.Conn
}

func New(ctx context.Context, cfg config.ClickHouseConfig) (*Conn, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := ch.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed open clickhouse, error=%w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err = conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed ping clickhouse, error=%w", err)
	}

	return &Conn{Native: conn}, nil
}

// options fills what the DSN leaves unset
func options(cfg config.ClickHouseConfig) (*ch.Options, error) {
	if cfg.DSN == "" {
		return nil, errors.New("clickhouse dsn cannot be empty")
	}
	opts, err := ch.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed parse clickhouse dsn, error=%w", err)
	}

	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.Compression == nil {
		opts.Compression = &ch.Compression{Method: ch.CompressionLZ4}
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 4
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 10 * time.Minute
	}
	if opts.Settings == nil {
		opts.Settings = ch.Settings{}
	}
	// retried flushes resend identical blocks
	opts.Settings["insert_deduplicate"] = 1

	opts.ClientInfo = ch.ClientInfo{
		Products: []struct{ Name, Version string }{
			{Name: clientName, Version: clientVersion},
		},
	}

	return opts, nil
}

func (c *Conn) Health(ctx context.Context) error {
	return c.Native.Ping(ctx)
}

func (c *Conn) Close() error {
	return c.Native.Close()
}

// Exec runs one DDL statement, used by migrations
func (c *Conn) Exec(ctx context.Context, stmt string) error {
	return c.Native.Exec(ctx, stmt)
}
