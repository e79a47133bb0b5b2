package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dexindexer/internal/config"
	"dexindexer/internal/dedupe"
	"dexindexer/internal/domain"
	"dexindexer/internal/metrics"

	"github.com/nats-io/nats.go"
	"gitlab.com/nevasik7/alerting/logger"
)

// Ingest outcomes
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeMalformed = "malformed"
)

// Subscriber delivers raw chain events published on one subject, in arrival order
type Subscriber struct {
	nc      *nats.Conn
	log     logger.Logger
	cfg     config.NATSConfig
	dedupe  dedupe.Deduper
	metrics *metrics.Indexer
}

func New(log logger.Logger, cfg *config.NATSConfig, dd dedupe.Deduper, m *metrics.Indexer) (*Subscriber, error) {
	if cfg == nil {
		return nil, errors.New("nats config is required")
	}
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}
	if cfg.Subject == "" {
		return nil, errors.New("nats subject is required")
	}
	if dd == nil {
		dd = dedupe.Nop{}
	}

	name := cfg.ClientName
	if name == "" {
		name = "dex-indexer"
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1), // endless reconnected
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("Disconnected from NATS, error=%v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("Reconnected to NATS, url=%s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Infof("Connected to NATS successfully, url=%s", cfg.URL)

	return &Subscriber{
		nc:      nc,
		log:     log,
		cfg:     *cfg,
		dedupe:  dd,
		metrics: m,
	}, nil
}

// Start subscribes and returns the event stream. The stream is closed once ctx is done
func (s *Subscriber) Start(ctx context.Context) (<-chan *domain.RawEvent, error) {
	if s.nc == nil {
		return nil, errors.New("nats connection is not initialized")
	}

	bufSize := s.cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 4096
	}
	msgs := make(chan *nats.Msg, bufSize)

	// one plain subscriber per stream; the aggregation is single-writer
	sub, err := s.nc.ChanSubscribe(s.cfg.Subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.cfg.Subject, err)
	}
	if s.cfg.MaxPending > 0 {
		if err = sub.SetPendingLimits(s.cfg.MaxPending, -1); err != nil {
			_ = sub.Unsubscribe()
			return nil, fmt.Errorf("failed to set pending limits: %w", err)
		}
	}
	if err = s.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to flush subscription: %w", err)
	}
	s.log.Infof("Subscribed to NATS subject=%s", s.cfg.Subject)

	out := make(chan *domain.RawEvent)
	go s.forward(ctx, sub, msgs, out)

	return out, nil
}

func (s *Subscriber) forward(ctx context.Context, sub *nats.Subscription, msgs <-chan *nats.Msg, out chan<- *domain.RawEvent) {
	defer close(out)
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			s.log.Warnf("Failed to unsubscribe from %s, error=%v", s.cfg.Subject, err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgs:
			ev, ok := s.accept(ctx, msg)
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// accept decodes a message and filters transport redeliveries
func (s *Subscriber) accept(ctx context.Context, msg *nats.Msg) (*domain.RawEvent, bool) {
	ev, err := Decode(msg.Data)
	if err != nil {
		s.log.Errorf("Dropping malformed event on %s, error=%v", msg.Subject, err)
		s.metrics.ObserveIngest(OutcomeMalformed)
		return nil, false
	}

	seen, err := s.dedupe.Seen(ctx, ev.ID)
	if err != nil {
		// a broken guard must not stall ingestion
		s.log.Warnf("Dedupe check failed for %s, error=%v", ev.ID, err)
	}
	if seen {
		s.log.Debugf("Skipping redelivered event %s", ev.ID)
		s.metrics.ObserveIngest(OutcomeDuplicate)
		return nil, false
	}

	s.metrics.ObserveIngest(OutcomeAccepted)
	return ev, true
}

func Decode(data []byte) (*domain.RawEvent, error) {
	var ev domain.RawEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	switch {
	case ev.ID == "":
		return nil, errors.New("event id is required")
	case ev.Name == "":
		return nil, errors.New("event name is required")
	}
	return &ev, nil
}

func (s *Subscriber) Ready() bool {
	if s.nc == nil {
		return false
	}
	return s.nc.Status() == nats.CONNECTED
}

func (s *Subscriber) Status() nats.Status {
	if s.nc == nil {
		return nats.DISCONNECTED
	}
	return s.nc.Status()
}

func (s *Subscriber) Health(_ context.Context) error {
	if !s.Ready() {
		return fmt.Errorf("nats status %s", s.Status())
	}
	return nil
}

func (s *Subscriber) Close() error {
	if s.nc == nil {
		return nil
	}

	// check not close this conn
	if s.nc.Status() == nats.CLOSED {
		return nil
	}

	if err := s.nc.Drain(); err != nil {
		s.log.Errorf("Failed to drain connection to NATS, error=%v", err)
		s.nc.Close()
		return fmt.Errorf("failed to drain connection to NATS: %w", err)
	}

	s.nc.Close()
	s.log.Infof("NATS connection closed gracefully")
	return nil
}
