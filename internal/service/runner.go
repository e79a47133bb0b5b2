package service

import (
	"context"
	"fmt"
	"time"

	"dexindexer/internal/domain"

	"gitlab.com/nevasik7/alerting/logger"
)

type RunnerConfig struct {
	FlushInterval time.Duration
	FlushSize     int
	FlushTimeout  time.Duration
}

// Runner is the single processing goroutine: it applies events in arrival order and
// flushes the buffer when it grows past FlushSize or on every FlushInterval tick
type Runner struct {
	log logger.Logger
	svc *IndexerService
	cfg RunnerConfig
}

func NewRunner(log logger.Logger, svc *IndexerService, cfg RunnerConfig) *Runner {
	// sane defaults
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 5000
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 10 * time.Second
	}
	return &Runner{log: log, svc: svc, cfg: cfg}
}

// Run consumes events until the channel is closed or ctx is done, then flushes what is left
func (r *Runner) Run(ctx context.Context, events <-chan *domain.RawEvent) error {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				r.flush(context.Background())
				return nil
			}
			// failures are logged and counted by the service, the stream continues
			_ = r.svc.ProcessEvent(ctx, ev)

			if r.svc.Pending() >= r.cfg.FlushSize {
				r.flush(ctx)
			}
		case <-ticker.C:
			r.flush(ctx)
		case <-ctx.Done():
			r.flush(context.Background())
			return ctx.Err()
		}
	}
}

func (r *Runner) flush(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, r.cfg.FlushTimeout)
	defer cancel()

	n, err := r.svc.Flush(ctx)
	if err != nil {
		// buffer is kept, next tick retries
		r.log.Errorf("Failed flush, pending=%d, error=%v", r.svc.Pending(), err)
		return
	}
	if n > 0 {
		r.log.Debugf("Flushed batch of %d records", n)
	}
}

// EventSource starts delivering raw events; the stream closes when ctx is done
type EventSource interface {
	Start(ctx context.Context) (<-chan *domain.RawEvent, error)
}

// Pipeline warms the service from persisted state, then feeds the source into the runner
type Pipeline struct {
	src    EventSource
	runner *Runner
}

func NewPipeline(src EventSource, runner *Runner) *Pipeline {
	return &Pipeline{src: src, runner: runner}
}

func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.runner.svc.Warm(ctx); err != nil {
		return fmt.Errorf("warm: %w", err)
	}

	events, err := p.src.Start(ctx)
	if err != nil {
		return fmt.Errorf("start event source: %w", err)
	}

	return p.runner.Run(ctx, events)
}
