package app

import (
	"context"
	"errors"
	"net/http"

	"gitlab.com/nevasik7/alerting/logger"
)

type HTTPServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// Processor is the long running event loop; it returns once ctx is done or its source ends
type Processor interface {
	Run(ctx context.Context) error
}

type App struct {
	log     logger.Logger
	httpSrv HTTPServer
	proc    Processor

	cancel  context.CancelFunc
	done    chan struct{}
	procErr error
}

func New(log logger.Logger, httpSrv HTTPServer, proc Processor) *App {
	return &App{log: log, httpSrv: httpSrv, proc: proc}
}

func (a *App) Start(ctx context.Context) error {
	a.log.Debug("App started begin...")

	go func() {
		if err := a.httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("Start HTTP server is error=%v", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		if err := a.proc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.procErr = err
		}
	}()

	a.log.Info("App started")
	return nil
}

// Done is closed once the processor has stopped
func (a *App) Done() <-chan struct{} {
	return a.done
}

// Err is the processor failure, valid after Done is closed
func (a *App) Err() error {
	return a.procErr
}

// Shutdown stops the processor first so its final flush completes, then the HTTP server
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Debug("App stopped begin...")

	if a.cancel != nil {
		a.cancel()
		select {
		case <-a.done:
			if a.procErr != nil {
				a.log.Errorf("Processor stopped with error=%v", a.procErr)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := a.httpSrv.Shutdown(ctx); err != nil {
		return err
	}

	a.log.Info("App stopped")
	return nil
}
