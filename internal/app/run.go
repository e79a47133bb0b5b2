package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"dexindexer/internal/config"
)

// Run We assemble the container, start it, wait for the signal and stop
func Run(cfg *config.Config) error {
	ctxBuild, cancelBuild := context.WithTimeout(context.Background(), cfg.App.BuildTimeout)
	defer cancelBuild()

	container, err := Build(ctxBuild, cfg)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = container.Start(sigCtx); err != nil {
		container.cleanup()
		return err
	}

	var procErr error
	select {
	case <-sigCtx.Done():
	case <-container.app.Done():
		if err = container.app.Err(); err != nil {
			procErr = fmt.Errorf("processor stopped: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err = container.Stop(shutdownCtx); err != nil {
		return err
	}
	return procErr
}
