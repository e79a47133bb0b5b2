package handlers

import (
	"context"
	"net/http"
	"time"

	"dexindexer/pkg/httputil"

	"gitlab.com/nevasik7/alerting/logger"
)

// DependencyChecker reports the first unhealthy collaborator of the processor
type DependencyChecker interface {
	CheckDependency(ctx context.Context) error
}

type Handler struct {
	Log     logger.Logger
	Checker DependencyChecker
}

func NewHandler(log logger.Logger, checker DependencyChecker) *Handler {
	if checker == nil {
		panic("dependency checker cannot be nil")
	}

	return &Handler{Log: log, Checker: checker}
}

func (a *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	if err := httputil.OK(w, http.StatusOK, map[string]string{"alive": "true"}); err != nil {
		a.Log.Errorf("Healthz handler error: %s", err.Error())
	}
}

// Check health external services/clients
func (a *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := a.Checker.CheckDependency(ctx); err != nil {
		a.Log.Warnf("Readiness check failed: %v", err)
		err = httputil.Error(w, r, http.StatusServiceUnavailable, "dependencies_unhealthy", "dependencies check failed", map[string]any{
			"error": err.Error(),
		})
		if err != nil {
			a.Log.Errorf("Readiness handler error: %s", err.Error())
		}
		return
	}

	if err := httputil.OK(w, http.StatusOK, map[string]string{"dependencies": "healthy"}); err != nil {
		a.Log.Errorf("Readiness handler error: %s", err.Error())
	}
}
