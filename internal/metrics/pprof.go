package metrics

import (
	"maps"
	"runtime"

	"dexindexer/internal/config"

	"github.com/grafana/pyroscope-go"
)

const (
	profilerService = "dex-indexer"
	// sampled 1 in N events; mutex and block contention come from the single flush path
	contentionRate = 5
)

// StartProfiler pushes continuous profiles to pyroscope; a disabled config yields a nil profiler
func StartProfiler(cfg config.PyroscopeConfig, instanceID string) (*pyroscope.Profiler, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	appName := cfg.AppName
	if appName == "" {
		appName = profilerService
	}

	runtime.SetMutexProfileFraction(contentionRate)
	runtime.SetBlockProfileRate(contentionRate)

	return pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   cfg.ServerAddr,
		AuthToken:       cfg.AuthToken,
		Logger:          pyroscope.StandardLogger,
		Tags:            profilerTags(cfg.Tags, instanceID),
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockDuration,
		},
	})
}

// profilerTags lets configured tags override the service defaults
func profilerTags(extra map[string]string, instanceID string) map[string]string {
	tags := map[string]string{
		"service":  profilerService,
		"instance": instanceID,
	}
	maps.Copy(tags, extra)
	return tags
}
