package preflight

import (
	"context"

	"vidscribe/internal/config"
)

// Result reports the outcome of a single preflight check. Optional checks
// never block a run even when they do not pass.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckReadableDirectory("Input directory", cfg.Paths.InputDir),
		CheckWritableLocation("Output directory", cfg.Paths.OutputDir),
		CheckFreeSpace("Output free space", cfg.Paths.OutputDir, MinFreeBytes),
	}
	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
		switch {
		case status.Available:
			result.Detail = status.Path
		default:
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	results = append(results, CheckGPU(ctx, cfg))
	results = append(results, CheckVAD(cfg), CheckMirror(cfg), CheckNotifications(cfg))
	return results
}

// Blocking returns the failed checks that are not optional.
func Blocking(results []Result) []Result {
	var blocking []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			blocking = append(blocking, r)
		}
	}
	return blocking
}
