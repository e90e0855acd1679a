package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"winnow/internal/config"
	"winnow/internal/inference"
)

const providerCheckTimeout = 10 * time.Second

// ModelLister is implemented by providers that can enumerate locally
// available models.
type ModelLister interface {
	MissingModels(ctx context.Context, models []string) ([]string, error)
}

// CheckDirectoryAccess verifies that the directory exists and is readable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckProvider verifies the inference backend is reachable. It uses a
// short timeout and no retries so health reports stay fast.
func CheckProvider(ctx context.Context, provider inference.Provider) Result {
	const name = "Inference backend"
	if provider == nil {
		return Result{Name: name, Detail: "no provider configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, providerCheckTimeout)
	defer cancel()

	if err := provider.HealthCheck(checkCtx); err != nil {
		return Result{Name: provider.Name(), Detail: summarizeProviderError(err)}
	}
	return Result{Name: provider.Name(), Passed: true, Detail: "reachable"}
}

// CheckModels verifies the configured tier models are available on the
// backend. Returns nil when the provider cannot enumerate models.
func CheckModels(ctx context.Context, provider inference.Provider, cfg *config.Config) *Result {
	const name = "Tier models"
	lister, ok := provider.(ModelLister)
	if !ok {
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, providerCheckTimeout)
	defer cancel()

	models := []string{cfg.Inference.FastModel, cfg.Inference.MidModel, cfg.Inference.HighModel}
	missing, err := lister.MissingModels(checkCtx, models)
	if err != nil {
		return &Result{Name: name, Detail: summarizeProviderError(err)}
	}
	if len(missing) > 0 {
		return &Result{Name: name, Detail: fmt.Sprintf("not pulled: %s", strings.Join(missing, ", "))}
	}
	return &Result{Name: name, Passed: true, Detail: "all tiers available"}
}

// CheckCacheLocation verifies the scan cache directory is usable. A
// missing directory passes because the store creates it on open.
func CheckCacheLocation(path string) Result {
	const name = "Scan cache"
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (directory will be created)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", dir, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", dir)}
	}
	if err := unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", dir, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeProviderError produces a human-readable summary for backend
// health check failures.
func summarizeProviderError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (backend unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (backend unreachable)"
	}
	return err.Error()
}
