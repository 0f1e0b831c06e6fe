package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/skobkin/metrogo/internal/platform"
)

type noopControllerLock struct{}

func (noopControllerLock) Release() error { return nil }

var acquireControllerLock = platform.AcquireControllerLock

// LockController claims target for this process. A second client of the same
// user pointed at the same controller gets platform.ErrControllerBusy.
// Platforms without a lock backend run unlocked.
func LockController(target string, logger *slog.Logger) (platform.ControllerLock, error) {
	if logger == nil {
		logger = slog.Default()
	}

	lock, err := acquireControllerLock(Name, target)
	switch {
	case err == nil:
		return lock, nil
	case errors.Is(err, platform.ErrControllerLockUnsupported):
		logger.Warn("controller lock is not available, running unlocked", "target", target, "error", err)

		return noopControllerLock{}, nil
	default:
		return nil, fmt.Errorf("lock controller %s: %w", target, err)
	}
}
