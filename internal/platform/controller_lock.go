package platform

import (
	"errors"
	"strings"
)

// ErrControllerBusy indicates another client process of this user already
// drives the same controller.
var ErrControllerBusy = errors.New("controller already in use by another client")

// ErrControllerLockUnsupported indicates the current platform has no lock backend implementation.
var ErrControllerLockUnsupported = errors.New("controller lock unsupported")

// ControllerLock is held for as long as a client may send commands to one
// controller.
type ControllerLock interface {
	Release() error
}

// AcquireControllerLock takes the per user lock for target. Two clients that
// point at different controllers never contend.
func AcquireControllerLock(appID, target string) (ControllerLock, error) {
	return acquireControllerLock(controllerLockName(appID, target))
}

func controllerLockName(appID, target string) string {
	return normalizeLockComponent(appID, "app") + "-" + normalizeLockComponent(target, "default")
}

func normalizeLockComponent(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	normalized := strings.Trim(b.String(), "_-.")
	if normalized == "" {
		return fallback
	}

	return normalized
}
