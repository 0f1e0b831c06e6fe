//go:build !unix && !windows

package platform

import (
	"fmt"
	"runtime"
)

func acquireControllerLock(_ string) (ControllerLock, error) {
	return nil, fmt.Errorf("%w on %s", ErrControllerLockUnsupported, runtime.GOOS)
}
