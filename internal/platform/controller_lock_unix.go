//go:build unix && !windows

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

type unixControllerLock struct {
	file *os.File
}

func acquireControllerLock(name string) (ControllerLock, error) {
	lockPath, err := unixControllerLockPath(name)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- lockPath is built from process-owned runtime/temp directories.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open controller lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if isUnixLockContention(err) {
			return nil, ErrControllerBusy
		}

		return nil, fmt.Errorf("acquire controller file lock: %w", err)
	}

	return &unixControllerLock{file: file}, nil
}

func (l *unixControllerLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	fd := int(l.file.Fd())
	unlockErr := syscall.Flock(fd, syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil && !errors.Is(unlockErr, syscall.EBADF) {
		return fmt.Errorf("unlock controller file lock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close controller lock file: %w", closeErr)
	}

	return nil
}

// unixControllerLockPath keeps every lock file in one per user directory,
// named after the controller.
func unixControllerLockPath(name string) (string, error) {
	lockDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if lockDir != "" {
		lockDir = filepath.Join(lockDir, "metrogo-locks")
	} else {
		lockDir = filepath.Join(os.TempDir(), "metrogo-locks-"+strconv.Itoa(os.Getuid()))
	}

	if err := os.MkdirAll(lockDir, 0o700); err != nil {
		return "", fmt.Errorf("create controller lock dir: %w", err)
	}

	return filepath.Join(lockDir, name+".lock"), nil
}

func isUnixLockContention(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}
