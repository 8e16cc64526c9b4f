package batch

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"vidscribe/internal/services"
)

// LockFileName is created in the output directory while a run is active.
const LockFileName = ".vidscribe.lock"

// RunLock guards an output directory against concurrent runs.
type RunLock struct {
	path string
	lock *flock.Flock
}

// AcquireLock takes the output directory lock without blocking. A directory
// already locked by another run yields an ErrConfiguration error.
func AcquireLock(outputDir string) (*RunLock, error) {
	path := filepath.Join(outputDir, LockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "lock", "acquire", path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "lock", "acquire",
			fmt.Sprintf("another vidscribe run is using %s", outputDir), nil)
	}
	return &RunLock{path: path, lock: lock}, nil
}

// Path returns the lock file location.
func (l *RunLock) Path() string { return l.path }

// Release unlocks the output directory.
func (l *RunLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
