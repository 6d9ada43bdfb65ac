package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"book-library/internal/logging"
)

// RetryConfig bounds how long an operation keeps retrying stale NFS
// handles.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver labels observations; nil uses the process default.
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig allows three retries backing off from 50ms to 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c *RetryConfig) resolveVolume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	return defaultResolver.Load().Resolve(path)
}

func (c *RetryConfig) nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}

func isStale(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

// withRetry calls fn until it succeeds, fails with anything but ESTALE,
// or MaxRetries extra attempts have been made.
func withRetry[T any](name, path string, config RetryConfig, fn func() (T, error)) (T, error) {
	obs := currentObserver()
	volume := config.resolveVolume(path)
	start := time.Now()

	notify := func(e RetryEvent) {
		if obs != nil {
			obs.ObserveRetry(e, name, volume)
		}
	}
	done := func(result T, err error) (T, error) {
		if obs != nil {
			obs.ObserveOperation(Operation{Name: name, Volume: volume, Duration: time.Since(start), Err: err})
		}
		return result, err
	}

	backoff := config.InitialBackoff
	for attempt := 0; ; attempt++ {
		result, err := fn()
		switch {
		case err == nil:
			if attempt > 0 {
				logging.Info("%s of %s recovered after %d retries", name, path, attempt)
				notify(RetryRecovered)
			}
			return done(result, nil)
		case !isStale(err):
			return done(result, err)
		}

		notify(RetryStale)
		if attempt >= config.MaxRetries {
			logging.Warn("%s of %s still stale after %d retries: %v", name, path, config.MaxRetries, err)
			notify(RetryExhausted)
			var zero T
			return done(zero, err)
		}

		notify(RetryScheduled)
		logging.Debug("Stale file handle on %s of %s, retry %d/%d in %v",
			name, path, attempt+1, config.MaxRetries, backoff)
		time.Sleep(backoff)
		backoff = config.nextBackoff(backoff)
	}
}

// StatWithRetry is os.Stat with stale handle retries.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("stat", path, config, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// OpenWithRetry is os.Open with stale handle retries.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return withRetry("open", path, config, func() (*os.File, error) {
		return os.Open(path)
	})
}

// ReadDirWithRetry is os.ReadDir with stale handle retries. Entries are
// sorted by name.
func ReadDirWithRetry(path string, config RetryConfig) ([]os.DirEntry, error) {
	return withRetry("readdir", path, config, func() ([]os.DirEntry, error) {
		return os.ReadDir(path)
	})
}
