package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/yourusername/locked-folder-removal/internal/logger"
)

// sessionLockWait is how long a second run for the same folder waits before
// giving up.
var sessionLockWait = 2 * time.Second

// lockDir is replaced in tests.
var lockDir = sessionLockDir

// acquireSessionLock takes the per-folder lock so two sessions never stop
// and restart the same owners concurrently. The returned func releases it.
func acquireSessionLock(target string) (func(), error) {
	dir, err := lockDir()
	if err != nil {
		return func() {}, err
	}
	lockPath := sessionLockPath(dir, target)
	l := flock.New(lockPath)

	deadline := time.Now().Add(sessionLockWait)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return func() {}, fmt.Errorf("cannot acquire session lock: %w", err)
		}
		if locked {
			logger.Debug("Session lock: %s", lockPath)
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return func() {}, fmt.Errorf("another session is already removing %s (lock: %s)", target, lockPath)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// sessionLockPath names the lock after the folder. Windows paths are case
// insensitive, so the key is folded.
func sessionLockPath(dir, target string) string {
	key := strings.ToLower(filepath.Clean(target))
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(key)))
	return filepath.Join(dir, id.String()+".lock")
}

// sessionLockDir determines the per-user directory holding session locks.
func sessionLockDir() (string, error) {
	if cacheDir, err := os.UserCacheDir(); err == nil && cacheDir != "" {
		dir := filepath.Join(cacheDir, "locked-folder-removal")
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return dir, nil
		}
	}
	dir := filepath.Join(os.TempDir(), "locked-folder-removal")
	if err := os.MkdirAll(dir, 0o755); err == nil {
		return dir, nil
	}
	return "", fmt.Errorf("cannot determine writable lock directory")
}

// holdInterrupts keeps Ctrl+C from killing the process mid-session, when
// services may be stopped and not yet restarted. The returned func restores
// default signal handling.
func holdInterrupts() func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sigChan:
				logger.Warning("Interrupt received; finishing the session so stopped services can be restarted")
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}
