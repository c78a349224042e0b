//go:build !windows

package storage

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileLock is the cross-process advisory lock for write-heavy scans.
// Read operations never acquire it.
type FileLock struct {
	path string
	file *os.File
}

// AcquireLock takes the advisory lock at path (conventionally drift.lock
// next to drift.db). The lock file records PID and timestamp so stale
// holders can be diagnosed and force-unlocked.
func AcquireLock(path string) (*FileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if content, readErr := os.ReadFile(path); readErr == nil && len(content) > 0 {
			holder := strings.TrimSpace(string(content))
			return nil, fmt.Errorf("project is locked by another scan (%s)", holder)
		}
		return nil, fmt.Errorf("project is locked by another scan")
	}

	if err := file.Truncate(0); err != nil {
		releaseFd(file)
		return nil, fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		releaseFd(file)
		return nil, fmt.Errorf("seeking lock file: %w", err)
	}
	stamp := strconv.Itoa(os.Getpid()) + " " + strconv.FormatInt(time.Now().Unix(), 10)
	if _, err := file.WriteString(stamp); err != nil {
		releaseFd(file)
		return nil, fmt.Errorf("writing lock stamp: %w", err)
	}

	return &FileLock{path: path, file: file}, nil
}

// ForceUnlock removes a stale lock file. Operator action only.
func ForceUnlock(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// HolderInfo reports the PID and acquisition time recorded in the lock
// file, when one exists.
func HolderInfo(path string) (pid int, at time.Time, ok bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, time.Time{}, false
	}
	parts := strings.Fields(string(content))
	if len(parts) < 2 {
		return 0, time.Time{}, false
	}
	pid, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, time.Time{}, false
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	return pid, time.Unix(unix, 0), true
}

// Release releases the lock and removes the lock file.
func (l *FileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	releaseFd(l.file)
	_ = os.Remove(l.path)
	l.file = nil
	return nil
}

func releaseFd(file *os.File) {
	_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	_ = file.Close()
}
