package lockfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func cachePathFor(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "data")
}

func TestReadLockThenReleaseLeavesNoLockFiles(t *testing.T) {
	cachePath := cachePathFor(t)

	release, err := ReadLock(cachePath)
	if err != nil {
		t.Fatalf("ReadLock: %v", err)
	}
	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	remaining, _ := filepath.Glob(filepath.Join(filepath.Dir(cachePath), "*lock*"))
	if len(remaining) != 0 {
		t.Fatalf("expected no lock files left behind, found %v", remaining)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	cachePath := cachePathFor(t)

	release, err := WriteLock(cachePath)
	if err != nil {
		t.Fatalf("WriteLock: %v", err)
	}
	if err := release(); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := release(); err != nil {
		t.Fatalf("second release should be a no-op, got: %v", err)
	}
}

func TestReadThenNestedWriteUpgradeSucceeds(t *testing.T) {
	cachePath := cachePathFor(t)

	releaseRead, err := ReadLock(cachePath)
	if err != nil {
		t.Fatalf("ReadLock: %v", err)
	}
	defer releaseRead()

	// Own held read lock must not block our own write-lock upgrade.
	releaseWrite, err := WriteLock(cachePath)
	if err != nil {
		t.Fatalf("nested WriteLock should skip our own read lock, got: %v", err)
	}
	if err := releaseWrite(); err != nil {
		t.Fatalf("release write: %v", err)
	}
}

func TestStaleLockFromRecycledPIDIsIgnored(t *testing.T) {
	cachePath := cachePathFor(t)
	dir := filepath.Dir(cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	// Plant a write lock naming our own pid but a creation time that
	// cannot possibly match the real one, simulating a lock left behind
	// by a now-dead process whose pid has been recycled.
	stale := Info{PID: os.Getpid(), PIDCreateTime: 1.0}
	body, err := json.Marshal(stale)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	stalePath := filepath.Join(dir, "write_lock_stale_test")
	if err := os.WriteFile(stalePath, body, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	release, err := ReadLock(cachePath)
	if err != nil {
		t.Fatalf("expected stale lock to be ignored, got: %v", err)
	}
	defer release()

	if _, err := os.Stat(stalePath); err != nil {
		t.Fatalf("stale sibling should be left on disk, not deleted: %v", err)
	}
}

func TestFileLockedErrorMessageNamesBlockingPID(t *testing.T) {
	err := &FileLockedError{
		CachePath:   "/cache/x",
		Role:        RoleWrite,
		BlockingPID: 4242,
		LockFile:    "/cache/write_lock_4242_1_1",
	}
	msg := err.Error()
	if !contains(msg, "4242") || !contains(msg, "/cache/write_lock_4242_1_1") {
		t.Fatalf("error message should cite the blocking pid and lock file, got: %s", msg)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
