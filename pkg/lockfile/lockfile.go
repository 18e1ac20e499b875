// Package lockfile implements FileDB's advisory, file-system-mediated
// reader/writer lock: the sole inter-process coordination primitive
// protecting a cache entry. There is no kernel flock involved, because
// the lock must work across any POSIX-ish filesystem shared by
// processes that may be on different hosts.
package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cuemby/filedb/pkg/log"
	"github.com/cuemby/filedb/pkg/metrics"
)

// Role identifies the kind of lock a lock file represents. The role is
// encoded directly in the filename so a sibling's purpose can be told
// apart without opening it.
type Role string

const (
	RoleRead  Role = "read_lock"
	RoleWrite Role = "write_lock"
)

// Info is the JSON body of a lock file: exactly the two fields needed
// to run the liveness probe against the holding process.
type Info struct {
	PID           int     `json:"pid"`
	PIDCreateTime float64 `json:"pid_create_time"`
}

// FileLockedError is returned when acquisition finds a live conflicting
// holder. It carries enough information for a human to intervene
// manually if they believe the lock is actually stale.
type FileLockedError struct {
	CachePath   string
	Role        Role
	BlockingPID int
	LockFile    string
}

func (e *FileLockedError) Error() string {
	return fmt.Sprintf(
		"cache file %s is %s-locked by process %d; if you believe that lock is stale, delete %s manually",
		e.CachePath, e.Role, e.BlockingPID, e.LockFile,
	)
}

var seq uint64

// Release removes the lock file unconditionally. It is safe to call
// from a defer on every exit path, including panics, since the lock is
// nothing more than a file on disk.
type Release func() error

// ReadLock acquires a read lock on cachePath's directory. Multiple
// readers may hold a read lock concurrently; a read lock only
// conflicts with a live writer.
func ReadLock(cachePath string) (Release, error) {
	return acquire(cachePath, RoleRead)
}

// WriteLock acquires a write lock on cachePath's directory. A write
// lock excludes all other writers and all readers.
//
// Acquiring a write lock while already holding a read lock in the same
// process is the supported upgrade path: the own-lock skip rule below
// means the held read lock never conflicts with the new write lock.
func WriteLock(cachePath string) (Release, error) {
	return acquire(cachePath, RoleWrite)
}

func acquire(cachePath string, role Role) (Release, error) {
	start := time.Now()
	dir := filepath.Dir(cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("lockfile: create lock directory %s: %w", dir, err)
	}

	self, err := selfInfo()
	if err != nil {
		return nil, fmt.Errorf("lockfile: determine own process identity: %w", err)
	}

	lockPath := filepath.Join(dir, lockFilename(role, self))
	body, err := json.Marshal(self)
	if err != nil {
		return nil, fmt.Errorf("lockfile: encode lock body: %w", err)
	}
	if err := os.WriteFile(lockPath, body, 0o644); err != nil {
		return nil, fmt.Errorf("lockfile: write lock file %s: %w", lockPath, err)
	}

	siblingGlobs := []string{filepath.Join(dir, string(RoleWrite)+"_*")}
	if role == RoleWrite {
		siblingGlobs = append(siblingGlobs, filepath.Join(dir, string(RoleRead)+"_*"))
	}

	for _, pattern := range siblingGlobs {
		siblings, err := filepath.Glob(pattern)
		if err != nil {
			_ = os.Remove(lockPath)
			return nil, fmt.Errorf("lockfile: enumerate siblings %s: %w", pattern, err)
		}

		for _, sibling := range siblings {
			if sibling == lockPath {
				continue
			}

			info, err := readInfo(sibling)
			if err != nil {
				// Sibling vanished or is mid-write by its owner; treat as
				// not-a-conflict rather than failing acquisition outright.
				continue
			}

			if info.PID == self.PID && info.PIDCreateTime == self.PIDCreateTime {
				continue // own lock, e.g. a held read lock during a write upgrade
			}

			if isAlive(info.PID, info.PIDCreateTime) {
				_ = os.Remove(lockPath)
				metrics.LockConflictsTotal.WithLabelValues(string(role)).Inc()
				return nil, &FileLockedError{
					CachePath:   cachePath,
					Role:        role,
					BlockingPID: info.PID,
					LockFile:    sibling,
				}
			}

			metrics.StaleLocksReclaimedTotal.WithLabelValues(string(role)).Inc()
			log.WithComponent("lockfile").Debug().
				Str("cache_path", cachePath).
				Str("stale_lock", sibling).
				Int("stale_pid", info.PID).
				Msg("ignoring stale lock from a dead or recycled process")
		}
	}

	metrics.LockWaitDuration.WithLabelValues(string(role)).Observe(time.Since(start).Seconds())

	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("lockfile: release lock file %s: %w", lockPath, err)
		}
		return nil
	}, nil
}

func lockFilename(role Role, self Info) string {
	n := atomic.AddUint64(&seq, 1)
	return fmt.Sprintf("%s_%d_%s_%d_%d", role, self.PID, formatCreateTime(self.PIDCreateTime), time.Now().UnixNano(), n)
}

func formatCreateTime(ct float64) string {
	return fmt.Sprintf("%.6f", ct)
}

func readInfo(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("lockfile: decode lock file %s: %w", path, err)
	}
	return info, nil
}
