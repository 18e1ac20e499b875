package filedb

import (
	"errors"
	"fmt"

	"github.com/cuemby/filedb/pkg/lockfile"
)

// NotFound is returned when a key has no storage-path recorded in the
// Index, synthesized by the façade rather than the Index itself.
var NotFound = errors.New("filedb: key not found")

// AlreadyExists is returned by a write with overwrite disabled against
// a key that already resolves to a storage-path.
var AlreadyExists = errors.New("filedb: key already exists")

// IntegrityError indicates a cache download completed but the
// downloaded bytes still don't match the storage's checksum. This
// should not occur absent bugs or corruption and is treated as fatal
// by callers.
var IntegrityError = errors.New("filedb: cache integrity check failed after download")

// InvalidArgument is returned for a caller error such as an invalid
// key (use of a reserved field name) or an unsupported move/copy
// target.
var InvalidArgument = errors.New("filedb: invalid argument")

// IsFileLocked reports whether err is (or wraps) a lock conflict with
// a live holder, and if so returns the blocking pid.
func IsFileLocked(err error) (pid int, ok bool) {
	var locked *lockfile.FileLockedError
	if errors.As(err, &locked) {
		return locked.BlockingPID, true
	}
	return 0, false
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, NotFound)...)
}
