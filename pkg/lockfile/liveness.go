package lockfile

import (
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// createTimeEpsilon absorbs the millisecond-to-second rounding that
// happens when the OS reports process creation time in milliseconds
// and we store it as floating seconds.
const createTimeEpsilon = 0.001

// selfInfo reports the current process's identity for a lock file: its
// pid and the OS-reported creation time of that pid. Creation time,
// not the lock file's own contents, is what survives a pid being
// recycled by a later, unrelated process.
func selfInfo() (Info, error) {
	pid := os.Getpid()
	ct, err := processCreateTime(pid)
	if err != nil {
		return Info{}, err
	}
	return Info{PID: pid, PIDCreateTime: ct}, nil
}

// processCreateTime returns pid's creation time in floating seconds
// since the epoch, sourced from the OS via gopsutil rather than trusted
// from any lock file.
func processCreateTime(pid int) (float64, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, err
	}
	millis, err := proc.CreateTime()
	if err != nil {
		return 0, err
	}
	return float64(millis) / 1000.0, nil
}

// isAlive reports whether pid both exists and is still the same
// process that originally created the lock file (its creation time
// matches), which is the only portable way to detect a recycled pid.
func isAlive(pid int, wantCreateTime float64) bool {
	exists, err := process.PidExists(int32(pid))
	if err != nil || !exists {
		return false
	}

	gotCreateTime, err := processCreateTime(pid)
	if err != nil {
		return false
	}

	diff := gotCreateTime - wantCreateTime
	if diff < 0 {
		diff = -diff
	}
	return diff <= createTimeEpsilon
}
