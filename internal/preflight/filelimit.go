package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the lowest open file limit that passes. Bleve keeps
// a file per segment and every bulk client holds a connection.
const MinFileDescriptors = 1024

// CheckFileDescriptors checks if the file descriptor limit is sufficient.
// A low limit only warns.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: false,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusWarn
		result.Details = "Run 'ulimit -n 10240' to increase the limit"
		return result
	}
	result.Status = StatusPass
	return result
}
