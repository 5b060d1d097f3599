package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// MinDiskSpaceBytes is the free space each volume holding claimsync data
// must keep (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// Volume names a directory whose filesystem needs free space.
type Volume struct {
	Label string
	Path  string
}

// CheckDiskSpace checks free space on every volume. A path that does not
// exist yet is measured at its closest existing parent. Volumes sharing a
// filesystem are reported once, under the first label.
func (*Checker) CheckDiskSpace(volumes ...Volume) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
		Status:   StatusPass,
	}

	var (
		parts []string
		short []string
		seen  = make(map[syscall.Fsid]string)
	)
	for _, v := range volumes {
		if v.Path == "" {
			continue
		}
		var stat syscall.Statfs_t
		if err := syscall.Statfs(existingAncestor(v.Path), &stat); err != nil {
			result.Status = StatusFail
			parts = append(parts, fmt.Sprintf("%s: cannot stat %s: %v", v.Label, v.Path, err))
			continue
		}
		if _, ok := seen[stat.Fsid]; ok {
			continue
		}
		seen[stat.Fsid] = v.Label

		available := uint64(stat.Bavail) * uint64(stat.Bsize)
		parts = append(parts, fmt.Sprintf("%s: %s free", v.Label, formatBytes(available)))
		if available < MinDiskSpaceBytes {
			result.Status = StatusFail
			short = append(short, v.Path)
		}
	}

	if len(parts) == 0 {
		result.Status = StatusWarn
		result.Message = "no data paths to check"
		return result
	}
	result.Message = strings.Join(parts, ", ") + " (minimum: 100 MB)"
	if len(short) > 0 {
		result.Details = "Free space under " + strings.Join(short, ", ")
	}
	return result
}

// existingAncestor returns path or its closest parent that exists.
func existingAncestor(path string) string {
	for {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes uint64) string {
	units := []string{"KB", "MB", "GB", "TB"}
	if bytes < 1024 {
		return fmt.Sprintf("%d bytes", bytes)
	}
	value := float64(bytes) / 1024
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", value, units[unit])
}
