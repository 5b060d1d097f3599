package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.claimsync/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".claimsync", "logs")
	}
	return filepath.Join(home, ".claimsync", "logs")
}

// DefaultLogPath returns the default sync log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "sync.log")
}
