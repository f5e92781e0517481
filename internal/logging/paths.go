package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.marxist-search/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".marxist-search", "logs")
	}
	return filepath.Join(home, ".marxist-search", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// LogPathIn returns the server log path under the given data directory.
func LogPathIn(dataDir string) string {
	return filepath.Join(dataDir, "logs", "server.log")
}
