// Package appdir provides platform-native directory management for the aula
// CLI. The data directory holds log files and the last gateway session.
package appdir

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// DirEnv is the environment variable to override the data directory.
	DirEnv = "AULA_DIR"

	// SessionFileName is the name of the saved gateway session file.
	SessionFileName = "session.json"

	// LogsDirName is the name of the log subdirectory.
	LogsDirName = "logs"

	// LogFileName is the name of the default log file.
	LogFileName = "aula.log"
)

var (
	// cachedDir stores the resolved directory to avoid repeated lookups.
	cachedDir string
	mu        sync.RWMutex
)

// Dir returns the data directory path.
// The directory is determined in the following order:
//  1. AULA_DIR environment variable (if set)
//  2. Platform-specific default:
//     - macOS: ~/Library/Application Support/Aula
//     - Linux: $XDG_DATA_HOME/aula or ~/.local/share/aula
//     - Windows: %APPDATA%\Aula
//
// Dir does not create the directory; use EnsureDir for that.
func Dir() (string, error) {
	mu.RLock()
	if cachedDir != "" {
		dir := cachedDir
		mu.RUnlock()
		return dir, nil
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if cachedDir != "" {
		return cachedDir, nil
	}

	dir, err := resolveDir()
	if err != nil {
		return "", err
	}
	cachedDir = dir
	return dir, nil
}

func resolveDir() (string, error) {
	if envDir := os.Getenv(DirEnv); envDir != "" {
		return envDir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, "Library", "Application Support", "Aula"), nil

	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Aula"), nil

	default:
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dataDir = filepath.Join(homeDir, ".local", "share")
		}
		return filepath.Join(dataDir, "aula"), nil
	}
}

// EnsureDir creates the data directory and its logs subdirectory.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}

	logsDir := filepath.Join(dir, LogsDirName)
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", logsDir, err)
	}
	return nil
}

// SessionPath returns the full path to session.json.
func SessionPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SessionFileName), nil
}

// LogPath returns the full path to the default log file.
func LogPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, LogsDirName, LogFileName), nil
}

// ResetCache clears the cached directory path. Used by tests.
func ResetCache() {
	mu.Lock()
	defer mu.Unlock()
	cachedDir = ""
}
