// Package paths provides XDG-compliant path resolution for bmad-dash.
//
// Resolution order:
// 1. DASH_HOME (portable root) → $DASH_HOME/{config,data,state}
// 2. XDG env vars → $XDG_*_HOME/bmad-dash
// 3. Platform defaults → ~/.config/bmad-dash, ~/.local/share/bmad-dash
package paths

import (
	"os"
	"path/filepath"
)

const appDir = "bmad-dash"

func getConfigHome() string {
	if dashHome := os.Getenv("DASH_HOME"); dashHome != "" {
		return filepath.Join(dashHome, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

func getDataHome() string {
	if dashHome := os.Getenv("DASH_HOME"); dashHome != "" {
		return filepath.Join(dashHome, "data")
	}
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return xdgDataHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "share")
	}
	return ""
}

func getStateHome() string {
	if dashHome := os.Getenv("DASH_HOME"); dashHome != "" {
		return filepath.Join(dashHome, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the directory holding dash.yml.
func ConfigDir() string {
	return filepath.Join(getConfigHome(), appDir)
}

// DataDir returns the user-writable data directory (recent projects, logs).
func DataDir() string {
	return filepath.Join(getDataHome(), appDir)
}

// StateDir returns the runtime state directory (pidfile).
func StateDir() string {
	return filepath.Join(getStateHome(), appDir)
}

// RecentProjectsFile returns the path of the persisted recent-projects list.
func RecentProjectsFile() string {
	return filepath.Join(DataDir(), "recent-projects.json")
}

// PidFilePath returns the daemon pidfile location.
func PidFilePath() string {
	return filepath.Join(StateDir(), "dash.pid")
}

// LogDir returns the log file directory.
func LogDir() string {
	return filepath.Join(DataDir(), "logs")
}
