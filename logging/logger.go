// Package logging provides pre-configured logrus loggers for bmad-dash components.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmad-tools/dash/pkg/paths"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv("DASH_LOG_LEVEL"); env != "" {
		levelStr = env
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("DASH_LOG_CALLER") == "true" {
		logger.SetReportCaller(true)
	}

	switch os.Getenv("DASH_LOG_FORMAT") {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&TextFormatter{})
	}

	writers := []io.Writer{os.Stderr}

	// Default file sink under the user data dir, one file per component per day.
	logDir := paths.LogDir()
	if err := os.MkdirAll(logDir, 0755); err == nil {
		dateStr := time.Now().Format("2006-01-02")
		logFilePath := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", component, dateStr))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			writers = append(writers, file)
		}
	}

	logger.SetOutput(io.MultiWriter(writers...))

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// SetLevel overrides the level of an already-created component logger.
func SetLevel(component string, level logrus.Level) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	if entry, ok := loggers[component]; ok {
		entry.Logger.SetLevel(level)
	}
}
