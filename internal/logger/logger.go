// Package logger builds the slog logger used by every component.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Brownie44l1/dept-classifier/internal/config"
	"github.com/natefinch/lumberjack"
)

// New returns a console or rotating-file logger according to the settings.
func New(s *config.LoggerSettings) (*slog.Logger, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch s.LogType {
	case config.LogTypeConsole:
		return NewConsole(os.Stdout, s.LogLevel), nil
	case config.LogTypeFile:
		return NewFile(s.LogLevel, s.FilePath, s.MaxSize, s.MaxBackups, s.MaxAge), nil
	default:
		return nil, fmt.Errorf("unsupported log type: %s", s.LogType)
	}
}

// NewConsole writes human-readable records to w.
func NewConsole(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

// NewFile writes JSON records to a size-rotated file.
func NewFile(level, filePath string, maxSize, maxBackups, maxAge int) *slog.Logger {
	writer := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: parseLevel(level)}))
}

func parseLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarning:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
