// Package logging wraps zerolog to provide the agent's structured,
// leveled, component-scoped logging, following the same Init/WithX shape
// used throughout this codebase's sibling daemons.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is one of the five levels the CLI's -l flag accepts.
type Level string

const (
	DebugLevel    Level = "debug"
	InfoLevel     Level = "info"
	WarnLevel     Level = "warn"
	ErrorLevel    Level = "error"
	CriticalLevel Level = "critical"
)

// ParseLevel validates a CLI-provided level string.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel, CriticalLevel:
		return Level(s), nil
	default:
		return "", fmt.Errorf("bad log level %q", s)
	}
}

// Config controls Init.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Logger is the process-wide logger instance, set by Init.
var Logger zerolog.Logger

// Init configures the global Logger. critical maps onto zerolog's Fatal
// threshold for filtering purposes, but Critical() below never calls
// os.Exit the way zerolog's own Fatal() does.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	case CriticalLevel:
		level = zerolog.FatalLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// GetLevel implements get_log_level, reporting the process's current
// global log threshold.
func GetLevel() Level {
	switch zerolog.GlobalLevel() {
	case zerolog.DebugLevel:
		return DebugLevel
	case zerolog.WarnLevel:
		return WarnLevel
	case zerolog.ErrorLevel:
		return ErrorLevel
	case zerolog.FatalLevel:
		return CriticalLevel
	default:
		return InfoLevel
	}
}

// SetLevel implements set_log_level, changing the process's global log
// threshold at runtime without restarting the agent.
func SetLevel(level Level) error {
	switch level {
	case DebugLevel:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case InfoLevel:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case WarnLevel:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case ErrorLevel:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case CriticalLevel:
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	default:
		return fmt.Errorf("bad log level %q", level)
	}
	return nil
}

// WithComponent scopes a child logger to a named subsystem (e.g. "chp",
// "ltc", "controller").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithTaskID scopes a child logger to a single LTC/CHP/CFT task id.
func WithTaskID(taskID int64) zerolog.Logger {
	return Logger.With().Int64("task_id", taskID).Logger()
}

func Debug(msg string) { Logger.Debug().Msg(msg) }
func Info(msg string)  { Logger.Info().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

func Errorf(err error, format string, args ...any) {
	Logger.Error().Err(err).Msg(fmt.Sprintf(format, args...))
}

// Critical logs at the critical threshold without terminating the
// process — unlike zerolog's own Fatal(), which calls os.Exit(1).
func Critical(msg string) {
	Logger.WithLevel(zerolog.FatalLevel).Msg(msg)
}
