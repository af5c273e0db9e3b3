// Package logging wraps zerolog behind a small structured logger used
// across the decision core. Fields are passed as alternating key/value
// pairs.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// Logger is a component-scoped structured logger.
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger from configuration.
func New(cfg Config) (Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return Logger{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var output io.Writer
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return Logger{}, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return Logger{zl: zl}, nil
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return Logger{zl: zerolog.Nop()}
}

// Component returns a logger tagged with a component name.
func (l Logger) Component(name string) Logger {
	return Logger{zl: l.zl.With().Str("component", name).Logger()}
}

// With returns a logger with an extra permanent field.
func (l Logger) With(key string, value any) Logger {
	return Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l Logger) Debug(msg string, kv ...any) { emit(l.zl.Debug(), msg, kv) }
func (l Logger) Info(msg string, kv ...any)  { emit(l.zl.Info(), msg, kv) }
func (l Logger) Warn(msg string, kv ...any)  { emit(l.zl.Warn(), msg, kv) }
func (l Logger) Error(msg string, kv ...any) { emit(l.zl.Error(), msg, kv) }

func emit(event *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if err, isErr := kv[i+1].(error); isErr {
			event = event.AnErr(key, err)
			continue
		}
		event = event.Interface(key, kv[i+1])
	}
	event.Msg(msg)
}
