package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger defines a standard interface for logging.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// ZerologLogger is a wrapper around a zerolog logger.
type ZerologLogger struct {
	l zerolog.Logger
}

// NewLogger creates a new logger instance based on the specified level.
func NewLogger(level string) *ZerologLogger {
	return NewWriterLogger(os.Stdout, level)
}

// NewWriterLogger creates a logger writing to the given writer.
func NewWriterLogger(w io.Writer, level string) *ZerologLogger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	zl := zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", "playforge").
		Logger()
	return &ZerologLogger{l: zl}
}

// Component returns a child logger annotated with the given component name.
func (l *ZerologLogger) Component(name string) *ZerologLogger {
	return &ZerologLogger{l: l.l.With().Str("component", name).Logger()}
}

// Debugf logs a message at the debug level.
func (l *ZerologLogger) Debugf(format string, v ...interface{}) {
	l.l.Debug().Msgf(format, v...)
}

// Infof logs a message at the info level.
func (l *ZerologLogger) Infof(format string, v ...interface{}) {
	l.l.Info().Msgf(format, v...)
}

// Warnf logs a message at the warn level.
func (l *ZerologLogger) Warnf(format string, v ...interface{}) {
	l.l.Warn().Msgf(format, v...)
}

// Errorf logs a message at the error level.
func (l *ZerologLogger) Errorf(format string, v ...interface{}) {
	l.l.Error().Msgf(format, v...)
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &ZerologLogger{l: zerolog.Nop()}
}
