package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the service logger. An unknown level falls back to info.
func New(serviceName, level string, pretty bool) zerolog.Logger {
	return NewWithWriter(os.Stdout, serviceName, level, pretty)
}

// NewWithWriter is New with an explicit output
func NewWithWriter(w io.Writer, serviceName, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if pretty {
		out = zerolog.ConsoleWriter{Out: w}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}
