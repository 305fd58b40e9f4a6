package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init builds the process logger, installs it as the zerolog global and returns it.
// A nil out writes to stderr.
func Init(level string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		if level != "" {
			fmt.Fprintf(os.Stderr, "Unknown log level '%s', defaulting to 'info'\n", level)
		}
		lvl = zerolog.InfoLevel
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.DateTime,
	}

	log.Logger = zerolog.New(consoleWriter).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return log.Logger
}

// WithComponent tags every entry of the returned logger with component=name.
func WithComponent(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
