package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu sync.RWMutex

	// Logger is the process-wide logger. Components derive from it.
	Logger zerolog.Logger
)

func init() {
	// Info level JSON on stderr until Init runs
	setLogger(zerolog.New(os.Stderr))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// ParseLevel maps a config level name to a zerolog level. Unknown names fall
// back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init configures the global level and output. With pretty set, output is a
// colored console writer; otherwise one JSON object per line.
//
// Logs go to stderr so stdout stays free for tools that print decoded frames.
func Init(level string, pretty bool) {
	InitWriter(os.Stderr, level, pretty)
}

// InitWriter is Init with an explicit destination.
func InitWriter(out io.Writer, level string, pretty bool) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	if pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	setLogger(zerolog.New(out))
}

func setLogger(base zerolog.Logger) {
	l := base.With().Timestamp().Logger()

	mu.Lock()
	Logger = l
	mu.Unlock()

	log.Logger = l
}

// Get returns the global logger
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := Logger
	return &l
}

// WithComponent returns a logger with a component field set
func WithComponent(component string) *zerolog.Logger {
	l := Get().With().Str("component", component).Logger()
	return &l
}

// WithSession tags a component logger with a pipeline session id.
func WithSession(component, session string) *zerolog.Logger {
	l := WithComponent(component).With().Str("session", session).Logger()
	return &l
}
