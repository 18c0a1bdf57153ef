package log

import (
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	mu         sync.Mutex
	logger     zerolog.Logger
	loggerOnce sync.Once
)

// initLogger initializes the global logger to write JSON lines to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
		zerolog.ErrorStackMarshaler = zpkgerrors.MarshalStack
		logger = zerolog.New(os.Stderr).With().
			Str("service", "luztedi").
			Timestamp().
			Logger().
			Level(zerolog.InfoLevel)
	})
}

// SetLevel changes the minimum level that is written.
func SetLevel(l Level) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(toZerolog(l))
}

// ParseLevel maps a config/flag value onto a Level. Unknown values yield INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetOutput redirects log output; tests use it to capture lines.
func SetOutput(w io.Writer) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Output(w)
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, nil, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, nil, kv...)
}

func Error(msg string, err error, kv ...any) {
	logWithLevel(LevelError, msg, err, kv...)
}

func logWithLevel(level Level, msg string, err error, kv ...any) {
	initLogger()
	mu.Lock()
	l := logger
	mu.Unlock()

	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.Debug()
	case LevelError:
		ev = l.Error()
		if err != nil {
			// Only errors wrapped by pkg/errors carry a stack.
			type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
			if _, ok := err.(stackTracer); ok {
				ev = ev.Stack()
			}
			ev = ev.Err(err)
		}
	default:
		ev = l.Info()
	}
	if ev == nil {
		return
	}

	// Expect kv as pairs: key, value, key, value, ...
	// If odd number of args, last one is ignored.
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
