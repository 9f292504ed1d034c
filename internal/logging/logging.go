package logging

import (
	"io"
	"strings"
	"sync"

	"github.com/pion/logging"
)

var (
	loggerFactory = logging.NewDefaultLoggerFactory()

	mu      sync.Mutex
	loggers []scoped
)

type scoped struct {
	scope  string
	logger logging.LeveledLogger
}

type levelSetter interface {
	SetLevel(logging.LogLevel)
}

type outputSetter interface {
	WithOutput(io.Writer) *logging.DefaultLeveledLogger
}

func NewLogger(scope string) logging.LeveledLogger {
	mu.Lock()
	defer mu.Unlock()

	l := loggerFactory.NewLogger(scope)
	loggers = append(loggers, scoped{scope: scope, logger: l})
	return l
}

// SetLevel changes the level of every logger handed out so far and of the ones
// created later. Scopes named in a PION_LOG_<LEVEL> variable keep the level
// given there. Unknown names leave the level untouched and return false.
func SetLevel(name string) bool {
	level, ok := ParseLevel(name)
	if !ok {
		return false
	}

	mu.Lock()
	defer mu.Unlock()

	loggerFactory.DefaultLogLevel = level
	for _, l := range loggers {
		if _, pinned := loggerFactory.ScopeLevels[strings.ToLower(l.scope)]; pinned {
			continue
		}
		if s, ok := l.logger.(levelSetter); ok {
			s.SetLevel(level)
		}
	}
	return true
}

// ParseLevel maps a level name as written in config files to a pion log level.
func ParseLevel(name string) (logging.LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "disable", "disabled", "off":
		return logging.LogLevelDisabled, true
	case "error":
		return logging.LogLevelError, true
	case "warn", "warning":
		return logging.LogLevelWarn, true
	case "info":
		return logging.LogLevelInfo, true
	case "debug":
		return logging.LogLevelDebug, true
	case "trace":
		return logging.LogLevelTrace, true
	}
	return logging.LogLevelDisabled, false
}

// SetOutput redirects every logger, existing and future, to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	loggerFactory.Writer = w
	for _, l := range loggers {
		if s, ok := l.logger.(outputSetter); ok {
			s.WithOutput(w)
		}
	}
}
