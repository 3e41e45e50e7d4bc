// Package observers collects ready-made corestate.Observer implementations:
// logging, metrics, and structural validation.
package observers

import (
	"fmt"
	"sync"

	"github.com/corestate/corestate"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogError logs only errors.
	LogError LogLevel = iota
	// LogWarning logs errors and warnings.
	LogWarning
	// LogInfo logs errors, warnings, and info.
	LogInfo
	// LogDebug logs errors, warnings, info, and debug.
	LogDebug
)

// LoggingObserver logs every statechart lifecycle event through a
// replaceable LogFormatter. It implements corestate.Observer.
type LoggingObserver struct {
	level     LogLevel
	prefix    string
	mutex     sync.RWMutex
	formatter LogFormatter
}

// LogFormatter formats one log line.
type LogFormatter func(level LogLevel, format string, args ...interface{}) string

// DefaultLogFormatter renders "[LEVEL] message".
func DefaultLogFormatter(level LogLevel, format string, args ...interface{}) string {
	levelStr := "INFO"
	switch level {
	case LogError:
		levelStr = "ERROR"
	case LogWarning:
		levelStr = "WARN"
	case LogInfo:
		levelStr = "INFO"
	case LogDebug:
		levelStr = "DEBUG"
	}
	return fmt.Sprintf("[%s] %s", levelStr, fmt.Sprintf(format, args...))
}

// NewLoggingObserver creates a LoggingObserver that only logs at level or
// more severe, prefixing every line with prefix (ignored if empty).
func NewLoggingObserver(level LogLevel, prefix string) *LoggingObserver {
	return &LoggingObserver{
		level:     level,
		prefix:    prefix,
		formatter: DefaultLogFormatter,
	}
}

// SetFormatter replaces the LogFormatter.
func (o *LoggingObserver) SetFormatter(formatter LogFormatter) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.formatter = formatter
}

func (o *LoggingObserver) log(level LogLevel, format string, args ...interface{}) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	if level > o.level {
		return
	}
	prefix := ""
	if o.prefix != "" {
		prefix = fmt.Sprintf("[%s] ", o.prefix)
	}
	message := fmt.Sprintf(format, args...)
	if o.formatter != nil {
		message = o.formatter(level, format, args...)
	}
	fmt.Printf("%s%s\n", prefix, message)
}

func (o *LoggingObserver) OnStateEnter(state string, ctx *corestate.Context) {
	o.log(LogInfo, "entering state: %s", state)
}

func (o *LoggingObserver) OnStateExit(state string, ctx *corestate.Context) {
	o.log(LogInfo, "exiting state: %s", state)
}

func (o *LoggingObserver) OnTransition(from, to string, event corestate.Event, ctx *corestate.Context) {
	o.log(LogInfo, "transition: %s -> %s on event %q", from, to, event.Name)
}

func (o *LoggingObserver) OnEventProcessed(event corestate.Event, ctx *corestate.Context) {
	o.log(LogDebug, "event processed: %s", event.Name)
}

func (o *LoggingObserver) OnEventMissed(event corestate.Event, ctx *corestate.Context) {
	o.log(LogWarning, "event missed: %s", event.Name)
}

func (o *LoggingObserver) OnMachineStarted(ctx *corestate.Context) {
	o.log(LogInfo, "machine started")
}

func (o *LoggingObserver) OnMachineStopped(ctx *corestate.Context) {
	o.log(LogInfo, "machine stopped")
}

func (o *LoggingObserver) OnError(err error, ctx *corestate.Context) {
	o.log(LogError, "error: %v", err)
}
