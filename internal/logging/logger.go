// Package logging provides leveled, structured logging for the model container.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ANSI foreground colors used for text-mode output when NoColor is false.
const (
	ansiReset  = "\033[0m"
	ansiBlue   = "\033[34m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
)

func (l LogLevel) color() string {
	switch l {
	case LevelDebug:
		return ansiBlue
	case LevelInfo:
		return ansiGreen
	case LevelWarn:
		return ansiYellow
	case LevelError:
		return ansiRed
	default:
		return ansiReset
	}
}

// Config holds logging configuration.
type Config struct {
	Level LogLevel
	// Format is "text" (default) or "json".
	Format string
	Output io.Writer
	// Sync is not read by the logger, which never buffers; it only records
	// the caller's choice for callers wiring a bufio.Writer as Output.
	Sync bool
	// NoColor disables ANSI coloring of the level prefix in text mode.
	NoColor bool
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// Logger is a leveled logger that can carry structured context fields
// (camera_id, model_id, frame_id, ...) inherited by child loggers created
// with With*.
type Logger struct {
	mu      sync.Mutex
	logger  *log.Logger
	level   LogLevel
	format  string
	noColor bool
	fields  []kv
}

type kv struct {
	key string
	val any
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

// NewLogger creates a new logger from config. A nil config uses DefaultConfig.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	format := config.Format
	if format == "" {
		format = "text"
	}
	return &Logger{
		logger:  log.New(output, "", log.LstdFlags),
		level:   config.Level,
		format:  format,
		noColor: config.NoColor,
	}
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	defaultMu.RLock()
	if defaultLogger != nil {
		defer defaultMu.RUnlock()
		return defaultLogger
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

func (l *Logger) withField(key string, val any) *Logger {
	fields := make([]kv, len(l.fields), len(l.fields)+1)
	copy(fields, l.fields)
	fields = append(fields, kv{key, val})
	return &Logger{
		logger:  l.logger,
		level:   l.level,
		format:  l.format,
		noColor: l.noColor,
		fields:  fields,
	}
}

// WithCamera returns a child logger annotated with the camera identifier.
func (l *Logger) WithCamera(cameraID string) *Logger {
	return l.withField("camera_id", cameraID)
}

// WithModel returns a child logger annotated with the model identifier.
func (l *Logger) WithModel(modelID string) *Logger {
	return l.withField("model_id", modelID)
}

// WithRequest returns a child logger annotated with the correlating frame ID
// and the operation name (e.g. "infer", "decode").
func (l *Logger) WithRequest(frameID any, op string) *Logger {
	return l.withField("frame_id", frameID).withField("op", op)
}

// WithError returns a child logger annotated with an error value.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.withField("error", err.Error())
}

func formatArgs(fields []kv, args []any) string {
	if len(fields) == 0 && len(args) == 0 {
		return ""
	}
	var result string
	for _, f := range fields {
		if result != "" {
			result += " "
		}
		result += fmt.Sprintf("%s=%v", f.key, f.val)
	}
	for i := 0; i+1 < len(args); i += 2 {
		if result != "" {
			result += " "
		}
		result += fmt.Sprintf("%v=%v", args[i], args[i+1])
	}
	if result != "" {
		return " " + result
	}
	return ""
}

func (l *Logger) jsonLine(level LogLevel, msg string, args []any) string {
	entry := make(map[string]any, len(l.fields)+len(args)/2+2)
	entry["level"] = level.String()
	entry["msg"] = msg
	for _, f := range l.fields {
		entry[f.key] = f.val
	}
	for i := 0; i+1 < len(args); i += 2 {
		entry[fmt.Sprintf("%v", args[i])] = args[i+1]
	}
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(entry)
	if err != nil {
		return msg
	}
	return string(b)
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		l.logger.Print(l.jsonLine(level, msg, args))
		return
	}

	prefix := "[" + level.String() + "]"
	if !l.noColor {
		prefix = level.color() + prefix + ansiReset
	}
	l.logger.Printf("%s %s%s", prefix, msg, formatArgs(l.fields, args))
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// Debugf and friends give printf-style logging for callers migrating from
// the stdlib log package.
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, fmt.Sprintf(format, args...)) }

// Printf logs a printf-style message at info level, for callers that only need a single method.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }

// Global convenience functions operating on the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
