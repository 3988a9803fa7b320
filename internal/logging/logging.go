// Package logging is the process-wide zerolog facade. The CLI streams
// reply text on stdout, so logs default to stderr and can additionally
// tee into a timestamped file for later inspection.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level aliases the zerolog level type.
type Level = zerolog.Level

// Levels accepted by Config and ParseLevel.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config controls where log events go and which ones survive.
type Config struct {
	// Level is the minimum level that gets written.
	Level Level
	// Output receives the log stream. Nil means os.Stderr.
	Output io.Writer
	// Pretty renders events as colored console text instead of JSON.
	Pretty bool
	// TimeFormat stamps events; empty means RFC3339.
	TimeFormat string
	// LogToFile tees JSON events into a timestamped file under LogDir,
	// for sessions where both stdout and stderr are spoken for.
	LogToFile bool
	// LogDir is where log files land. Empty means /tmp.
	LogDir string
}

// DefaultConfig logs info and above as JSON on stderr.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
		LogDir:     "/tmp",
	}
}

// Logger is the global logger. Init replaces it wholesale.
var Logger zerolog.Logger

// File sink state survives across Init calls so re-initializing can
// close the previous file.
var (
	sinkMu   sync.Mutex
	sinkFile *os.File
	sinkPath string
)

// Init replaces the global logger according to cfg. Re-initializing
// closes the log file the previous configuration opened, if any.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	Close()

	var out io.Writer = cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: cfg.TimeFormat}
	}

	// The tee receives the raw JSON stream even when the console side
	// renders pretty text.
	if cfg.LogToFile {
		if f, path := openSink(cfg.LogDir); f != nil {
			sinkMu.Lock()
			sinkFile, sinkPath = f, path
			sinkMu.Unlock()
			out = io.MultiWriter(out, f)
		}
	}

	Logger = zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// openSink creates a timestamped log file under dir. Failing to open
// one is not fatal; events keep flowing to the main output.
func openSink(dir string) (*os.File, string) {
	if dir == "" {
		dir = "/tmp"
	}
	path := filepath.Join(dir, "chatwire-"+time.Now().Format("20060102-150405")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, ""
	}
	return f, path
}

// Close closes the current log file, if one is open.
func Close() {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if sinkFile != nil {
		sinkFile.Close()
		sinkFile = nil
		sinkPath = ""
	}
}

// GetLogFilePath returns the path of the current log file, or an empty
// string when file logging is disabled.
func GetLogFilePath() string {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	return sinkPath
}

// ParseLevel maps a level name onto a Level, ignoring case and padding.
// Unknown names fall back to InfoLevel rather than erroring, so a typo
// in a config never silences the process.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Debug starts a debug-level event on the global logger.
func Debug() *zerolog.Event { return Logger.Debug() }

// Info starts an info-level event on the global logger.
func Info() *zerolog.Event { return Logger.Info() }

// Warn starts a warn-level event on the global logger.
func Warn() *zerolog.Event { return Logger.Warn() }

// Error starts an error-level event on the global logger.
func Error() *zerolog.Event { return Logger.Error() }

// Fatal starts a fatal-level event; Msg or Send on it exits the process.
func Fatal() *zerolog.Event { return Logger.Fatal() }

// With opens a context for building a child logger with bound fields.
func With() zerolog.Context { return Logger.With() }

// Packages log during their own setup, so a usable logger has to exist
// before main ever touches configuration.
func init() {
	Init(DefaultConfig())
}
