package log

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process-wide log output.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Defaults to info.
	Level string
	// File is an optional path of a rotated JSON log file, written in addition to stderr.
	File string
	// JSON disables the human readable console output on stderr.
	JSON bool
}

var (
	mu     sync.RWMutex
	output = consoleWriter(os.Stderr)
	level  = zerolog.InfoLevel
)

// Setup configures the writer and level used by every logger created afterwards with NewLogger.
func Setup(opts Options) error {
	lvl := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return errors.Wrapf(err, "invalid log level %q", opts.Level)
		}
		lvl = parsed
	}

	console := consoleWriter(os.Stderr)
	if opts.JSON {
		console = os.Stderr
	}

	out := console
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return errors.Wrap(err, "failed to create log directory")
		}

		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, rotator)
	}

	mu.Lock()
	defer mu.Unlock()
	output = out
	level = lvl

	return nil
}

// consoleWriter renders human readable lines to f, colored only when f is a terminal.
func consoleWriter(f *os.File) io.Writer {
	return newConsoleWriter(f, isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func newConsoleWriter(out io.Writer, color bool) io.Writer {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: !color}
}

// NewLogger returns a logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
