// Package logsetup wires go-ethereum's slog-backed log package into the
// bridge's two binaries: colorized terminal-format output on a TTY, the same
// format without color otherwise, optionally duplicated to a rotated file.
package logsetup

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup.
type Options struct {
	// Level is an RUST_LOG-style level name: trace, debug, info, warn,
	// error, crit. Empty defaults to info.
	Level string
	// LogFile, if non-empty, additionally writes uncolored terminal-format output there,
	// rotated via lumberjack once it passes 100MB.
	LogFile string
}

// Setup installs the configured handler as go-ethereum log's default
// logger, used throughout the relay engine via the package-level
// log.Info/Warn/Error/Crit helpers.
func Setup(opts Options) error {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	if useColor {
		out = colorable.NewColorableStderr()
	}

	if opts.LogFile != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename: opts.LogFile,
			MaxSize:  100, // MB
			MaxAge:   28,  // days
			Compress: true,
		})
		// Color escapes would otherwise pollute the rotated file; once a
		// file sink is attached, fall back to plain text for both sinks.
		useColor = false
	}

	glog := log.NewGlogHandler(log.NewTerminalHandler(out, useColor))
	glog.Verbosity(level)
	log.SetDefault(log.NewLogger(glog))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "", "info":
		return log.LevelInfo, nil
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return 0, fmt.Errorf("logsetup: unknown log level %q", s)
	}
}
