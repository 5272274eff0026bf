// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package corelog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Disabled is the logger every package starts with until UseLogger
	// is called.
	Disabled = zerolog.Nop()

	DefaultLevel = zerolog.InfoLevel
)

// ParseLevel maps the daemon's level names onto zerolog levels.  "critical"
// is accepted as an alias of fatal.
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "critical" {
		return zerolog.FatalLevel, nil
	}
	return zerolog.ParseLevel(level)
}

// New builds the logger of one unit writing to stderr and, when enabled,
// to the rotating file.
func New(unit string, level zerolog.Level, config Config) zerolog.Logger {
	return NewWithOutput(unit, level, config, os.Stderr)
}

// NewWithOutput is New with an explicit console destination.
func NewWithOutput(unit string, level zerolog.Level, config Config, console io.Writer) zerolog.Logger {
	sinks := make([]io.Writer, 0, 2)
	if !config.DisableConsole {
		sinks = append(sinks, consoleSink(unit, config, console))
	}

	if config.ToFile {
		file, err := fileSink(config)
		if err != nil {
			fallback := zerolog.New(console)
			fallback.Error().Err(err).
				Str("path", config.Directory).Msg("file logging disabled")
		} else {
			sinks = append(sinks, file)
		}
	}

	if len(sinks) == 0 {
		return Disabled
	}

	return zerolog.New(io.MultiWriter(sinks...)).
		Level(level).
		With().
		Timestamp().
		Str("app", "smicpd").
		Str("unit", unit).
		Logger()
}

func consoleSink(unit string, config Config, console io.Writer) io.Writer {
	if config.JSON {
		return console
	}

	return zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s| %s |", i, unit))
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("%-6s  ", i)
		},
	}
}

func fileSink(config Config) (io.Writer, error) {
	if err := os.MkdirAll(config.Directory, 0744); err != nil {
		return nil, err
	}

	return &lumberjack.Logger{
		Filename:   config.filePath(),
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAgeDays,
	}, nil
}
