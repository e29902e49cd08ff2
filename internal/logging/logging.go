package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hackgods/opd-frontdesk/internal/config"
)

// New builds the process logger. Console output is used in dev when LOG_FORMAT=console,
// a rotating file is added when LOG_FILE is set.
func New(cfg config.Config, service string) zerolog.Logger {
	var writers []io.Writer

	if strings.EqualFold(cfg.LogFormat, "console") {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		writers = append(writers, os.Stdout)
	}

	if cfg.LogFile != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(w).
		Level(parseLevel(cfg.LogLevel)).
		With().
		Timestamp().
		Str("service", service).
		Str("env", cfg.Env).
		Logger()
}

func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
