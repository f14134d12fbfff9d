package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"mailboxgw/internal/config"
)

// New 根据配置创建 zerolog 日志器
func New(cfg *config.Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter 输出到指定 writer
func NewWithWriter(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Log.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "mailbox-gateway").
		Logger()
}
