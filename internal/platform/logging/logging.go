package logging

import (
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the optional rotating file sink.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// FileOptionsFromEnv reads LOG_FILE and its rotation knobs.
func FileOptionsFromEnv() FileOptions {
	return FileOptions{
		Path:       strings.TrimSpace(os.Getenv("LOG_FILE")),
		MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 100),
		MaxBackups: envInt("LOG_MAX_BACKUPS", 3),
		MaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 14),
	}
}

func New(level string) (*zap.Logger, error) {
	return NewWithFile(level, FileOptionsFromEnv())
}

// NewWithFile builds the JSON logger. Stdout is always a sink; when
// file.Path is set, entries are also written to a lumberjack-rotated file.
func NewWithFile(level string, file FileOptions) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(strings.ToLower(strings.TrimSpace(level))); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	if file.Path == "" {
		return cfg.Build()
	}

	enc := zapcore.NewJSONEncoder(cfg.EncoderConfig)
	rotating := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
		Compress:   true,
	})
	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), cfg.Level),
		zapcore.NewCore(enc, rotating, cfg.Level),
	)
	return zap.New(core, zap.AddCaller()), nil
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
