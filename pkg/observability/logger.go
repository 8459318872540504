// Package observability builds the process logger. Everything logs
// through zap; file output rotates via lumberjack so a probe left
// running for months cannot fill the disk.
package observability

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/ziyasal/iotedge/pkg/config"
)

// SetupLogger builds a zap logger from the log config. Outputs may be
// "stdout", "stderr" or anything else, which is treated as a file path
// (rotated when rotation is enabled).
func SetupLogger(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("observability: parse level %q: %w", cfg.Level, err)
	}

	var encCfg zapcore.EncoderConfig
	if cfg.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encCfg = zap.NewProductionEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "console", "":
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("observability: unknown log format %q", cfg.Format)
	}

	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	var cores []zapcore.Core
	for _, out := range outputs {
		var sink zapcore.WriteSyncer
		switch out {
		case "stdout":
			sink = zapcore.AddSync(os.Stdout)
		case "stderr":
			sink = zapcore.AddSync(os.Stderr)
		default:
			sink = fileSink(out, cfg.Rotation)
		}
		cores = append(cores, zapcore.NewCore(encoder, sink, level))
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	logger := zap.New(zapcore.NewTee(cores...), opts...)
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func fileSink(path string, r config.Rotation) zapcore.WriteSyncer {
	if !r.Enable {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			// Fall back to stderr rather than refusing to start.
			fmt.Fprintf(os.Stderr, "observability: open %s: %v\n", path, err)
			return zapcore.AddSync(os.Stderr)
		}
		return zapcore.AddSync(f)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    r.MaxSizeMB,
		MaxBackups: r.MaxBackups,
		MaxAge:     r.MaxAgeDays,
		Compress:   r.Compress,
	})
}

// MustLogger is SetupLogger for main(); it panics on error.
func MustLogger(cfg config.Log) *zap.Logger {
	l, err := SetupLogger(cfg)
	if err != nil {
		panic(err)
	}
	return l
}

// LogEnvironment dumps the process environment at debug level, one
// sorted line per variable. Values of secret-looking keys are masked.
func LogEnvironment(log *zap.Logger) {
	if !log.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	env := os.Environ()
	sort.Strings(env)
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if isSecretKey(k) {
			v = "****"
		}
		log.Debug("env", zap.String(k, v))
	}
}

func isSecretKey(k string) bool {
	k = strings.ToUpper(k)
	for _, marker := range []string{"KEY", "TOKEN", "SECRET", "PASSWORD", "CREDENTIAL"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}
