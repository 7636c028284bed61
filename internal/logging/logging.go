// Package logging builds the zap logger every command reports through.
package logging

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vitaminmoo/wifictl/internal/config"
)

// New builds a logger named after cfg.Tag. Console output goes to out (the
// terminal, or the TUI scrollback); when a file name is configured, entries
// are also written to a rolling file.
func New(cfg config.LoggingConfig, out io.Writer, verbose bool) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zapcore.InfoLevel
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.Format("15:04:05.000")) },
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	if out == nil {
		out = os.Stderr
	}
	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), level)}

	if cfg.File.Filename != "" {
		fileCfg := encoderCfg
		fileCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		fileCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		lj := &lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(lj), level))
	}

	return zap.New(zapcore.NewTee(cores...)).Named(cfg.Tag), nil
}

// LineWriter is a zapcore.WriteSyncer that hands each complete line to fn.
// The TUI uses it to route log output into its scrollback.
type LineWriter struct {
	fn  func(string)
	buf []byte
}

// NewLineWriter returns a writer calling fn once per line, without the
// trailing newline.
func NewLineWriter(fn func(string)) *LineWriter {
	return &LineWriter{fn: fn}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.fn(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Sync flushes a trailing partial line.
func (w *LineWriter) Sync() error {
	if len(w.buf) > 0 {
		w.fn(string(w.buf))
		w.buf = w.buf[:0]
	}
	return nil
}
