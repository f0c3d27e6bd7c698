// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

// Package logutil builds the zap logger used across the compiler.
package logutil

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig describes where and how to log. Rotation settings only apply
// when Filename is set.
type LogConfig struct {
	Level    string
	Format   string // console or json
	Filename string
	// MaxSize is the size in megabytes at which the file is rotated.
	MaxSize    int
	MaxDays    int
	MaxBackups int
}

func (cfg *LogConfig) getLevel() (zap.AtomicLevel, error) {
	if cfg.Level == "" {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	return zap.NewAtomicLevelAt(level), nil
}

func (cfg *LogConfig) getEncoder() (zapcore.Encoder, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch cfg.Format {
	case "", "console":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig), nil
	case "json":
		return zapcore.NewJSONEncoder(encoderConfig), nil
	default:
		return nil, fmt.Errorf("invalid log format %q, expected console or json", cfg.Format)
	}
}

func (cfg *LogConfig) getSyncer(stderr io.Writer) zapcore.WriteSyncer {
	if cfg.Filename == "" {
		if f, ok := stderr.(*os.File); ok {
			return zapcore.Lock(f)
		}
		return zapcore.AddSync(stderr)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxDays,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
	})
}

// Build creates a logger from cfg. Console output goes to stderr unless a
// Filename is configured.
func (cfg *LogConfig) Build(stderr io.Writer) (*zap.Logger, error) {
	level, err := cfg.getLevel()
	if err != nil {
		return nil, err
	}
	encoder, err := cfg.getEncoder()
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(encoder, cfg.getSyncer(stderr), level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.FatalLevel)), nil
}
