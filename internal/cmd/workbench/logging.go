// File: internal/cmd/workbench/logging.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package workbench

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger writes JSON to a rotated file when path is set and console
// output to stderr otherwise.
func newLogger(level, path string) (*zap.Logger, func(), error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	if path == "" {
		enc := zap.NewDevelopmentEncoderConfig()
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), lvl)
		return zap.New(core), func() {}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    64, // MiB
		MaxBackups: 3,
		MaxAge:     7, // days
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(rotator),
		lvl)
	logger := zap.New(core)
	return logger, func() {
		_ = logger.Sync()
		_ = rotator.Close()
	}, nil
}
