package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger logs to stderr in console format and, when file is set, to a
// rotated JSON file as well.
func newLogger(level, file string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	atom := zap.NewAtomicLevelAt(lvl)

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), atom),
	}

	if file != "" {
		rw := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    8, // megabytes
			MaxAge:     7, // days
			MaxBackups: 3, // files
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rw),
			atom,
		))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
