package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggers struct {
	log   *zap.Logger
	sugar *zap.SugaredLogger
}

var current atomic.Pointer[loggers]

// Init 根据 debug 选择 development 或 production logger
func Init(debug bool) error {
	if debug {
		return InitDevelopment()
	}
	return InitProduction()
}

func InitProduction() error {
	return build(zap.NewProductionConfig())
}

func InitDevelopment() error {
	return build(zap.NewDevelopmentConfig())
}

func build(cfg zap.Config) error {
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Use(l)
	return nil
}

// Use installs l as the package and zap global logger, flushing the previous one.
func Use(l *zap.Logger) {
	zap.ReplaceGlobals(l)
	if prev := current.Swap(&loggers{log: l, sugar: l.Sugar()}); prev != nil {
		_ = prev.log.Sync()
	}
}

// Log 未初始化时退回 zap 全局 logger（可能是 noop）
func Log() *zap.Logger {
	if cur := current.Load(); cur != nil {
		return cur.log
	}
	return zap.L()
}

// S is used for printf-style messages in background loops.
func S() *zap.SugaredLogger {
	if cur := current.Load(); cur != nil {
		return cur.sugar
	}
	return zap.S()
}

func Request(requestID string) *zap.Logger {
	return Log().With(zap.String("request_id", requestID))
}

func Sync() {
	if cur := current.Load(); cur != nil {
		_ = cur.log.Sync()
	}
}
