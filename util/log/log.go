// Package log is the cluster-wide logging facade. Every daemon and
// library package logs through here instead of touching zap directly,
// so the on-disk format and level wiring stays in one place.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global *FileLogger
)

// FileLogger owns the zap core and the dynamic level used for both
// application logging and (via SetRaftLevel) the raft library's own
// logger.
type FileLogger struct {
	sugar    *zap.SugaredLogger
	level    zap.AtomicLevel
	raftSync zapcore.WriteSyncer
	raftLvl  zap.AtomicLevel
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitFileLog opens (creating if needed) dir/module.log and installs it
// as the package-global logger at the given level.
func InitFileLog(dir, module, level string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, module+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	atomLevel := zap.NewAtomicLevelAt(parseLevel(level))
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(f), atomLevel)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	global = &FileLogger{
		sugar:   logger.Sugar(),
		level:   atomLevel,
		raftLvl: zap.NewAtomicLevelAt(parseLevel(level)),
	}
	mu.Unlock()
	return nil
}

// GetFileLogger returns the process-wide logger, falling back to a
// stderr logger if InitFileLog was never called (e.g. in tests).
func GetFileLogger() *FileLogger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(os.Stderr), zapcore.DebugLevel)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &FileLogger{sugar: logger.Sugar(), level: zap.NewAtomicLevelAt(zapcore.DebugLevel), raftLvl: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

// SetRaftLevel sets the level used for messages routed from the raft
// library's own logger and returns the receiver so callers can chain it
// straight into logger.SetLogger(...).
func (l *FileLogger) SetRaftLevel(level string) *FileLogger {
	l.raftLvl.SetLevel(parseLevel(level))
	return l
}

// The raft library's logger.Logger interface is duck-typed: Debug/Info/
// Warn/Error/Critical each taking a printf format plus args.
func (l *FileLogger) Debug(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

func (l *FileLogger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

func (l *FileLogger) Warn(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

func (l *FileLogger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

func (l *FileLogger) Critical(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

func (l *FileLogger) IsEnableDebug() bool {
	return l.raftLvl.Level() <= zapcore.DebugLevel
}

func (l *FileLogger) IsEnableInfo() bool {
	return l.raftLvl.Level() <= zapcore.InfoLevel
}

func (l *FileLogger) IsEnableWarn() bool {
	return l.raftLvl.Level() <= zapcore.WarnLevel
}

// package-level convenience functions routing through the global logger.

func Debug(format string, v ...interface{}) { GetFileLogger().Debug(format, v...) }
func Info(format string, v ...interface{})  { GetFileLogger().Info(format, v...) }
func Warn(format string, v ...interface{})  { GetFileLogger().Warn(format, v...) }
func Error(format string, v ...interface{}) { GetFileLogger().Error(format, v...) }

func Fatal(format string, v ...interface{}) {
	GetFileLogger().sugar.Errorf(format, v...)
	os.Exit(1)
}

func Panic(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	GetFileLogger().sugar.Error(msg)
	panic(msg)
}
