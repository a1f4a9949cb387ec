package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nikmy/txprop/pkg/environment"
	"github.com/nikmy/txprop/pkg/errors"
)

type Logger interface {
	With(label string) Logger

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Panicf(format string, args ...any)

	Debug(err error)
	Info(err error)
	Warn(err error)
	Error(err error)
	Panic(err error)
}

func New(env environment.Env) (Logger, error) {
	var logger *zap.Logger
	var err error

	switch env {
	case environment.Production:
		logger, err = zap.NewProduction()
	default:
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, errors.WrapFail(err, "init logger")
	}

	return FromZap(logger), nil
}

func FromZap(logger *zap.Logger) Logger {
	return &wrapper{base: logger.Sugar()}
}

type wrapper struct {
	base *zap.SugaredLogger
}

func (w *wrapper) With(label string) Logger {
	return &wrapper{w.base.Named(label)}
}

func (w *wrapper) enabled(lvl zapcore.Level) bool {
	return w.base.Desugar().Core().Enabled(lvl)
}

// Error values are logged as-is, nil errors are skipped.
func (w *wrapper) logErr(lvl zapcore.Level, log func(string, ...any), err error) {
	if err == nil || !w.enabled(lvl) {
		return
	}
	log("%s", err)
	_ = w.base.Sync()
}

func (w *wrapper) logf(lvl zapcore.Level, log func(string, ...any), format string, args []any) {
	if !w.enabled(lvl) {
		return
	}
	log(format, args...)
	_ = w.base.Sync()
}

func (w *wrapper) Debug(err error) { w.logErr(zap.DebugLevel, w.base.Debugf, err) }
func (w *wrapper) Info(err error)  { w.logErr(zap.InfoLevel, w.base.Infof, err) }
func (w *wrapper) Warn(err error)  { w.logErr(zap.WarnLevel, w.base.Warnf, err) }
func (w *wrapper) Error(err error) { w.logErr(zap.ErrorLevel, w.base.Errorf, err) }
func (w *wrapper) Panic(err error) { w.logErr(zap.PanicLevel, w.base.Panicf, err) }

func (w *wrapper) Debugf(format string, args ...any) {
	w.logf(zap.DebugLevel, w.base.Debugf, format, args)
}
func (w *wrapper) Infof(format string, args ...any) {
	w.logf(zap.InfoLevel, w.base.Infof, format, args)
}
func (w *wrapper) Warnf(format string, args ...any) {
	w.logf(zap.WarnLevel, w.base.Warnf, format, args)
}
func (w *wrapper) Errorf(format string, args ...any) {
	w.logf(zap.ErrorLevel, w.base.Errorf, format, args)
}
func (w *wrapper) Panicf(format string, args ...any) {
	w.logf(zap.PanicLevel, w.base.Panicf, format, args)
}
