// Package zapadapter adapts go.uber.org/zap into an amqp08.EventSink, for
// callers who want structured, rotated logging instead of the no-op
// default. It mirrors packetd's logger package but is instantiated per
// Connection rather than held as a process-wide global (amqp08 injects an
// EventSink explicitly; see spec.md §7, Design Note "Global logging").
package zapadapter

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the console/file split and rotation policy.
type Options struct {
	Stdout     bool
	Level      zapcore.Level
	Filename   string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
}

// Sink wraps a *zap.SugaredLogger behind amqp08's Debugf/Infof/Warnf/Errorf
// EventSink shape.
type Sink struct {
	sugared *zap.SugaredLogger
}

// New builds a Sink writing to stdout or to a rotated file, depending on
// opt.Stdout.
func New(opt Options) (*Sink, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format("2006-01-02T15:04:05.000Z"))
	}
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	var w zapcore.WriteSyncer
	if opt.Stdout {
		w = zapcore.AddSync(os.Stdout)
	} else {
		if err := os.MkdirAll(filepath.Dir(opt.Filename), 0o755); err != nil {
			return nil, err
		}
		w = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opt.Filename,
			MaxSize:    opt.MaxSize,
			MaxBackups: opt.MaxBackups,
			MaxAge:     opt.MaxAge,
			LocalTime:  true,
		})
	}

	core := zapcore.NewCore(encoder, w, opt.Level)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Sink{sugared: logger.Sugar()}, nil
}

func (s *Sink) Debugf(format string, args ...any) { s.sugared.Debugf(format, args...) }
func (s *Sink) Infof(format string, args ...any)  { s.sugared.Infof(format, args...) }
func (s *Sink) Warnf(format string, args ...any)  { s.sugared.Warnf(format, args...) }
func (s *Sink) Errorf(format string, args ...any) { s.sugared.Errorf(format, args...) }

// Sync flushes any buffered log entries. Callers should defer it after
// constructing a Sink.
func (s *Sink) Sync() error { return s.sugared.Sync() }
