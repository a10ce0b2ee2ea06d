package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	Debug Level = "debug"
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
)

// Logger writes one JSON object per line to stdout.
type Logger struct {
	level Level
	s     *zap.SugaredLogger
}

func New(levelStr string) *Logger {
	return NewWithCore(levelStr, nil)
}

// NewWithCore builds a Logger on top of core, or on a stdout JSON core when
// core is nil.
func NewWithCore(levelStr string, core zapcore.Core) *Logger {
	lvl := Info
	zl := zapcore.InfoLevel
	switch levelStr {
	case "debug":
		lvl, zl = Debug, zapcore.DebugLevel
	case "warn":
		lvl, zl = Warn, zapcore.WarnLevel
	case "error":
		lvl, zl = Error, zapcore.ErrorLevel
	}
	if core == nil {
		enc := zap.NewProductionEncoderConfig()
		enc.TimeKey = "ts"
		enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		core = zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(os.Stdout), zl)
	} else if c, err := zapcore.NewIncreaseLevelCore(core, zl); err == nil {
		core = c
	}
	return &Logger{level: lvl, s: zap.New(core).Sugar()}
}

func (l *Logger) Level() Level { return l.level }

func (l *Logger) Debug(msg string, fields ...any) { l.s.Debugw(msg, fields...) }
func (l *Logger) Info(msg string, fields ...any)  { l.s.Infow(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...any)  { l.s.Warnw(msg, fields...) }
func (l *Logger) Error(msg string, fields ...any) { l.s.Errorw(msg, fields...) }

func (l *Logger) Sync() error { return l.s.Sync() }
